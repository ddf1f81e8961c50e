package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"ReqGraph/internal/config"

	arkModel "github.com/cloudwego/eino-ext/components/model/ark"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

type ChatModelMeta struct {
	Provider string
	Model    string
}

// NewChatModelFromConfig 根据配置选择对话模型供应商
func NewChatModelFromConfig(ctx context.Context, conf *config.Config) (model.BaseChatModel, ChatModelMeta, error) {
	if conf == nil {
		return nil, ChatModelMeta{}, fmt.Errorf("nil config")
	}

	cm := conf.AIConfig.ChatModel
	provider := strings.ToLower(strings.TrimSpace(cm.Provider))

	switch provider {
	case "", "disabled", "none":
		return nil, ChatModelMeta{}, fmt.Errorf("chat model provider not configured")
	case "openai":
		return newOpenAIChatModel(ctx, cm)
	case "ark":
		return newArkChatModel(ctx, cm)
	default:
		return nil, ChatModelMeta{}, fmt.Errorf("unknown chat model provider: %s", provider)
	}
}

func newOpenAIChatModel(ctx context.Context, cm config.AIChatModelConfig) (model.BaseChatModel, ChatModelMeta, error) {
	apiKey := firstNonEmpty(cm.APIKey, os.Getenv("OPENAI_API_KEY"))
	modelName := firstNonEmpty(cm.Model, os.Getenv("OPENAI_MODEL"))
	baseURL := firstNonEmpty(cm.BaseURL, os.Getenv("OPENAI_BASE_URL"))

	if apiKey == "" || modelName == "" {
		return nil, ChatModelMeta{}, fmt.Errorf("openai chat model missing apiKey/model")
	}

	chat, err := openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
		APIKey:     apiKey,
		Model:      modelName,
		BaseURL:    baseURL,
		ByAzure:    cm.ByAzure,
		APIVersion: strings.TrimSpace(cm.AzureAPIVersion),
		Timeout:    chatTimeout(cm),
	})
	if err != nil {
		return nil, ChatModelMeta{}, err
	}
	return chat, ChatModelMeta{Provider: "openai", Model: modelName}, nil
}

func newArkChatModel(ctx context.Context, cm config.AIChatModelConfig) (model.BaseChatModel, ChatModelMeta, error) {
	apiKey := firstNonEmpty(cm.APIKey, os.Getenv("ARK_API_KEY"))
	accessKey := firstNonEmpty(cm.AccessKey, os.Getenv("ARK_ACCESS_KEY"))
	secretKey := firstNonEmpty(cm.SecretKey, os.Getenv("ARK_SECRET_KEY"))
	modelName := firstNonEmpty(cm.Model, os.Getenv("ARK_MODEL_ID"))
	baseURL := firstNonEmpty(cm.BaseURL, os.Getenv("ARK_BASE_URL"))
	region := firstNonEmpty(cm.Region, os.Getenv("ARK_REGION"))

	if apiKey == "" && (accessKey == "" || secretKey == "") {
		return nil, ChatModelMeta{}, fmt.Errorf("ark chat model missing apiKey or accessKey/secretKey")
	}
	if modelName == "" {
		return nil, ChatModelMeta{}, fmt.Errorf("ark chat model missing model")
	}

	timeout := chatTimeout(cm)
	retryTimes := 2
	if cm.RetryTimes > 0 {
		retryTimes = cm.RetryTimes
	}

	chat, err := arkModel.NewChatModel(ctx, &arkModel.ChatModelConfig{
		APIKey:     apiKey,
		AccessKey:  accessKey,
		SecretKey:  secretKey,
		Model:      modelName,
		BaseURL:    baseURL,
		Region:     region,
		Timeout:    &timeout,
		RetryTimes: &retryTimes,
	})
	if err != nil {
		return nil, ChatModelMeta{}, err
	}
	return chat, ChatModelMeta{Provider: "ark", Model: modelName}, nil
}

func chatTimeout(cm config.AIChatModelConfig) time.Duration {
	if cm.TimeoutSeconds > 0 {
		return time.Duration(cm.TimeoutSeconds) * time.Second
	}
	return 2 * time.Minute
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
