package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"ReqGraph/internal/modules/rag/application/dto/request"
	"ReqGraph/internal/modules/rag/application/dto/respond"
	"ReqGraph/internal/modules/rag/infrastructure/llm"
	"ReqGraph/internal/modules/rag/infrastructure/pipeline"
	"ReqGraph/pkg/zlog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

const completionSystemPrompt = "You are an assistant for requirements engineering. " +
	"Answer using the provided document context when it is relevant, and say so when it is not."

const editingSystemPrompt = "You are an editor for requirements documents. " +
	"Rewrite the user's text following the instruction. Keep the meaning, return only the rewritten text."

// StreamEvent 流式补全事件
type StreamEvent struct {
	Event string      // "delta" / "done" / "error"
	Data  interface{} // delta: {token}, done: CompletionRespond, error: {error}
}

// CompletionService 基于 LLM 的补全与润色服务，UseRAG 时注入召回上下文
type CompletionService interface {
	Complete(ctx context.Context, req request.CompletionRequest) (*respond.CompletionRespond, error)
	CompleteStream(ctx context.Context, req request.CompletionRequest) (<-chan StreamEvent, error)
	Edit(ctx context.Context, req request.EditingRequest) (*respond.CompletionRespond, error)
}

type completionServiceImpl struct {
	chatModel model.BaseChatModel
	meta      llm.ChatModelMeta
	retrieve  *pipeline.RetrievePipeline
}

// NewCompletionService 创建补全服务。chatModel 可为 nil，此时接口返回未配置错误。
func NewCompletionService(chatModel model.BaseChatModel, meta llm.ChatModelMeta, retrieve *pipeline.RetrievePipeline) CompletionService {
	return &completionServiceImpl{chatModel: chatModel, meta: meta, retrieve: retrieve}
}

func (s *completionServiceImpl) Complete(ctx context.Context, req request.CompletionRequest) (*respond.CompletionRespond, error) {
	if s.chatModel == nil {
		return nil, errors.New("chat model not configured")
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("prompt is required")
	}

	start := time.Now()
	msgs, chunks := s.buildMessages(ctx, completionSystemPrompt, prompt, req.DocID, req.UseRAG)

	resp, err := s.chatModel.Generate(ctx, msgs)
	if err != nil {
		zlog.Error("llm generate failed", zap.Error(err))
		return nil, fmt.Errorf("llm generate failed: %w", err)
	}

	out := &respond.CompletionRespond{
		Content:    resp.Content,
		Model:      s.meta.Model,
		RAGChunks:  chunks,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		out.PromptTokens = resp.ResponseMeta.Usage.PromptTokens
		out.TotalTokens = resp.ResponseMeta.Usage.TotalTokens
	}
	return out, nil
}

func (s *completionServiceImpl) CompleteStream(ctx context.Context, req request.CompletionRequest) (<-chan StreamEvent, error) {
	if s.chatModel == nil {
		return nil, errors.New("chat model not configured")
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("prompt is required")
	}

	eventChan := make(chan StreamEvent, 100)
	go func() {
		defer close(eventChan)

		start := time.Now()
		msgs, chunks := s.buildMessages(ctx, completionSystemPrompt, prompt, req.DocID, req.UseRAG)

		reader, err := s.chatModel.Stream(ctx, msgs)
		if err != nil {
			zlog.Error("llm stream failed", zap.Error(err))
			eventChan <- StreamEvent{Event: "error", Data: map[string]string{"error": err.Error()}}
			return
		}
		defer reader.Close()

		var full strings.Builder
		for {
			msg, err := reader.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				eventChan <- StreamEvent{Event: "error", Data: map[string]string{"error": err.Error()}}
				return
			}
			if msg.Content == "" {
				continue
			}
			full.WriteString(msg.Content)
			select {
			case eventChan <- StreamEvent{Event: "delta", Data: map[string]string{"token": msg.Content}}:
			case <-ctx.Done():
				return
			}
		}

		eventChan <- StreamEvent{Event: "done", Data: respond.CompletionRespond{
			Content:    full.String(),
			Model:      s.meta.Model,
			RAGChunks:  chunks,
			DurationMs: time.Since(start).Milliseconds(),
		}}
	}()
	return eventChan, nil
}

func (s *completionServiceImpl) Edit(ctx context.Context, req request.EditingRequest) (*respond.CompletionRespond, error) {
	if s.chatModel == nil {
		return nil, errors.New("chat model not configured")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, errors.New("text is required")
	}
	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		instruction = "Improve clarity and fix grammar."
	}

	start := time.Now()
	prompt := fmt.Sprintf("Instruction: %s\n\nText:\n%s", instruction, text)
	msgs, chunks := s.buildMessages(ctx, editingSystemPrompt, prompt, req.DocID, req.UseRAG)

	resp, err := s.chatModel.Generate(ctx, msgs)
	if err != nil {
		zlog.Error("llm generate failed", zap.Error(err))
		return nil, fmt.Errorf("llm generate failed: %w", err)
	}

	out := &respond.CompletionRespond{
		Content:    resp.Content,
		Model:      s.meta.Model,
		RAGChunks:  chunks,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		out.PromptTokens = resp.ResponseMeta.Usage.PromptTokens
		out.TotalTokens = resp.ResponseMeta.Usage.TotalTokens
	}
	return out, nil
}

// buildMessages 组装 LLM 消息，useRAG 时把召回片段拼进 system prompt。
// 召回失败只记日志，不阻断补全。
func (s *completionServiceImpl) buildMessages(ctx context.Context, sysPrompt, prompt, docID string, useRAG bool) ([]*schema.Message, []respond.RetrievedChunk) {
	var chunks []respond.RetrievedChunk
	sys := sysPrompt

	if useRAG && s.retrieve != nil {
		result, err := s.retrieve.Retrieve(ctx, &pipeline.RetrieveRequest{
			Query:       prompt,
			FilterDocID: strings.TrimSpace(docID),
		})
		if err != nil {
			zlog.Warn("rag retrieve for completion failed", zap.Error(err))
		} else if result != nil && len(result.Results) > 0 {
			chunks = result.Results
			var b strings.Builder
			b.WriteString(sys)
			b.WriteString("\n\nRelevant Information:\n")
			for i, ch := range chunks {
				fmt.Fprintf(&b, "%d. %s\n", i+1, ch.Text)
				if ch.Context != "" {
					fmt.Fprintf(&b, "%s\n", ch.Context)
				}
			}
			sys = b.String()
		}
	}

	return []*schema.Message{
		schema.SystemMessage(sys),
		schema.UserMessage(prompt),
	}, chunks
}
