package config

import (
	"log"
	"os"

	"github.com/BurntSushi/toml"
)

type MainConfig struct {
	AppName string `toml:"appName"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
}

type LogConfig struct {
	LogPath string `toml:"logPath"`
}

type AuthConfig struct {
	HeaderName string   `toml:"headerName"`
	APIKeys    []string `toml:"apiKeys"`
}

type StoreConfig struct {
	// SQLite 数据库文件路径，":memory:" 用于测试
	Path string `toml:"path"`
}

type UploadConfig struct {
	Dir           string   `toml:"dir"`
	MaxSizeMB     int64    `toml:"maxSizeMB"`
	SupportedExts []string `toml:"supportedExts"`
}

type MilvusConfig struct {
	Address        string `toml:"address"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	DBName         string `toml:"dbName"`
	CollectionName string `toml:"collectionName"`
	MetricType     string `toml:"metricType"`
}

type KafkaConfig struct {
	Brokers         []string `toml:"brokers"`
	ClientID        string   `toml:"clientID"`
	BuildTopic      string   `toml:"buildTopic"`
	ConsumerGroupID string   `toml:"consumerGroupID"`
	Partitions      int32    `toml:"partitions"`
	Replication     int16    `toml:"replication"`
}

type AIEmbeddingConfig struct {
	Provider        string `toml:"provider"`
	APIKey          string `toml:"apiKey"`
	BaseURL         string `toml:"baseURL"`
	Model           string `toml:"model"`
	Dimensions      int    `toml:"dimensions"`
	TimeoutSeconds  int    `toml:"timeoutSeconds"`
	ByAzure         bool   `toml:"byAzure"`
	AzureAPIVersion string `toml:"azureApiVersion"`
}

type AIChatModelConfig struct {
	Provider        string `toml:"provider"`
	APIKey          string `toml:"apiKey"`
	AccessKey       string `toml:"accessKey"`
	SecretKey       string `toml:"secretKey"`
	BaseURL         string `toml:"baseURL"`
	Region          string `toml:"region"`
	Model           string `toml:"model"`
	TimeoutSeconds  int    `toml:"timeoutSeconds"`
	RetryTimes      int    `toml:"retryTimes"`
	ByAzure         bool   `toml:"byAzure"`
	AzureAPIVersion string `toml:"azureApiVersion"`
}

type AIConfig struct {
	Embedding AIEmbeddingConfig `toml:"embedding"`
	ChatModel AIChatModelConfig `toml:"chatModel"`
}

// RAGConfig RAG 构建与召回的核心参数
type RAGConfig struct {
	ChunkStrategy       string  `toml:"chunkStrategy"`  // structural / paragraph / fixed
	MaxChunkSize        int     `toml:"maxChunkSize"`   // 超过该字符数的段落按句子再切
	MinChunkWords       int     `toml:"minChunkWords"`  // 低于该词数的普通 chunk 丢弃
	EmbedBatchSize      int     `toml:"embedBatchSize"` // 向量化批大小
	TopK                int     `toml:"topK"`
	SimilarityThreshold float32 `toml:"similarityThreshold"`
	CacheTTLSeconds     int     `toml:"cacheTTLSeconds"`
	CacheSize           int     `toml:"cacheSize"`
	SearchTimeoutMs     int     `toml:"searchTimeoutMs"`
	VectorIndex         string  `toml:"vectorIndex"`     // store（内嵌余弦扫描）/ milvus
	Dispatcher          string  `toml:"dispatcher"`      // inline（进程内工作池）/ kafka
	BuildWorkers        int     `toml:"buildWorkers"`    // inline 模式工作协程数
	DefaultLanguage     string  `toml:"defaultLanguage"` // 语言检测失败时的兜底流水线
}

type Config struct {
	MainConfig   `toml:"mainConfig"`
	LogConfig    `toml:"logConfig"`
	AuthConfig   `toml:"authConfig"`
	StoreConfig  `toml:"storeConfig"`
	UploadConfig `toml:"uploadConfig"`
	MilvusConfig `toml:"milvusConfig"`
	KafkaConfig  `toml:"kafkaConfig"`
	AIConfig     `toml:"aiConfig"`
	RAGConfig    `toml:"ragConfig"`
}

var config *Config

func LoadConfig() error {
	configPath := os.Getenv("REQGRAPH_CONFIG")
	if configPath == "" {
		configPath = "configs/config_local.toml"
	}
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		log.Printf("加载配置文件失败: %v, 使用默认设置", err)
		applyDefaults(config)
		return err
	}
	applyDefaults(config)
	return nil
}

func applyDefaults(c *Config) {
	if c.MainConfig.Host == "" {
		c.MainConfig.Host = "0.0.0.0"
	}
	if c.MainConfig.Port <= 0 {
		c.MainConfig.Port = 8000
	}
	if c.AuthConfig.HeaderName == "" {
		c.AuthConfig.HeaderName = "X-API-Key"
	}
	if c.StoreConfig.Path == "" {
		c.StoreConfig.Path = "data/reqgraph.db"
	}
	if c.UploadConfig.Dir == "" {
		c.UploadConfig.Dir = "uploads"
	}
	if c.UploadConfig.MaxSizeMB <= 0 {
		c.UploadConfig.MaxSizeMB = 20
	}
	if len(c.UploadConfig.SupportedExts) == 0 {
		c.UploadConfig.SupportedExts = []string{".pdf", ".docx", ".txt", ".md"}
	}
	if c.AIConfig.Embedding.Dimensions <= 0 {
		c.AIConfig.Embedding.Dimensions = 384
	}
	if c.RAGConfig.ChunkStrategy == "" {
		c.RAGConfig.ChunkStrategy = "structural"
	}
	if c.RAGConfig.MaxChunkSize <= 0 {
		c.RAGConfig.MaxChunkSize = 512
	}
	if c.RAGConfig.MinChunkWords <= 0 {
		c.RAGConfig.MinChunkWords = 5
	}
	if c.RAGConfig.EmbedBatchSize <= 0 {
		c.RAGConfig.EmbedBatchSize = 32
	}
	if c.RAGConfig.TopK <= 0 {
		c.RAGConfig.TopK = 3
	}
	if c.RAGConfig.SimilarityThreshold <= 0 {
		c.RAGConfig.SimilarityThreshold = 0.7
	}
	if c.RAGConfig.CacheTTLSeconds <= 0 {
		c.RAGConfig.CacheTTLSeconds = 300
	}
	if c.RAGConfig.CacheSize <= 0 {
		c.RAGConfig.CacheSize = 256
	}
	if c.RAGConfig.SearchTimeoutMs <= 0 {
		c.RAGConfig.SearchTimeoutMs = 5000
	}
	if c.RAGConfig.VectorIndex == "" {
		c.RAGConfig.VectorIndex = "store"
	}
	if c.RAGConfig.Dispatcher == "" {
		c.RAGConfig.Dispatcher = "inline"
	}
	if c.RAGConfig.BuildWorkers <= 0 {
		c.RAGConfig.BuildWorkers = 2
	}
	if c.RAGConfig.DefaultLanguage == "" {
		c.RAGConfig.DefaultLanguage = "en"
	}
	if c.KafkaConfig.BuildTopic == "" {
		c.KafkaConfig.BuildTopic = "reqgraph.doc.build"
	}
	if c.KafkaConfig.ConsumerGroupID == "" {
		c.KafkaConfig.ConsumerGroupID = "reqgraph-build"
	}
}

func GetConfig() *Config {
	if config == nil {
		config = new(Config)
		_ = LoadConfig()
	}
	return config
}
