package http

import (
	"context"
	"fmt"
	"time"

	"ReqGraph/internal/config"
	"ReqGraph/internal/initial"
	apikeyMiddleware "ReqGraph/internal/middleware/apikey"
	"ReqGraph/internal/modules/rag/application/service"
	"ReqGraph/internal/modules/rag/domain/repository"
	"ReqGraph/internal/modules/rag/infrastructure/chunking"
	ragEmbedding "ReqGraph/internal/modules/rag/infrastructure/embedding"
	"ReqGraph/internal/modules/rag/infrastructure/llm"
	"ReqGraph/internal/modules/rag/infrastructure/mq/kafka"
	"ReqGraph/internal/modules/rag/infrastructure/nlp"
	"ReqGraph/internal/modules/rag/infrastructure/persistence"
	"ReqGraph/internal/modules/rag/infrastructure/pipeline"
	"ReqGraph/internal/modules/rag/infrastructure/processing"
	"ReqGraph/internal/modules/rag/infrastructure/queue"
	"ReqGraph/internal/modules/rag/infrastructure/vectordb"
	ragHandler "ReqGraph/internal/modules/rag/interface/http"
	ragMcp "ReqGraph/internal/modules/rag/interface/mcp"
	"ReqGraph/pkg/ssl"
	"ReqGraph/pkg/zlog"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

var GE *gin.Engine

var (
	buildDispatcher queue.Dispatcher
	buildConsumer   *queue.BuildConsumerWorker
)

func init() {
	conf := config.GetConfig()

	GE = gin.Default()
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", conf.AuthConfig.HeaderName}
	GE.Use(cors.New(corsConfig))
	GE.Use(ssl.TlsHandler(conf.MainConfig.Host, conf.MainConfig.Port))

	ctx := context.Background()

	// 基础设施
	store := persistence.NewGraphStore(initial.GormDB)

	embedder, embMeta, err := ragEmbedding.NewEmbedderFromConfig(ctx, conf)
	if err != nil {
		zlog.Fatal("init embedder failed: " + err.Error())
	}
	zlog.Info("embedder ready", zap.String("provider", embMeta.Provider), zap.String("model", embMeta.Model))

	index := newVectorIndex(conf, store)
	chunker := chunking.NewChunker(conf.RAGConfig.ChunkStrategy, conf.RAGConfig.MaxChunkSize, conf.RAGConfig.MinChunkWords)
	extractor := nlp.NewExtractor(conf.RAGConfig.DefaultLanguage)
	textExtractor := processing.NewTextExtractor(conf.UploadConfig.MaxSizeMB, conf.UploadConfig.SupportedExts)

	buildPipe, err := pipeline.NewBuildPipeline(store, index, embedder, chunker, extractor,
		conf.AIConfig.Embedding.Dimensions, conf.RAGConfig.EmbedBatchSize)
	if err != nil {
		zlog.Fatal("init build pipeline failed: " + err.Error())
	}
	retrievePipe, err := pipeline.NewRetrievePipeline(store, index, embedder, pipeline.RetrieveOptions{
		TopK:           conf.RAGConfig.TopK,
		ScoreThreshold: conf.RAGConfig.SimilarityThreshold,
		VectorDim:      conf.AIConfig.Embedding.Dimensions,
		SearchTimeout:  time.Duration(conf.RAGConfig.SearchTimeoutMs) * time.Millisecond,
		CacheSize:      conf.RAGConfig.CacheSize,
		CacheTTL:       time.Duration(conf.RAGConfig.CacheTTLSeconds) * time.Second,
	})
	if err != nil {
		zlog.Fatal("init retrieve pipeline failed: " + err.Error())
	}

	runner := queue.NewBuildRunner(store, textExtractor, buildPipe, retrievePipe)
	buildDispatcher = newDispatcher(conf, runner)

	// 对话模型可选，未配置时补全接口返回错误
	chatModel, chatMeta, err := llm.NewChatModelFromConfig(ctx, conf)
	if err != nil {
		zlog.Warn("chat model not available", zap.Error(err))
	} else {
		zlog.Info("chat model ready", zap.String("provider", chatMeta.Provider), zap.String("model", chatMeta.Model))
	}

	// 应用服务
	docSvc := service.NewDocumentService(store, index, textExtractor, buildDispatcher, retrievePipe, conf.UploadConfig.Dir)
	retrieveSvc := service.NewRetrieveService(retrievePipe)
	reindexSvc := service.NewReindexService(store, index, textExtractor, buildPipe, retrievePipe, conf.UploadConfig.Dir)
	reqSvc := service.NewRequirementService(store)
	completionSvc := service.NewCompletionService(chatModel, chatMeta, retrievePipe)

	// Handler 与路由
	docH := ragHandler.NewDocumentHandler(docSvc)
	ragH := ragHandler.NewRAGHandler(retrieveSvc, reindexSvc, reqSvc)
	completionH := ragHandler.NewCompletionHandler(completionSvc)

	GE.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "app": conf.MainConfig.AppName})
	})
	GE.GET("/ai/complete/ws", completionH.CompleteStream)

	authed := GE.Group("/")
	authed.Use(apikeyMiddleware.Auth())
	authed.POST("/rag/documents", docH.Upload)
	authed.GET("/rag/documents", docH.List)
	authed.GET("/rag/documents/:doc_id", docH.Get)
	authed.DELETE("/rag/documents/:doc_id", docH.Delete)
	authed.POST("/rag/search", ragH.Search)
	authed.GET("/rag/similar", ragH.FindSimilar)
	authed.POST("/rag/reindex", ragH.Reindex)
	authed.GET("/rag/requirements", ragH.ListRequirements)
	authed.POST("/ai/complete", completionH.Complete)
	authed.POST("/ai/edit", completionH.Edit)

	// MCP 工具面（SSE），挂在 /mcp 下
	mcpServer := ragMcp.NewServer(ragMcp.ServerConfig{
		Name:    conf.MainConfig.AppName,
		Version: "1.0.0",
	}, ragMcp.Dependencies{
		RetrieveSvc:    retrieveSvc,
		DocumentSvc:    docSvc,
		RequirementSvc: reqSvc,
	})
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))
	GE.Any("/mcp/*path", gin.WrapH(sseServer))
}

func newVectorIndex(conf *config.Config, store repository.GraphStore) repository.VectorIndex {
	if conf.RAGConfig.VectorIndex == "milvus" {
		idx, err := vectordb.NewMilvusIndex(
			initial.MilvusClient,
			conf.MilvusConfig.CollectionName,
			conf.AIConfig.Embedding.Dimensions,
			vectordb.MetricTypeFromConfig(conf.MilvusConfig.MetricType),
		)
		if err != nil {
			zlog.Fatal("init milvus index failed: " + err.Error())
		}
		return idx
	}
	return vectordb.NewStoreIndex(store)
}

func newDispatcher(conf *config.Config, runner *queue.BuildRunner) queue.Dispatcher {
	if conf.RAGConfig.Dispatcher == "kafka" {
		adminCfg := kafka.TopicAdminConfig{Brokers: conf.KafkaConfig.Brokers, ClientID: conf.KafkaConfig.ClientID}
		if err := kafka.EnsureTopic(adminCfg, conf.KafkaConfig.BuildTopic, conf.KafkaConfig.Partitions, conf.KafkaConfig.Replication); err != nil {
			zlog.Fatal("ensure kafka topic failed: " + err.Error())
		}

		pub, err := kafka.NewSaramaPublisher(kafka.PublisherConfig{
			Brokers:  conf.KafkaConfig.Brokers,
			Topic:    conf.KafkaConfig.BuildTopic,
			ClientID: conf.KafkaConfig.ClientID,
		})
		if err != nil {
			zlog.Fatal("init kafka publisher failed: " + err.Error())
		}
		d, err := queue.NewKafkaDispatcher(pub)
		if err != nil {
			zlog.Fatal("init kafka dispatcher failed: " + err.Error())
		}

		consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:  conf.KafkaConfig.Brokers,
			GroupID:  conf.KafkaConfig.ConsumerGroupID,
			Topic:    conf.KafkaConfig.BuildTopic,
			ClientID: conf.KafkaConfig.ClientID,
		})
		if err != nil {
			zlog.Fatal("init kafka consumer failed: " + err.Error())
		}
		buildConsumer = queue.NewBuildConsumerWorker(consumer, runner)
		go func() {
			if err := buildConsumer.Run(context.Background()); err != nil {
				zlog.Error("build consumer stopped", zap.Error(err))
			}
		}()
		return d
	}

	d, err := queue.NewInlineDispatcher(runner, conf.RAGConfig.BuildWorkers, 64)
	if err != nil {
		zlog.Fatal("init inline dispatcher failed: " + err.Error())
	}
	return d
}

// Shutdown 停掉后台构建组件，等在途任务收尾
func Shutdown(ctx context.Context) {
	if buildConsumer != nil {
		if err := buildConsumer.Close(); err != nil {
			zlog.Warn(fmt.Sprintf("close build consumer failed: %v", err))
		}
	}
	if buildDispatcher != nil {
		if err := buildDispatcher.Close(ctx); err != nil {
			zlog.Warn(fmt.Sprintf("close build dispatcher failed: %v", err))
		}
	}
}
