// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"docchat-go/internal/classifier"
	"docchat-go/internal/config"
	"docchat-go/internal/handler"
	"docchat-go/internal/pipeline"
	"docchat-go/internal/repository"
	"docchat-go/internal/service"
	"docchat-go/internal/session"
	"docchat-go/internal/vectorindex"
	"docchat-go/pkg/database"
	"docchat-go/pkg/embedding"
	"docchat-go/pkg/es"
	"docchat-go/pkg/extract"
	"docchat-go/pkg/kafka"
	"docchat-go/pkg/llm"
	"docchat-go/pkg/log"
	"docchat-go/pkg/storage"
	"docchat-go/pkg/tika"
	"docchat-go/pkg/token"
)

func main() {
	// 1. 加载 .env 与配置
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "加载 .env 失败: %v\n", err)
	}
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	if err := cfg.Validate(); err != nil {
		log.Fatal("配置校验失败", err)
	}
	log.Info("配置加载成功")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 3. 初始化模型客户端
	embeddingClient, err := embedding.NewClient(ctx, cfg.Embedding)
	if err != nil {
		log.Fatal("初始化 Embedding 客户端失败", err)
	}
	defer embeddingClient.Close()
	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		log.Fatal("初始化 LLM 客户端失败", err)
	}
	defer llmClient.Close()

	// 4. 文本抽取与向量索引后端
	var extractor extract.Extractor = extract.NewPDFExtractor()
	if cfg.Extractor.Backend == "tika" {
		extractor = tika.NewClient(cfg.Tika)
	}
	var builder vectorindex.Builder = vectorindex.NewMemoryBuilder()
	if cfg.Index.Backend == "elasticsearch" {
		// NewClient 会顺带创建分块索引
		esClient, err := es.NewClient(ctx, cfg.Elasticsearch, cfg.Embedding.Dimensions)
		if err != nil {
			log.Fatal("初始化 Elasticsearch 失败", err)
		}
		builder = vectorindex.NewElasticBuilder(esClient, cfg.Elasticsearch.IndexName, cfg.Embedding.Dimensions)
	}
	log.Infof("文本抽取后端: %s, 向量索引后端: %s", cfg.Extractor.Backend, cfg.Index.Backend)

	processor, err := pipeline.NewProcessor(
		extractor,
		embeddingClient,
		builder,
		classifier.New(nil, cfg.Pipeline.ResumeThreshold),
		cfg.Pipeline.ChunkSize,
		cfg.Pipeline.ChunkOverlap,
	)
	if err != nil {
		log.Fatal("初始化文件处理管道失败", err)
	}

	// 5. 可选的外部依赖：未配置时使用内存实现或空实现
	conversationRepo := repository.NewMemoryConversationRepository(cfg.Chat.HistoryLimit)
	if cfg.Database.Redis.Addr != "" {
		rdb, err := database.InitRedis(ctx, cfg.Database.Redis)
		if err != nil {
			log.Fatal("连接 Redis 失败", err)
		}
		defer rdb.Close()
		conversationRepo = repository.NewConversationRepository(rdb, cfg.Chat.HistoryLimit)
	}
	documentRepo := repository.NewMemoryDocumentRepository()
	if cfg.Database.MySQL.DSN != "" {
		db, err := database.InitMySQL(cfg.Database.MySQL.DSN)
		if err != nil {
			log.Fatal("连接 MySQL 失败", err)
		}
		documentRepo = repository.NewDocumentRepository(db)
	}
	var archiver storage.Archiver = storage.Nop{}
	if cfg.MinIO.Endpoint != "" {
		minioClient, err := storage.NewMinioClient(ctx, cfg.MinIO)
		if err != nil {
			log.Fatal("初始化 MinIO 失败", err)
		}
		archiver = storage.NewMinioArchiver(minioClient, cfg.MinIO.BucketName)
	}
	var publisher kafka.Publisher = kafka.Nop{}
	if cfg.Kafka.Brokers != "" {
		publisher = kafka.NewProducer(cfg.Kafka)
	}
	defer publisher.Close()

	// 6. 会话存储与后台清理
	store := session.NewMemoryStore(cfg.Session.IdleTTL, cfg.Session.MaxSessions)
	go store.Run(ctx, cfg.Session.SweepInterval)
	sessions := token.NewSessionManager(cfg.Session.Secret, cfg.Session.TokenTTL)

	// 7. 初始化 Service (依赖注入)
	background := service.NewBackground(30 * time.Second)
	conversationService := service.NewConversationService(conversationRepo)
	documentService := service.NewDocumentService(processor, store, documentRepo, archiver, publisher, background)
	searchService := service.NewSearchService(embeddingClient, store, cfg.Chat.TopK)
	chatService := service.NewChatService(store, embeddingClient, llmClient, conversationService, publisher, background,
		service.ChatOptions{
			TopK:       cfg.Chat.TopK,
			Prompt:     cfg.LLM.Prompt,
			Generation: llm.ParamsFromConfig(cfg.LLM.Generation),
		})

	// 8. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(handler.RouterOptions{
		DocumentService:     documentService,
		ChatService:         chatService,
		SearchService:       searchService,
		ConversationService: conversationService,
		Sessions:            sessions,
		DocumentMode:        cfg.Document.Mode,
		MaxUploadMB:         cfg.Server.MaxUploadMB,
		AllowedOrigins:      cfg.Server.AllowedOrigins,
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP 服务器关闭失败", err)
	}

	// 停止会话清理并等待归档、事件发布等后台任务结束
	stop()
	background.Wait()
	log.Info("服务已优雅关闭")
}
