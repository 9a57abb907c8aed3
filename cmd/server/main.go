// Package main 是应用程序的入口点。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clinic-chat-go/internal/config"
	"clinic-chat-go/internal/handler"
	"clinic-chat-go/internal/middleware"
	"clinic-chat-go/internal/pipeline"
	"clinic-chat-go/internal/repository"
	"clinic-chat-go/internal/service"
	"clinic-chat-go/pkg/database"
	"clinic-chat-go/pkg/es"
	"clinic-chat-go/pkg/kafka"
	"clinic-chat-go/pkg/llm"
	"clinic-chat-go/pkg/log"
	"clinic-chat-go/pkg/storage"
	"clinic-chat-go/pkg/token"
)

func configPath() string {
	def := os.Getenv("CONFIG_PATH")
	if def == "" {
		def = "./configs/config.yaml"
	}
	path := flag.String("config", def, "path to config.yaml")
	flag.Parse()
	if _, err := os.Stat(*path); err != nil {
		// 没有配置文件时只使用默认值与环境变量
		return ""
	}
	return *path
}

func main() {
	// 1. 初始化配置
	config.Init(configPath())
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库和 Redis
	database.InitMySQL(cfg.Database.MySQL.DSN)
	defer database.CloseMySQL()
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// 4. 可选组件：Kafka / Elasticsearch / MinIO
	var publisher service.EventPublisher = kafka.NopPublisher{}
	var producer *kafka.Producer
	if cfg.Kafka.Enabled() {
		producer = kafka.NewProducer(cfg.Kafka)
		publisher = producer
		log.Infof("Kafka 生产者已启用，主题: %s", cfg.Kafka.Topic)
	} else {
		log.Warnf("未配置 KAFKA_BROKERS，聊天事件不会投递")
	}

	var searcher service.TurnSearcher
	var esClient *es.Client
	if cfg.Elasticsearch.Enabled() {
		c, err := es.NewClient(cfg.Elasticsearch, nil)
		if err != nil {
			log.Errorf("Elasticsearch 初始化失败，检索不可用: %v", err)
		} else {
			esClient = c
			searcher = c
		}
	}

	var transcriptStore service.TranscriptStore
	if cfg.MinIO.Enabled() {
		store, err := storage.NewObjectStore(bgCtx, cfg.MinIO)
		if err != nil {
			log.Errorf("MinIO 初始化失败，导出不可用: %v", err)
		} else {
			transcriptStore = store
		}
	}

	// 5. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	patientRepo := repository.NewPatientRepository(database.DB)
	messageRepo := repository.NewChatMessageRepository(database.DB)
	blacklist := repository.NewTokenBlacklist(database.RDB)

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	resolver := llm.NewResolver(cfg.AI)
	userService := service.NewUserService(userRepo, blacklist, jwtManager)
	patientService := service.NewPatientService(patientRepo)
	chatService := service.NewChatService(patientRepo, messageRepo, resolver, publisher)
	searchService := service.NewSearchService(searcher)
	transcriptService := service.NewTranscriptService(patientService, chatService, transcriptStore)

	// 7. 启动后台 Kafka 消费者，将聊天记录写入检索索引
	consumerDone := make(chan struct{})
	if cfg.Kafka.Enabled() && esClient != nil {
		consumer := kafka.NewConsumer(cfg.Kafka, pipeline.NewIndexer(esClient), database.RDB)
		go func() {
			defer close(consumerDone)
			consumer.Run(bgCtx)
		}()
	} else {
		close(consumerDone)
	}

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery(), middleware.CORS(cfg.Server.AllowedOrigins()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 9. 注册路由
	auth := middleware.AuthMiddleware(jwtManager, userService)
	userHandler := handler.NewUserHandler(userService)
	patientHandler := handler.NewPatientHandler(patientService)
	chatHandler := handler.NewChatHandler(chatService, userService, jwtManager)
	conversationHandler := handler.NewConversationHandler(chatService, transcriptService)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/auth/refreshToken", handler.NewAuthHandler(userService).RefreshToken)

		users := apiV1.Group("/users")
		{
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)

			authed := users.Group("/")
			authed.Use(auth)
			{
				authed.GET("/me", userHandler.GetProfile)
				authed.POST("/logout", userHandler.Logout)
			}
		}

		patients := apiV1.Group("/patients")
		patients.Use(auth)
		{
			patients.GET("", patientHandler.List)
			patients.POST("", patientHandler.Create)
			patients.GET("/:id", patientHandler.Get)
			patients.PUT("/:id", patientHandler.Update)
			patients.PATCH("/:id", patientHandler.Update)
			patients.DELETE("/:id", patientHandler.Delete)
		}

		chat := apiV1.Group("/chat")
		chat.Use(auth)
		{
			chat.POST("", chatHandler.SendMessage)
			chat.GET("", conversationHandler.GetHistory)
			chat.GET("/search", handler.NewSearchHandler(searchService).SearchTurns)
			chat.GET("/export", conversationHandler.Export)
		}
	}
	r.GET("/chat/:token", chatHandler.Handle)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "Not found", "data": nil})
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	stopBackground()
	select {
	case <-consumerDone:
	case <-ctx.Done():
		log.Warnf("等待 Kafka 消费者退出超时")
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Errorf("关闭 Kafka 生产者失败: %v", err)
		}
	}
	if database.RDB != nil {
		_ = database.RDB.Close()
	}

	log.Info("服务已优雅关闭")
}
