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

	"picvault-go/internal/config"
	"picvault-go/internal/handler"
	"picvault-go/internal/middleware"
	"picvault-go/internal/model"
	"picvault-go/internal/pipeline"
	"picvault-go/internal/repository"
	"picvault-go/internal/service"
	"picvault-go/pkg/database"
	"picvault-go/pkg/es"
	"picvault-go/pkg/kafka"
	"picvault-go/pkg/log"
	"picvault-go/pkg/storage"
	"picvault-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、对象存储、ES 与 Kafka
	database.InitMySQL(cfg.Database.MySQL.DSN)
	if err := database.DB.AutoMigrate(&model.User{}, &model.ImageMetadata{}); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)

	store, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("对象存储初始化失败: %v", err)
	}
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	userRepository := repository.NewUserRepository(database.DB)
	imageRepository := repository.NewImageRepository(database.DB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	userService := service.NewUserService(userRepository, jwtManager, database.RDB)
	imageService := service.NewImageService(
		imageRepository, store, cfg.Upload, cfg.MinIO, cfg.Elasticsearch, kafka.ProduceImageEvent)

	// 6. 启动后台 Kafka 消费者，维护 Elasticsearch 检索索引
	indexer := pipeline.NewIndexer(cfg.Elasticsearch.IndexName)
	go kafka.StartConsumer(cfg.Kafka, indexer)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	userHandler := handler.NewUserHandler(userService)
	authHandler := handler.NewAuthHandler(userService)
	imageHandler := handler.NewImageHandler(imageService)
	healthHandler := handler.NewHealthHandler(map[string]handler.HealthCheck{
		"mysql": func(ctx context.Context) error {
			sqlDB, err := database.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return database.RDB.Ping(ctx).Err()
		},
		"minio": store.Ping,
		"elasticsearch": func(ctx context.Context) error {
			res, err := es.ESClient.Ping(es.ESClient.Ping.WithContext(ctx))
			if err != nil {
				return err
			}
			defer res.Body.Close()
			if res.IsError() {
				return errors.New(res.Status())
			}
			return nil
		},
	})

	// 8. 注册路由
	api := r.Group("/api")
	{
		api.GET("/health", healthHandler.Health)

		// Auth 路由组
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)

			// 需要认证的路由
			authed := auth.Group("/")
			authed.Use(middleware.AuthMiddleware(userService))
			{
				authed.GET("/verify", authHandler.Verify)
				authed.POST("/logout", authHandler.Logout)
			}
		}

		// 用户管理路由组
		users := api.Group("/users")
		{
			users.POST("", userHandler.Create)
			users.GET("", userHandler.List)
			users.GET("/username/:username", userHandler.GetByUsername)
			users.GET("/:user_id", userHandler.GetByID)
			users.PUT("/:user_id", userHandler.Update)
			users.DELETE("/:user_id", userHandler.Delete)
		}

		// 图片管理路由组
		images := api.Group("/images")
		{
			images.POST("/upload", imageHandler.Upload)
			images.GET("/directories", imageHandler.ListDirectories)
			images.GET("/search", imageHandler.Search)
			images.POST("/:directory_name/bulk-upload", imageHandler.BulkUpload)
			images.GET("/:directory_name", imageHandler.List)
			images.DELETE("/:directory_name", imageHandler.DeleteDirectory)
			images.GET("/:directory_name/:file_name", imageHandler.Download)
			images.GET("/:directory_name/:file_name/info", imageHandler.Info)
			images.DELETE("/:directory_name/:file_name", imageHandler.Delete)
		}
	}

	// 9. 启动 HTTP 服务器并实现优雅停机
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

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
