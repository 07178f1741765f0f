package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"godigital/config"
	"godigital/internal/api/router"
	"godigital/internal/api/upload"
	"godigital/internal/pkg/blobstore"
	"godigital/internal/pkg/cache"
	"godigital/internal/pkg/database"
	"godigital/internal/pkg/logger"
	"godigital/internal/pkg/metrics"
	"godigital/internal/pkg/middleware"
	"godigital/internal/pkg/shopify"
	"godigital/internal/repository/productrepo"
	"godigital/internal/service/storefront"
	"godigital/internal/service/uploadservice"
)

func main() {
	cfg := config.LoadConfig()
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("Configurações carregadas.", map[string]interface{}{"env": cfg.Environment})

	ctx := context.Background()

	// 1. Infraestrutura (criada uma única vez e injetada)
	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL, database.DefaultPoolConfig)
	if err != nil {
		log.Fatal("Falha ao conectar ao banco de dados.", err)
	}
	defer db.Close()
	log.Info("Conexão PostgreSQL estabelecida.", nil)

	cacheClient, err := cache.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("Falha ao conectar ao Redis.", err)
	}
	defer cacheClient.Close()
	log.Info("Conexão Redis estabelecida.", nil)

	blobs, err := blobstore.NewS3Store(ctx, blobstore.S3StoreConfig{
		Bucket:        cfg.S3Bucket,
		Region:        cfg.S3Region,
		Endpoint:      cfg.S3Endpoint,
		PublicBaseURL: cfg.S3PublicBaseURL,
	})
	if err != nil {
		log.Fatal("Falha ao configurar o cliente S3.", err)
	}

	shopClient := shopify.NewClient(shopify.Config{
		Shop:       cfg.ShopifyShop,
		Token:      cfg.ShopifyToken,
		APIVersion: cfg.ShopifyAPIVersion,
		Timeout:    cfg.ShopifyTimeout,
	})

	recorder := metrics.NewRecorder()

	// 2. Repository -> Service -> Handler
	productRepo := productrepo.NewProductRepository(db, cacheClient, cfg.DBTimeout, cfg.CacheTTL, log)
	storefrontSvc := storefront.NewService(shopClient, log)
	uploadSvc := uploadservice.NewService(productRepo, blobs, storefrontSvc, recorder, log, uploadservice.Config{
		DigitalProductTag:  cfg.DigitalProductTag,
		MaxParallelUploads: cfg.MaxParallelUploads,
		MaxParallelSync:    cfg.MaxParallelSync,
	})

	uploadHandler, err := upload.NewHandler(uploadSvc, log, cfg.UploadMaxMemoryMB<<20)
	if err != nil {
		log.Fatal("Falha ao inicializar o handler de upload.", err)
	}

	limiter := middleware.RateLimiter(cacheClient, cfg.RateLimitMaxRequests, cfg.RateLimitPeriod, log)
	r := router.NewRouter(uploadHandler, limiter, recorder.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 3. Execução e Graceful Shutdown
	go func() {
		log.Info("Servidor ouvindo na porta", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Servidor falhou.", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Sinal de encerramento recebido. Desligando servidor...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Desligamento do servidor forçado.", err)
	}
	log.Info("Servidor encerrado com sucesso.", nil)
}
