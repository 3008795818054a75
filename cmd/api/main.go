package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	redisclient "github.com/redis/go-redis/v9"

	redisadapter "github.com/iwaseano/iino-yogatest/internal/adapters/redis"
	"github.com/iwaseano/iino-yogatest/internal/blob"
	"github.com/iwaseano/iino-yogatest/internal/catalog"
	"github.com/iwaseano/iino-yogatest/internal/clock"
	"github.com/iwaseano/iino-yogatest/internal/config"
	httphandler "github.com/iwaseano/iino-yogatest/internal/http"
	"github.com/iwaseano/iino-yogatest/internal/observability"
	"github.com/iwaseano/iino-yogatest/internal/rateLimit"
	"github.com/iwaseano/iino-yogatest/internal/reservations"
	"github.com/iwaseano/iino-yogatest/internal/rules"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		log.Fatalf("invalid time zone %q: %v", cfg.TimeZone, err)
	}
	clk := clock.NewSystemClock(loc)

	objects, err := newObjectStore(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to init object store: %v", err)
	}

	var locker reservations.UniquenessLocker
	var rl *rateLimit.RateLimiter
	if cfg.RedisAddr != "" {
		redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
		redisLocker := redisadapter.NewLocker(redisClient)
		locker = redisLocker
		rl = rateLimit.NewRateLimiter(redisLocker)
	}

	cat := catalog.Default()
	engine := rules.NewEngine(cat)
	store := reservations.NewStore(objects, clk, logger)
	svc := reservations.NewService(store, engine, cat, locker, clk, logger)

	handlers := httphandler.NewHandlers(svc)
	r := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}

func newObjectStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	if cfg.StorageDriver == "memory" {
		return blob.NewMemoryStore(), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = &cfg.S3Endpoint
			o.UsePathStyle = true
		}
	})
	return blob.NewS3Store(client, cfg.S3Bucket), nil
}
