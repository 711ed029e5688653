package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"messenger/internal/config"
	"messenger/internal/db"
	apihttp "messenger/internal/http"
	"messenger/internal/repository"
	"messenger/internal/service"
	"messenger/internal/ws"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Ping(ctx, pool); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)
	conversationRepo := repository.NewPgConversationRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)

	var (
		tokenStore service.RefreshTokenStore
		presence   ws.Presence = ws.NopPresence{}
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
			presence = ws.NewRedisPresence(redisClient, logger, time.Duration(cfg.PresenceTTLSeconds)*time.Second)
		}
		cancel()
	}

	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)

	chatSvc := service.NewChatService(logger, userRepo, conversationRepo, messageRepo)
	userSvc := service.NewUserService(logger, userRepo)
	registry := ws.NewRegistry(logger)

	authHandler := apihttp.NewAuthHandler(logger, userSvc, jwtSvc)
	convHandler := apihttp.NewConversationHandler(logger, chatSvc, userSvc)
	wsHandler := apihttp.NewWSHandler(logger, jwtSvc, chatSvc, registry, presence)
	router := apihttp.NewRouter(logger, jwtSvc, authHandler, convHandler, wsHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
