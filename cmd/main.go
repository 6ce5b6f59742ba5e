package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumachat/lumachat/internal/assistant"
	"github.com/lumachat/lumachat/internal/chat"
	"github.com/lumachat/lumachat/internal/config"
	"github.com/lumachat/lumachat/internal/countries"
	"github.com/lumachat/lumachat/internal/handler"
	"github.com/lumachat/lumachat/internal/otp"
	"github.com/lumachat/lumachat/internal/session"
	"github.com/lumachat/lumachat/internal/storage"
	"github.com/lumachat/lumachat/pkg/database"
	"github.com/lumachat/lumachat/pkg/jwt"
	pkglog "github.com/lumachat/lumachat/pkg/log"
	"github.com/lumachat/lumachat/pkg/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Level == "debug",
		ServiceName: "lumachat",
	})
	logger := pkglog.L()

	// Durable state store
	stateStore, err := newStateStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to open state store")
	}
	defer stateStore.Close()
	logger.Info().Str("driver", cfg.Storage.Driver).Msg("state store ready")

	// Rehydrate the two state containers
	ctx := context.Background()
	sessions := session.NewStore(stateStore)
	sessions.Initialize(ctx)
	chatStore := chat.NewStore(stateStore)
	chatStore.Initialize(ctx)

	// Collaborators
	generator := assistant.NewSimulated(assistant.Config{
		MinDelay: time.Duration(cfg.Assistant.MinDelayMs) * time.Millisecond,
		MaxDelay: time.Duration(cfg.Assistant.MaxDelayMs) * time.Millisecond,
	})
	chatService := chat.NewService(chatStore, generator, time.Duration(cfg.Chat.LoadMoreDelayMs)*time.Millisecond)
	otpService := otp.NewService(otp.Config{
		SendDelay:   time.Duration(cfg.OTP.SendDelayMs) * time.Millisecond,
		VerifyDelay: time.Duration(cfg.OTP.VerifyDelayMs) * time.Millisecond,
	})
	countryClient := countries.NewClient(countries.Config{
		URL:      cfg.Countries.URL,
		Timeout:  time.Duration(cfg.Countries.TimeoutSeconds) * time.Second,
		CacheTTL: time.Duration(cfg.Countries.CacheTTLMinutes) * time.Minute,
	})

	// Auth plumbing
	jwtManager, err := jwt.NewManager(time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute, cfg.Auth.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create jwt manager")
	}
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	// HTTP handler
	httpHandler := handler.NewHandler(handler.Deps{
		Sessions:       sessions,
		ChatStore:      chatStore,
		ChatService:    chatService,
		OTPService:     otpService,
		Countries:      countryClient,
		JWTManager:     jwtManager,
		AuthMiddleware: authMiddleware,
	})

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Register routes
	httpHandler.RegisterRoutes(r)

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info().Str("addr", addr).Msg("lumachat starting")
	if err := r.Run(addr); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}
}

// newStateStore opens the configured durable state backend.
func newStateStore(cfg *config.Config) (storage.StateStore, error) {
	switch cfg.Storage.Driver {
	case "file":
		return storage.NewFileStore(storage.FileConfig{BasePath: cfg.Storage.File.BasePath})

	case "redis":
		return storage.NewRedisStore(storage.RedisConfig{
			Address:  cfg.Storage.Redis.Address,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Prefix:   cfg.Storage.Redis.Prefix,
		})

	case "database":
		db, err := database.New(&database.Config{
			Driver:          cfg.Database.Driver,
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			DBName:          cfg.Database.DBName,
			SSLMode:         cfg.Database.SSLMode,
			FilePath:        cfg.Database.FilePath,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewGormStore(db)

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}
}
