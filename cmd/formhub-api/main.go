package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	_ "github.com/formhub/formhub-api/api/swagger"
	"github.com/formhub/formhub-api/internal/bootstrap"
	"github.com/formhub/formhub-api/internal/handler"
	"github.com/formhub/formhub-api/internal/repository"
	"github.com/formhub/formhub-api/internal/service"
	"github.com/formhub/formhub-api/pkg/cache"
	"github.com/formhub/formhub-api/pkg/config"
	"github.com/formhub/formhub-api/pkg/database"
	"github.com/formhub/formhub-api/pkg/logger"
	"github.com/formhub/formhub-api/pkg/storage"
)

// @title FormHub API
// @version 1.0.0
// @description Form builder and response collection backend
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logr.Sugar().Fatalw("failed to run migrations", "error", err)
	}

	media, err := storage.NewMediaStore(cfg.Storage.MediaDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init media storage", "error", err)
	}

	validate := validator.New()
	metricsService := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	formRepo := repository.NewFormRepository(db)
	permRepo := repository.NewPermissionRepository(db)
	responseRepo := repository.NewResponseRepository(db)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	userService := service.NewUserService(userRepo, validate, logr)

	var formService *service.FormService
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer client.Close()
		formService = service.NewFormService(formRepo, permRepo, repository.NewCacheRepository(client), cfg.Cache.FormTTL, metricsService, logr)
	} else {
		formService = service.NewFormService(formRepo, permRepo, nil, cfg.Cache.FormTTL, metricsService, logr)
	}

	grantService := service.NewGrantService(permRepo, formRepo, userRepo, validate, logr)
	submissionService := service.NewSubmissionService(responseRepo, media, metricsService, logr)
	exportService := service.NewExportService(responseRepo, logr)

	seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := bootstrap.SeedAdmin(seedCtx, userRepo, cfg.Seed, logr); err != nil {
		cancel()
		logr.Sugar().Fatalw("failed to seed admin account", "error", err)
	}
	cancel()

	router := newRouter(cfg, logr, db, media, routerHandlers{
		auth:    handler.NewAuthHandler(authService),
		users:   handler.NewUserHandler(userService),
		forms:   handler.NewFormHandler(formService, submissionService, exportService),
		grants:  handler.NewGrantHandler(grantService),
		metrics: metricsService,
		authSvc: authService,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := router.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
