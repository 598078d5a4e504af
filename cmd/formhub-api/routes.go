package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/formhub/formhub-api/internal/handler"
	"github.com/formhub/formhub-api/internal/middleware"
	"github.com/formhub/formhub-api/internal/service"
	"github.com/formhub/formhub-api/pkg/config"
	"github.com/formhub/formhub-api/pkg/logger"
	corsmiddleware "github.com/formhub/formhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/formhub/formhub-api/pkg/middleware/requestid"
	"github.com/formhub/formhub-api/pkg/storage"
)

type routerHandlers struct {
	auth    *handler.AuthHandler
	users   *handler.UserHandler
	forms   *handler.FormHandler
	grants  *handler.GrantHandler
	metrics *service.MetricsService
	authSvc *service.AuthService
}

func newRouter(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, media *storage.MediaStore, h routerHandlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(h.metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Uploaded media answers are served straight from disk.
	r.Static("/media", media.BaseDir())

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.auth.Login)
		auth.GET("/me", middleware.JWT(h.authSvc), h.auth.Me)
	}

	users := api.Group("/users", middleware.JWT(h.authSvc), middleware.RequireAdmin())
	{
		users.GET("", h.users.List)
		users.POST("", h.users.Create)
		users.POST("/:id/reset-password", h.users.ResetPassword)
		users.DELETE("/:id", h.users.Deactivate)
	}

	forms := api.Group("/forms")
	{
		// Share-token routes accept anonymous respondents but still
		// attach the caller's identity when a token is supplied.
		shared := forms.Group("/shared", middleware.OptionalJWT(h.authSvc))
		shared.GET("/:token", h.forms.GetShared)
		shared.POST("/:token/responses", h.forms.Submit)

		authed := forms.Group("", middleware.JWT(h.authSvc))
		authed.GET("", h.forms.List)
		authed.POST("", h.forms.Create)
		authed.GET("/:id", h.forms.Get)
		authed.PUT("/:id", h.forms.Update)
		authed.DELETE("/:id", h.forms.Delete)
		authed.GET("/:id/responses", h.forms.Responses)
		authed.GET("/:id/export", h.forms.Export)
	}

	grants := api.Group("/grants", middleware.JWT(h.authSvc))
	{
		grants.GET("", h.grants.List)
		grants.POST("", h.grants.Create)
		grants.DELETE("/:id", h.grants.Delete)
	}

	return r
}
