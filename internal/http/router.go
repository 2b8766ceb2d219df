package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/bookbalance/backend/internal/arbiter"
	"github.com/bookbalance/backend/internal/config"
	"github.com/bookbalance/backend/internal/db"
	"github.com/bookbalance/backend/internal/engine"
	"github.com/bookbalance/backend/internal/http/handlers"
	"github.com/bookbalance/backend/internal/http/middleware"
	"github.com/bookbalance/backend/internal/territory"

	_ "github.com/bookbalance/backend/docs"
)

func Router(cfg config.Config, store *db.Store, reviewer arbiter.Reviewer, optimizer engine.Optimizer, resolver territory.Resolver, mappings map[string]string, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := handlers.New(store, reviewer, optimizer, resolver, mappings, logger, cfg)

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.GET("/accounts", h.AccountsList)
		api.GET("/accounts/:id", h.AccountDetails)
		api.GET("/reps", h.RepsList)
		api.GET("/proposals", h.ProposalsList)
		api.GET("/runs/latest", h.RunsLatest)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/import", h.Import)
		admin.POST("/process", h.Process)
		admin.POST("/accounts/:id/reassign", h.Reassign)
		admin.POST("/territories/resolve", h.ResolveTerritories)
		admin.GET("/debug/eligibility", h.DebugEligibility)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
