// Package api exposes the control and status HTTP surface
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/autodms/funnel/internal/cache"
	"github.com/autodms/funnel/internal/db"
	"github.com/autodms/funnel/internal/engine"
	"github.com/autodms/funnel/internal/monitor"
	"github.com/autodms/funnel/pkg/logging"
)

// Router sets up API routes
type Router struct {
	engine  *engine.Engine
	monitor *monitor.Manager
	db      *db.DB
	cache   *cache.Cache
	logger  *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(eng *engine.Engine, mon *monitor.Manager, database *db.DB, redisCache *cache.Cache) *Router {
	return &Router{
		engine:  eng,
		monitor: mon,
		db:      database,
		cache:   redisCache,
		logger:  logging.GetLogger().With(zap.String("component", "api-router")),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(router *gin.Engine) {
	router.GET("/health", r.healthHandler)
	router.GET("/.well-known/healthcheck.json", r.healthHandler)

	accounts := router.Group("/accounts/:id")
	{
		accounts.GET("/status", r.statusHandler)
		accounts.POST("/monitor/start", r.startHandler)
		accounts.POST("/monitor/stop", r.stopHandler)
	}

	router.POST("/monitor/start-all", r.startAllHandler)
	router.POST("/monitor/stop-all", r.stopAllHandler)
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	if err := r.db.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"service": "funnel-engine",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"service": "funnel-engine",
	})
}

// statusHandler returns the account's automation snapshot
func (r *Router) statusHandler(c *gin.Context) {
	accountID := c.Param("id")

	status, err := r.engine.Status(c.Request.Context(), accountID)
	if err != nil {
		r.logger.Error("Failed to build status",
			zap.String("account_id", accountID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build status"})
		return
	}

	status.Monitoring = r.monitor.Running(accountID)
	c.JSON(http.StatusOK, status)
}

// startHandler starts the account's poll monitor
func (r *Router) startHandler(c *gin.Context) {
	accountID := c.Param("id")

	if err := r.monitor.Start(c.Request.Context(), accountID); err != nil {
		if errors.Is(err, monitor.ErrUnknownAccount) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not registered"})
			return
		}
		r.logger.Error("Failed to start monitor",
			zap.String("account_id", accountID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start monitor"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"account_id": accountID, "monitoring": true})
}

// stopHandler stops the account's poll monitor
func (r *Router) stopHandler(c *gin.Context) {
	accountID := c.Param("id")
	r.monitor.Stop(accountID)
	c.JSON(http.StatusOK, gin.H{"account_id": accountID, "monitoring": false})
}

// startAllHandler starts monitors for all enabled accounts
func (r *Router) startAllHandler(c *gin.Context) {
	if err := r.monitor.StartAll(c.Request.Context()); err != nil {
		r.logger.Error("Failed to start monitors", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start monitors"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"monitoring": true})
}

// stopAllHandler stops every running monitor
func (r *Router) stopAllHandler(c *gin.Context) {
	r.monitor.StopAll()
	c.JSON(http.StatusOK, gin.H{"monitoring": false})
}

// Shutdown stops background work owned by the API layer
func (r *Router) Shutdown(_ context.Context) {
	r.monitor.StopAll()
}
