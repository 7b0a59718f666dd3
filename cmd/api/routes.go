package main

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"callplane/internal/auth"
	"callplane/internal/calls"
	"callplane/internal/concurrency"
	"callplane/internal/config"
	"callplane/internal/httpapi"
	"callplane/internal/reporting"
	"callplane/internal/routing"
	"callplane/internal/store/postgres"
	"callplane/pkg/metrics"
	"callplane/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type deps struct {
	cfg  config.Config
	db   *sql.DB
	rdb  *redis.Client // nil when Redis is not configured
	auth *auth.Manager // nil when service tokens are disabled
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d deps) {
	routingStore := postgres.NewRoutingStore(d.db)
	callStore := postgres.NewCallStore(d.db)

	h := httpapi.Handlers{
		Resolver: routing.NewResolver(routingStore),
		Recorder: calls.NewRecorder(callStore),
		Reports:  reporting.NewService(callStore),
		Ready: func(ctx context.Context) error {
			if err := utils.HealthCheck(ctx, d.db, 2*time.Second); err != nil {
				return err
			}
			if d.rdb != nil {
				return utils.PingRedis(ctx, d.rdb, 2*time.Second)
			}
			return nil
		},
	}
	if d.rdb != nil {
		h.Slots = concurrency.NewService(routingStore, concurrency.NewBroker(d.rdb, d.cfg.Slots.TTL))
	}

	// public
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", metrics.Handler())

	// internal API for telephony nodes
	v1 := r.Group("/internal/v1")
	v1.Use(metrics.Middleware())
	v1.Use(requestTimeout(d.cfg.App.RequestTimeout))
	v1.Use(auth.RequireInternalCaller(d.cfg.Auth.InternalAPIToken, d.auth))
	{
		v1.GET("/route_info", h.RouteInfo)
		v1.POST("/log_call", h.LogCall)

		v1.GET("/links/:link_id/usage", h.LinkUsage)
		v1.GET("/reports/calls", h.CallsSummary)

		v1.POST("/links/:link_id/slots", h.AcquireSlot)
		v1.DELETE("/links/:link_id/slots", h.ReleaseSlot)
	}
}

// requestTimeout bounds the request context. Database work started by the
// handler is cancelled, and any open transaction rolled back, once it expires.
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.Error(ctx.Err()) //nolint:errcheck
		}
	}
}
