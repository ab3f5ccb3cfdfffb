package app

import (
	"github.com/yungbote/lasttime-backend/internal/data/db"
	"github.com/yungbote/lasttime-backend/internal/http"
	httpH "github.com/yungbote/lasttime-backend/internal/http/handlers"
	httpMW "github.com/yungbote/lasttime-backend/internal/http/middleware"
	"github.com/yungbote/lasttime-backend/internal/platform/logger"
)

type Middleware struct {
	Auth      *httpMW.AuthMiddleware
	RateLimit *httpMW.RateLimitMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Category *httpH.CategoryHandler
	Activity *httpH.ActivityHandler
}

func wireHandlers(log *logger.Logger, store *db.Service, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(store),
		Category: httpH.NewCategoryHandler(log, services.Categories),
		Activity: httpH.NewActivityHandler(log, services.Activities),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth:      httpMW.NewAuthMiddleware(log, services.Verifier),
		RateLimit: httpMW.NewRateLimitMiddleware(log, services.RateLimiter, cfg.RateLimit.Budgets, cfg.RateLimit.Enabled),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) (*http.Server, error) {
	return http.NewServer(cfg.Server.Addr, http.RouterConfig{
		Log:                 log,
		ServiceName:         cfg.Otel.ServiceName,
		CORSOrigins:         cfg.Server.CORSOrigins,
		TrustedProxies:      cfg.Server.TrustedProxies,
		AuthMiddleware:      middleware.Auth,
		RateLimitMiddleware: middleware.RateLimit,
		CategoryHandler:     handlers.Category,
		ActivityHandler:     handlers.Activity,
		HealthHandler:       handlers.Health,
	})
}
