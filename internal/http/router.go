package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/lasttime-backend/internal/http/handlers"
	httpMW "github.com/yungbote/lasttime-backend/internal/http/middleware"
	"github.com/yungbote/lasttime-backend/internal/http/response"
	"github.com/yungbote/lasttime-backend/internal/platform/logger"
	"github.com/yungbote/lasttime-backend/internal/services"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	TrustedProxies []string

	AuthMiddleware      *httpMW.AuthMiddleware
	RateLimitMiddleware *httpMW.RateLimitMiddleware

	CategoryHandler *httpH.CategoryHandler
	ActivityHandler *httpH.ActivityHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	r := gin.New()
	r.RedirectTrailingSlash = false
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "lasttime"
	}
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// guarded builds authenticate -> rate limit -> (require identity) -> handler.
	guarded := func(bucket string, requireAuth bool, h gin.HandlerFunc) []gin.HandlerFunc {
		chain := []gin.HandlerFunc{}
		if cfg.AuthMiddleware != nil {
			chain = append(chain, cfg.AuthMiddleware.Authenticate())
		}
		if cfg.RateLimitMiddleware != nil {
			chain = append(chain, cfg.RateLimitMiddleware.Limit(bucket))
		}
		if requireAuth && cfg.AuthMiddleware != nil {
			chain = append(chain, cfg.AuthMiddleware.RequireIdentity())
		}
		return append(chain, h)
	}
	// both "/x" and "/x/" are served since trailing-slash redirects are off
	handle := func(method, path, bucket string, h gin.HandlerFunc) {
		chain := guarded(bucket, true, h)
		r.Handle(method, path, chain...)
		r.Handle(method, path+"/", chain...)
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", guarded(services.BucketDefault, false, cfg.HealthHandler.HealthCheck)...)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	// Categories
	if cfg.CategoryHandler != nil {
		handle(http.MethodPost, "/categories", services.BucketCategoriesCreate, cfg.CategoryHandler.CreateCategory)
		handle(http.MethodGet, "/categories", services.BucketCategoriesList, cfg.CategoryHandler.ListCategories)
		handle(http.MethodDelete, "/categories/:category_id", services.BucketCategoriesDelete, cfg.CategoryHandler.DeleteCategory)
	}

	// Activity records
	if cfg.ActivityHandler != nil {
		handle(http.MethodPost, "/activity", services.BucketActivityCreate, cfg.ActivityHandler.UpsertActivity)
		handle(http.MethodGet, "/activity", services.BucketActivityList, cfg.ActivityHandler.ListActivities)
		handle(http.MethodGet, "/activity/:activity", services.BucketActivityGet, cfg.ActivityHandler.GetActivity)
		handle(http.MethodDelete, "/activity/:activity", services.BucketActivityDelete, cfg.ActivityHandler.DeleteActivity)
	}

	r.NoRoute(guarded(services.BucketDefault, false, func(c *gin.Context) {
		response.RespondError(c, http.StatusNotFound, "not_found", errors.New("route not found"))
	})...)

	return r, nil
}
