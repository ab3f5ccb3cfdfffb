package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lasttime-backend/internal/http/response"
	"github.com/yungbote/lasttime-backend/internal/platform/ctxutil"
	"github.com/yungbote/lasttime-backend/internal/platform/logger"
	"github.com/yungbote/lasttime-backend/internal/services"
)

type RateLimitMiddleware struct {
	log     *logger.Logger
	limiter services.RateLimiter
	budgets map[string]int
	enabled bool
	now     func() time.Time
}

func NewRateLimitMiddleware(log *logger.Logger, limiter services.RateLimiter, budgets map[string]int, enabled bool) *RateLimitMiddleware {
	if budgets == nil {
		budgets = services.DefaultBudgets()
	}
	return &RateLimitMiddleware{
		log:     log.With("middleware", "RateLimitMiddleware"),
		limiter: limiter,
		budgets: budgets,
		enabled: enabled && limiter != nil,
		now:     time.Now,
	}
}

func (m *RateLimitMiddleware) budget(bucket string) int {
	if n, ok := m.budgets[bucket]; ok && n > 0 {
		return n
	}
	if n, ok := m.budgets[services.BucketDefault]; ok && n > 0 {
		return n
	}
	return services.DefaultBudgets()[services.BucketDefault]
}

// Limit admits a request against bucket's budget. The key includes the user
// id only when Authenticate attached a verified identity.
func (m *RateLimitMiddleware) Limit(bucket string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled {
			c.Next()
			return
		}
		userID := ""
		if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
			userID = rd.UserID
		}
		limit := m.budget(bucket)
		d, err := m.limiter.Admit(c.Request.Context(), services.ClientKey(c.ClientIP(), userID), bucket, limit)
		if err != nil {
			m.log.Warn("Rate limiter unavailable; admitting request", "bucket", bucket, "error", err)
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		if !d.Allowed {
			secs := int(d.RetryAfter(m.now()).Round(time.Second) / time.Second)
			if secs < 1 {
				secs = 1
			}
			h.Set("Retry-After", strconv.Itoa(secs))
			m.log.Info("Rate limit exceeded", "bucket", bucket, "user_id", userID)
			response.RespondError(c, http.StatusTooManyRequests, "rate_limited", errors.New("rate limit exceeded"))
			return
		}
		c.Next()
	}
}
