package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lasttime-backend/internal/http/response"
	"github.com/yungbote/lasttime-backend/internal/platform/ctxutil"
	"github.com/yungbote/lasttime-backend/internal/platform/logger"
	"github.com/yungbote/lasttime-backend/internal/services"
)

const authErrorKey = "auth_error"

type AuthMiddleware struct {
	log      *logger.Logger
	verifier services.TokenVerifier
}

func NewAuthMiddleware(log *logger.Logger, verifier services.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), verifier: verifier}
}

// Authenticate attaches the verified caller to the request context when a
// valid bearer token is present. It never rejects; RequireIdentity does.
func (am *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		if token == "" {
			c.Next()
			return
		}
		id, err := am.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			am.log.Debug("Bearer token rejected", "error", err)
			c.Set(authErrorKey, err)
			c.Next()
			return
		}
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{
			UserID:   id.UserID,
			Email:    id.Email,
			Provider: id.Provider,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (am *AuthMiddleware) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		if rd != nil && rd.UserID != "" {
			c.Next()
			return
		}
		err := errors.New("missing or invalid token")
		if v, ok := c.Get(authErrorKey); ok {
			if verr, ok := v.(error); ok {
				err = verr
			}
		}
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", err)
	}
}

func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
