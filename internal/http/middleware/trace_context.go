package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/lasttime-backend/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"

	maxInboundIDLen = 128
)

// AttachTraceContext stamps every request with a request id and a trace id,
// stores them in the request context for logging, and echoes them back as
// response headers.
//
// The trace id comes from the active span when otelgin started one.
// Caller-supplied ids are only kept when they are short token strings.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID, ok := inboundID(c.GetHeader(headerRequestID))
		if !ok {
			reqID = uuid.NewString()
		}
		traceID := spanTraceID(c)
		if traceID == "" {
			if id, ok := inboundID(c.GetHeader(headerTraceID)); ok {
				traceID = id
			} else {
				traceID = uuid.NewString()
			}
		}

		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{
			TraceID:   traceID,
			RequestID: reqID,
		}))
		c.Header(headerTraceID, traceID)
		c.Header(headerRequestID, reqID)
		c.Next()
	}
}

func spanTraceID(c *gin.Context) string {
	sc := trace.SpanContextFromContext(c.Request.Context())
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// inboundID accepts [A-Za-z0-9._:-] up to maxInboundIDLen bytes.
func inboundID(raw string) (string, bool) {
	if raw == "" || len(raw) > maxInboundIDLen {
		return "", false
	}
	for i := 0; i < len(raw); i++ {
		b := raw[i]
		switch {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		case b == '-' || b == '_' || b == '.' || b == ':':
		default:
			return "", false
		}
	}
	return raw, true
}
