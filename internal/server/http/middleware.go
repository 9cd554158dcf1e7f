package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"symcheck/internal/logging"
	"symcheck/internal/observability"
)

// JSONMiddleware rejects bodies that are not JSON.
func JSONMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		contentType := c.GetHeader("Content-Type")
		if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, APIResponse{
				Success: false,
				Error:   "Content-Type must be application/json",
			})
			return
		}
		c.Next()
	}
}

// RequestLogMiddleware writes one access line per request.
func RequestLogMiddleware(logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("%s %s -> %d (%s)", c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

// TracingMiddleware opens a server span per request and tags it with the
// session ID from the route, when present.
func TracingMiddleware(tracer *observability.TracerProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := c.Param("id"); id != "" {
			ctx = observability.ContextWithSessionID(ctx, id)
		}
		ctx, span := tracer.StartSpan(ctx, observability.SpanHTTPServer,
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()),
		)
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
		var err error
		if len(c.Errors) > 0 {
			err = c.Errors.Last()
		}
		observability.EndSpan(span, err)
	}
}
