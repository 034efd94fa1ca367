package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxHeaderAttrLen caps header-sourced span attributes; webhook callers
// control these headers.
const maxHeaderAttrLen = 128

// TracingConfig holds settings for the request tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// Tracing returns request tracing middleware. It wraps otelgin and tags
// each span with the request ID, the webhook source marketplace and the
// SKU route parameter when present, then marks 4xx/5xx responses as
// errored spans.
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	base := otelgin.Middleware(cfg.ServiceName)

	return func(c *gin.Context) {
		base(c)

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		if requestID := headerAttr(c, "X-Request-ID"); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		if source := headerAttr(c, "X-Webhook-Source"); source != "" {
			span.SetAttributes(attribute.String("webhook.source", source))
		}
		if sku := c.Param("sku"); sku != "" {
			span.SetAttributes(attribute.String("listing.sku", sku))
		}

		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(status))
			span.SetAttributes(attribute.Int("http.status_code", status))
		}
	}
}

func headerAttr(c *gin.Context, name string) string {
	v := c.GetHeader(name)
	if len(v) > maxHeaderAttrLen {
		return v[:maxHeaderAttrLen]
	}
	return v
}
