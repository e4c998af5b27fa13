package studio

import (
	"net/http"
	"strings"

	"github.com/Fl0rencess720/inkwell/pkg/common/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const unmatchedRoute = "unmatched"

// tracingMiddleware opens one server span per request, continuing any trace
// the caller propagated, and echoes the request ID back to the client.
func tracingMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("inkwell.http")

	return func(c *gin.Context) {
		route := routeOf(c)
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		requestID := incomingRequestID(c)
		if requestID == "" {
			requestID = observability.RequestIDFromContext(ctx)
		}
		ctx = observability.ContextWithRequestID(ctx, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(observability.RequestIDHeader, requestID)

		span.SetAttributes(attribute.String("request.id", requestID))
		if slug := c.Param("slug"); slug != "" {
			span.SetAttributes(attribute.String("inkwell.post", slug))
		}

		c.Next()

		finishSpan(span, c)
	}
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return unmatchedRoute
}

func incomingRequestID(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(observability.RequestIDHeader))
}

func finishSpan(span trace.Span, c *gin.Context) {
	status := c.Writer.Status()
	span.SetAttributes(attribute.Int("http.status_code", status))

	if last := c.Errors.Last(); last != nil {
		span.RecordError(last.Err)
		span.SetStatus(codes.Error, c.Errors.String())
		return
	}
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}
