package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Middleware opens a server span per request, continuing an incoming trace
// when the caller propagated one. The span lands on the request context so
// downstream code and logs pick up the trace identifiers.
func Middleware(service string) gin.HandlerFunc {
	tracer := otel.Tracer(service)
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+strings.ToUpper(c.Request.Method),
			trace.WithSpanKind(trace.SpanKindServer))
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		// The matched route is only known after the handler ran.
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		span.SetName("HTTP " + strings.ToUpper(c.Request.Method) + " " + route)
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
		)...)
		if c.Writer.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, "server error")
			for _, ginErr := range c.Errors {
				if safeErr := SafeError(ginErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
		}
		span.End()
	}
}
