package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func setupProvider(t *testing.T) {
	t.Helper()
	SetPropagator()
	provider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
}

func TestMiddlewareStartsServerSpan(t *testing.T) {
	setupProvider(t)
	gin.SetMode(gin.TestMode)

	var sc trace.SpanContext
	r := gin.New()
	r.Use(Middleware("tillway"))
	r.GET("/ping", func(c *gin.Context) {
		sc = trace.SpanContextFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if !sc.IsValid() {
		t.Fatal("handler context carries no span")
	}
}

func TestMiddlewareContinuesPropagatedTrace(t *testing.T) {
	setupProvider(t)
	gin.SetMode(gin.TestMode)

	var sc trace.SpanContext
	r := gin.New()
	r.Use(Middleware("tillway"))
	r.GET("/ping", func(c *gin.Context) {
		sc = trace.SpanContextFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if sc.TraceID().String() != traceID {
		t.Fatalf("expected trace %s to continue, got %s", traceID, sc.TraceID())
	}
}

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	got := SafeAttributes(
		attribute.String("http.method", "GET"),
		attribute.String("authorization", "Bearer abc"),
		attribute.String("customer_identifier", "+15550102030"),
	)
	if len(got) != 1 || got[0].Key != "http.method" {
		t.Fatalf("sensitive attributes not filtered: %+v", got)
	}
}
