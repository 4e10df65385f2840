package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func TestNewResource(t *testing.T) {
	res := newResource("storefront", "0.1.0", "staging")

	values := map[attribute.Key]string{}
	for _, kv := range res.Attributes() {
		values[kv.Key] = kv.Value.AsString()
	}

	assert.Equal(t, "storefront", values[semconv.ServiceNameKey])
	assert.Equal(t, "0.1.0", values[semconv.ServiceVersionKey])
	assert.Equal(t, "staging", values[semconv.DeploymentEnvironmentKey])
}

func TestNewSampler(t *testing.T) {
	traceID := oteltrace.TraceID{0x01}

	decide := func(ratio float64, parent context.Context) trace.SamplingDecision {
		return newSampler(ratio).ShouldSample(trace.SamplingParameters{
			ParentContext: parent,
			TraceID:       traceID,
			Name:          "checkout",
		}).Decision
	}

	t.Run("full ratio records every root", func(t *testing.T) {
		assert.Equal(t, trace.RecordAndSample, decide(1, context.Background()))
	})

	t.Run("zero ratio drops roots", func(t *testing.T) {
		assert.Equal(t, trace.Drop, decide(0, context.Background()))
	})

	t.Run("sampled parent wins over zero ratio", func(t *testing.T) {
		parent := oteltrace.ContextWithSpanContext(context.Background(), oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     oteltrace.SpanID{0x02},
			TraceFlags: oteltrace.FlagsSampled,
			Remote:     true,
		}))
		assert.Equal(t, trace.RecordAndSample, decide(0, parent))
	})
}

func TestWithHTTPRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /track/{trackingNumber}", WithHTTPRoute(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	ctx, span := tp.Tracer("test").Start(context.Background(), "request")
	req := httptest.NewRequest(http.MethodGet, "/track/SW-12345678", nil).WithContext(ctx)
	mux.ServeHTTP(httptest.NewRecorder(), req)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Attributes(), semconv.HTTPRoute("GET /track/{trackingNumber}"))
}
