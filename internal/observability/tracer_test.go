package observability

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRecordRetryAnnotatesActiveSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")

	RecordRetry(ctx, 2)
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded spans = %d", len(spans))
	}
	events := spans[0].Events()
	if len(events) != 1 || events[0].Name != "retry" {
		t.Fatalf("events = %+v", events)
	}
	for _, kv := range events[0].Attributes {
		if kv.Key == AttrAttempt && kv.Value.AsInt64() == 2 {
			return
		}
	}
	t.Fatal("retry event missing the attempt attribute")
}

func TestRecordRetryWithoutSpanIsHarmless(t *testing.T) {
	RecordRetry(context.Background(), 3)
}
