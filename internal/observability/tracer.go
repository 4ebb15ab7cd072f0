package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan creates a new internal span with the given name and attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// RecordRetry annotates the span in ctx with the attempt number about to
// run, so traces show how much of the statement's latency went to retries.
func RecordRetry(ctx context.Context, attempt int) {
	trace.SpanFromContext(ctx).AddEvent("retry",
		trace.WithAttributes(AttrAttempt.Int(attempt)))
}

// SetSpanError marks the span as errored.
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Common attribute keys for data-layer spans.
var (
	AttrDatabase  = attribute.Key("db.name")
	AttrTable     = attribute.Key("db.sql.table")
	AttrStatement = attribute.Key("db.statement")
	AttrDialect   = attribute.Key("db.system")
	AttrAttempt   = attribute.Key("db.attempt")
)
