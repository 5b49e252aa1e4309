// Package context carries request-scoped values through the engine: the
// trace of the request, the actor behind it and the document it concerns.
package context

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext correlates log lines and spans of one request.
type TraceContext struct {
	TraceID   string
	RequestID string
}

type traceContextKey struct{}

func WithTrace(ctx context.Context, t *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, t)
}

func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetRequestID returns the request ID from context or "".
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// NewTraceContext builds the trace of a request. The trace ID follows the
// active span when a tracer provider is installed and is a fresh id
// otherwise. An empty requestID is generated.
func NewTraceContext(ctx context.Context, requestID string) *TraceContext {
	if requestID == "" {
		requestID = newID()
	}
	traceID := newID()
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	return &TraceContext{TraceID: traceID, RequestID: requestID}
}

func newID() string {
	u, err := uuid.NewV7()
	if err != nil {
		u = uuid.New()
	}
	return strings.ReplaceAll(u.String(), "-", "")
}

// Detach returns a background context that keeps the trace, actor and
// document of ctx but not its cancellation. Validations scheduled by a
// request outlive it.
func Detach(ctx context.Context) context.Context {
	out := context.Background()
	if t := GetTrace(ctx); t != nil {
		out = WithTrace(out, t)
	}
	if a := GetActor(ctx); a != nil {
		out = WithActor(out, a)
	}
	if doc := GetDocumentID(ctx); doc != "" {
		out = WithDocument(out, doc)
	}
	return out
}
