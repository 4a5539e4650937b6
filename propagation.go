package samplez

import (
	"context"
	"os"
)

// Environment variables read by PropagationContextFromEnvironment.
const (
	EnvSentryTrace = "SENTRY_TRACE"
	EnvBaggage     = "SENTRY_BAGGAGE"
)

// PropagationContext is the trace identity of the current logical scope. It
// is a value: replace it, do not mutate a shared copy.
type PropagationContext struct {
	DynamicSamplingContext *DynamicSamplingContext
	TraceID                TraceID
	SpanID                 SpanID
	ParentSpanID           SpanID
	ParentSampled          Sampled
	SampleRand             float64
}

// NewPropagationContext starts a new trace with fresh identifiers.
func NewPropagationContext() PropagationContext {
	return PropagationContext{
		TraceID:    NewTraceID(),
		SpanID:     NewSpanID(),
		SampleRand: newSampleRand(),
	}
}

// PropagationContextFromHeaders continues the trace described by the inbound
// sentry-trace and baggage headers, or starts a new one when they are
// malformed or belong to another organization. cfg may be nil.
func PropagationContextFromHeaders(cfg OptionsProvider, sentryTrace, baggage string) PropagationContext {
	return continuePropagation(cfg, sentryTrace, "", baggage)
}

// PropagationContextFromEnvironment continues the trace described by the
// SENTRY_TRACE and SENTRY_BAGGAGE environment variables.
func PropagationContextFromEnvironment(cfg OptionsProvider) PropagationContext {
	return continuePropagation(cfg, os.Getenv(EnvSentryTrace), "", os.Getenv(EnvBaggage))
}

// WithTraceID returns a copy using id.
func (pc PropagationContext) WithTraceID(id TraceID) PropagationContext {
	pc.TraceID = id
	return pc
}

// WithSpanID returns a copy using id.
func (pc PropagationContext) WithSpanID(id SpanID) PropagationContext {
	pc.SpanID = id
	return pc
}

// WithParentSpanID returns a copy using id.
func (pc PropagationContext) WithParentSpanID(id SpanID) PropagationContext {
	pc.ParentSpanID = id
	return pc
}

// WithDynamicSamplingContext returns a copy carrying dsc.
func (pc PropagationContext) WithDynamicSamplingContext(dsc *DynamicSamplingContext) PropagationContext {
	pc.DynamicSamplingContext = dsc
	return pc
}

// SentryTrace returns the sentry-trace header value for outbound requests.
func (pc PropagationContext) SentryTrace() string {
	return FormatSentryTrace(pc.TraceID, pc.SpanID, pc.ParentSampled)
}

// Traceparent returns the W3C traceparent header value for outbound requests.
func (pc PropagationContext) Traceparent() string {
	return FormatTraceparent(pc.TraceID, pc.SpanID, pc.ParentSampled)
}

// Baggage returns the baggage header value. Without an inbound dynamic
// sampling context one is derived from the configuration.
func (pc PropagationContext) Baggage(cfg OptionsProvider, scope ScopeProvider) string {
	dsc := pc.DynamicSamplingContext
	if dsc == nil {
		dsc = DynamicSamplingContextFromOptions(cfg, scope, pc)
	}
	return dsc.String()
}

// TraceContext returns the payload shape of the propagation identity.
func (pc PropagationContext) TraceContext() TraceContext {
	return TraceContext{
		TraceID:      pc.TraceID,
		SpanID:       pc.SpanID,
		ParentSpanID: pc.ParentSpanID,
	}
}

// TransactionContext returns the context of a transaction continuing pc.
func (pc PropagationContext) TransactionContext(name, op string) TransactionContext {
	md := TransactionMetadata{
		DynamicSamplingContext: pc.DynamicSamplingContext,
		SampleRand:             Float(pc.SampleRand),
	}
	if raw, ok := pc.DynamicSamplingContext.Get(DSCSampleRate); ok {
		md.ParentSamplingRate = Float(parseRate(raw))
	}
	return NewTransactionContext(name, op).
		WithTraceID(pc.TraceID).
		WithParentSpanID(pc.ParentSpanID).
		WithParentSampled(pc.ParentSampled).
		WithMetadata(md)
}

// ContextWithPropagation returns a context carrying pc.
func ContextWithPropagation(parent context.Context, pc PropagationContext) context.Context {
	return context.WithValue(parent, propagationKey, pc)
}

// PropagationFromContext returns the propagation context stored in ctx.
func PropagationFromContext(ctx context.Context) (PropagationContext, bool) {
	if ctx == nil {
		return PropagationContext{}, false
	}
	pc, ok := ctx.Value(propagationKey).(PropagationContext)
	return pc, ok
}
