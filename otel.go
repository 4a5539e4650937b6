package samplez

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// OTelSpanContext returns s as an OpenTelemetry span context. The result is
// invalid when the identifiers are not valid hex.
func (s *Span) OTelSpanContext() trace.SpanContext {
	return otelSpanContext(s.TraceID, s.SpanID, s.Sampled, false)
}

// RemoteSpanContext returns the upstream span that pc continues as an
// OpenTelemetry span context. It is invalid when pc starts a new trace.
func (pc PropagationContext) RemoteSpanContext() trace.SpanContext {
	return otelSpanContext(pc.TraceID, pc.ParentSpanID, pc.ParentSampled, true)
}

func otelSpanContext(traceID TraceID, spanID SpanID, sampled Sampled, remote bool) trace.SpanContext {
	tid, err := trace.TraceIDFromHex(traceID.String())
	if err != nil {
		return trace.SpanContext{}
	}
	sid, err := trace.SpanIDFromHex(spanID.String())
	if err != nil {
		return trace.SpanContext{}
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.TraceFlags(0).WithSampled(sampled == SampledTrue),
		Remote:     remote,
	})
}

// PropagationContextFromOTel continues the trace of an OpenTelemetry span
// context. An invalid span context starts a new trace.
func PropagationContextFromOTel(sc trace.SpanContext) PropagationContext {
	pc := NewPropagationContext()
	if !sc.IsValid() {
		return pc
	}
	pc.TraceID = TraceID(sc.TraceID().String())
	pc.ParentSpanID = SpanID(sc.SpanID().String())
	pc.ParentSampled = SampledFrom(sc.IsSampled())
	return pc
}

// OTel converts b to OpenTelemetry baggage. OpenTelemetry baggage is
// unordered, so member order is not preserved. Members OpenTelemetry rejects
// are skipped and reported in the joined error.
func (b *Baggage) OTel() (baggage.Baggage, error) {
	var members []baggage.Member
	var errs []error
	for _, m := range b.Members() {
		props := make([]baggage.Property, 0, len(m.Properties))
		for _, p := range m.Properties {
			var prop baggage.Property
			var err error
			if p.HasValue {
				prop, err = baggage.NewKeyValuePropertyRaw(p.Key, p.Value)
			} else {
				prop, err = baggage.NewKeyProperty(p.Key)
			}
			if err != nil {
				errs = append(errs, err)
				continue
			}
			props = append(props, prop)
		}
		member, err := baggage.NewMemberRaw(m.Key, m.Value, props...)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		members = append(members, member)
	}
	bag, err := baggage.New(members...)
	if err != nil {
		errs = append(errs, err)
	}
	return bag, errors.Join(errs...)
}

// BaggageFromOTel converts OpenTelemetry baggage. The result is unfrozen.
func BaggageFromOTel(bag baggage.Baggage) *Baggage {
	b := NewBaggage()
	for _, m := range bag.Members() {
		member := BaggageMember{Key: m.Key(), Value: m.Value()}
		for _, p := range m.Properties() {
			value, ok := p.Value()
			member.Properties = append(member.Properties, BaggageProperty{Key: p.Key(), Value: value, HasValue: ok})
		}
		b.SetMember(member)
	}
	return b
}

// Propagator carries sentry-trace, traceparent and baggage headers through
// OpenTelemetry text map carriers.
type Propagator struct {
	tracer *Tracer
}

var _ propagation.TextMapPropagator = Propagator{}

// NewPropagator returns a propagator backed by t. A nil t uses an
// unconfigured tracer.
func NewPropagator(t *Tracer) Propagator {
	if t == nil {
		t = New()
	}
	return Propagator{tracer: t}
}

// Inject writes the outbound headers for the span or propagation context in ctx.
func (p Propagator) Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	out, ok := p.backing().outgoing(ctx)
	if !ok {
		return
	}
	carrier.Set(SentryTraceHeader, out.sentryTrace)
	carrier.Set(TraceparentHeader, out.traceparent)
	if value := out.baggage(carrier.Get(BaggageHeader)); value != "" {
		carrier.Set(BaggageHeader, value)
	}
}

// Extract stores the inbound trace in ctx, both as a propagation context and
// as an OpenTelemetry remote span context.
func (p Propagator) Extract(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	pc := continuePropagation(p.backing(), carrier.Get(SentryTraceHeader), carrier.Get(TraceparentHeader), carrier.Get(BaggageHeader))
	ctx = ContextWithPropagation(ctx, pc)
	if sc := pc.RemoteSpanContext(); sc.IsValid() {
		ctx = trace.ContextWithRemoteSpanContext(ctx, sc)
	}
	return ctx
}

func (p Propagator) backing() *Tracer {
	if p.tracer == nil {
		return New()
	}
	return p.tracer
}

// Fields returns the header names the propagator reads and writes.
func (Propagator) Fields() []string {
	return []string{SentryTraceHeader, TraceparentHeader, BaggageHeader}
}
