package samplez

import (
	"maps"
	"time"
)

// SpanContext describes a span before it starts. It is immutable: every With
// method returns an updated copy and never aliases the receiver's maps.
type SpanContext struct {
	tags         map[string]string
	data         map[string]Value
	startTime    time.Time
	op           string
	description  string
	traceID      TraceID
	spanID       SpanID
	parentSpanID SpanID
	status       SpanStatus
	sampled      Sampled
}

// NewSpanContext returns a context for an operation named op.
func NewSpanContext(op string) SpanContext {
	return SpanContext{op: op}
}

func (c SpanContext) Op() string { return c.op }
func (c SpanContext) Description() string { return c.description }
func (c SpanContext) TraceID() TraceID { return c.traceID }
func (c SpanContext) SpanID() SpanID { return c.spanID }
func (c SpanContext) ParentSpanID() SpanID { return c.parentSpanID }
func (c SpanContext) Status() SpanStatus { return c.status }
func (c SpanContext) Sampled() Sampled { return c.sampled }
func (c SpanContext) StartTime() time.Time { return c.startTime }
func (c SpanContext) Tags() map[string]string { return maps.Clone(c.tags) }
func (c SpanContext) Data() map[string]Value { return maps.Clone(c.data) }

func (c SpanContext) clone() SpanContext {
	c.tags = maps.Clone(c.tags)
	c.data = maps.Clone(c.data)
	return c
}

func (c SpanContext) WithOp(op string) SpanContext {
	c = c.clone()
	c.op = op
	return c
}

func (c SpanContext) WithDescription(description string) SpanContext {
	c = c.clone()
	c.description = description
	return c
}

func (c SpanContext) WithTraceID(id TraceID) SpanContext {
	c = c.clone()
	c.traceID = id
	return c
}

func (c SpanContext) WithSpanID(id SpanID) SpanContext {
	c = c.clone()
	c.spanID = id
	return c
}

func (c SpanContext) WithParentSpanID(id SpanID) SpanContext {
	c = c.clone()
	c.parentSpanID = id
	return c
}

func (c SpanContext) WithStatus(status SpanStatus) SpanContext {
	c = c.clone()
	c.status = status
	return c
}

func (c SpanContext) WithSampled(sampled Sampled) SpanContext {
	c = c.clone()
	c.sampled = sampled
	return c
}

func (c SpanContext) WithStartTime(t time.Time) SpanContext {
	c = c.clone()
	c.startTime = t
	return c
}

func (c SpanContext) WithTag(key, value string) SpanContext {
	c = c.clone()
	if c.tags == nil {
		c.tags = make(map[string]string)
	}
	c.tags[key] = value
	return c
}

func (c SpanContext) WithData(key string, value Value) SpanContext {
	c = c.clone()
	if c.data == nil {
		c.data = make(map[string]Value)
	}
	c.data[key] = value
	return c
}

// TransactionMetadata holds the sampling bookkeeping of a transaction.
type TransactionMetadata struct {
	// SamplingRate is the rate the decision was made with.
	SamplingRate *float64
	// ParentSamplingRate is the rate inherited from an upstream service.
	ParentSamplingRate *float64
	// SampleRand is the trace-stable random draw in [0, 1).
	SampleRand             *float64
	DynamicSamplingContext *DynamicSamplingContext
	RequestPath            string
	SamplingMethod         SamplingMethod
}

func (m TransactionMetadata) clone() TransactionMetadata {
	if m.SamplingRate != nil {
		m.SamplingRate = Float(*m.SamplingRate)
	}
	if m.ParentSamplingRate != nil {
		m.ParentSamplingRate = Float(*m.ParentSamplingRate)
	}
	if m.SampleRand != nil {
		m.SampleRand = Float(*m.SampleRand)
	}
	return m
}

// TransactionContext describes a transaction before it starts. Like
// SpanContext it is immutable.
type TransactionContext struct {
	metadata      TransactionMetadata
	name          string
	span          SpanContext
	source        TransactionSource
	parentSampled Sampled
}

// NewTransactionContext returns a context for a transaction called name.
func NewTransactionContext(name, op string) TransactionContext {
	return TransactionContext{name: name, span: NewSpanContext(op)}
}

func (c TransactionContext) Name() string { return c.name }
func (c TransactionContext) Source() TransactionSource { return c.source }
func (c TransactionContext) SpanContext() SpanContext { return c.span.clone() }
func (c TransactionContext) TraceID() TraceID { return c.span.traceID }
func (c TransactionContext) ParentSpanID() SpanID { return c.span.parentSpanID }
func (c TransactionContext) Sampled() Sampled { return c.span.sampled }
func (c TransactionContext) Metadata() TransactionMetadata { return c.metadata.clone() }

// ParentSampled returns the sampling decision received from the upstream service.
func (c TransactionContext) ParentSampled() Sampled { return c.parentSampled }

func (c TransactionContext) WithName(name string) TransactionContext {
	c.span = c.span.clone()
	c.name = name
	return c
}

func (c TransactionContext) WithSource(source TransactionSource) TransactionContext {
	c.span = c.span.clone()
	c.source = source
	return c
}

func (c TransactionContext) WithParentSampled(sampled Sampled) TransactionContext {
	c.span = c.span.clone()
	c.parentSampled = sampled
	return c
}

func (c TransactionContext) WithMetadata(md TransactionMetadata) TransactionContext {
	c.span = c.span.clone()
	c.metadata = md.clone()
	return c
}

// WithSpanContext replaces the span fields wholesale.
func (c TransactionContext) WithSpanContext(sc SpanContext) TransactionContext {
	c.span = sc.clone()
	return c
}

func (c TransactionContext) WithOp(op string) TransactionContext {
	c.span = c.span.WithOp(op)
	return c
}

func (c TransactionContext) WithDescription(description string) TransactionContext {
	c.span = c.span.WithDescription(description)
	return c
}

func (c TransactionContext) WithTraceID(id TraceID) TransactionContext {
	c.span = c.span.WithTraceID(id)
	return c
}

func (c TransactionContext) WithParentSpanID(id SpanID) TransactionContext {
	c.span = c.span.WithParentSpanID(id)
	return c
}

func (c TransactionContext) WithSampled(sampled Sampled) TransactionContext {
	c.span = c.span.WithSampled(sampled)
	return c
}

func (c TransactionContext) WithTag(key, value string) TransactionContext {
	c.span = c.span.WithTag(key, value)
	return c
}

func (c TransactionContext) WithStartTime(t time.Time) TransactionContext {
	c.span = c.span.WithStartTime(t)
	return c
}
