package samplez

import (
	"context"
	"strconv"
	"time"

	"github.com/zoobzio/clockz"
)

// bundleKeyType is a private type for context keys to avoid collisions.
type bundleKeyType string

const (
	bundleKey      bundleKeyType = "samplez"
	propagationKey bundleKeyType = "samplez.propagation"
)

// contextBundle holds both tracer and span to reduce context allocations.
type contextBundle struct {
	tracer *Tracer
	span   *Span
}

// Span represents a single timed operation within a trace.
// Spans are NOT thread-safe - do not modify from multiple goroutines.
//
//nolint:govet // Field order follows the payload layout
type Span struct {
	Tags         map[string]string
	Data         map[string]Value
	StartTime    time.Time
	EndTime      time.Time
	Op           string
	Description  string
	TraceID      TraceID
	SpanID       SpanID
	ParentSpanID SpanID
	Status       SpanStatus
	Sampled      Sampled

	recorder    *SpanRecorder
	transaction *Transaction
	clock       clockz.Clock
}

func newSpan(sc SpanContext, clock clockz.Clock) *Span {
	s := &Span{}
	s.init(sc, clock)
	return s
}

func (s *Span) init(sc SpanContext, clock clockz.Clock) {
	if clock == nil {
		clock = clockz.RealClock
	}
	s.clock = clock
	s.Op = sc.op
	s.Description = sc.description
	s.TraceID = sc.traceID
	s.SpanID = sc.spanID
	s.ParentSpanID = sc.parentSpanID
	s.Status = sc.status
	s.Sampled = sc.sampled
	s.Tags = sc.Tags()
	s.Data = sc.Data()
	s.StartTime = sc.startTime
	if s.TraceID.IsZero() {
		s.TraceID = NewTraceID()
	}
	if s.SpanID.IsZero() {
		s.SpanID = NewSpanID()
	}
	if s.StartTime.IsZero() {
		s.StartTime = clock.Now()
	}
}

// StartChild starts a span below s. The child always shares the trace ID and
// sampling flag of s. When the transaction's recorder is full the child still
// works but is left out of the transaction payload.
func (s *Span) StartChild(sc SpanContext) *Span {
	sc = sc.WithTraceID(s.TraceID).WithParentSpanID(s.SpanID).WithSampled(s.Sampled)
	child := newSpan(sc, s.clock)
	child.recorder = s.recorder
	child.transaction = s.transaction
	if s.recorder != nil {
		s.recorder.add(child)
	}
	return child
}

// Finish ends the span now. Subsequent calls are no-ops.
func (s *Span) Finish() {
	s.FinishAt(s.now())
}

// FinishAt ends the span at end. Subsequent calls are no-ops.
// Finishing the root span of a transaction finishes the transaction.
func (s *Span) FinishAt(end time.Time) {
	if tx := s.transaction; tx != nil && &tx.Span == s {
		tx.FinishAt(end)
		return
	}
	s.finish(end)
}

func (s *Span) finish(end time.Time) {
	if s.IsFinished() {
		return
	}
	s.EndTime = end
}

// IsFinished reports whether the span has ended.
func (s *Span) IsFinished() bool {
	return !s.EndTime.IsZero()
}

// Duration returns the elapsed time of a finished span.
func (s *Span) Duration() time.Duration {
	if !s.IsFinished() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// SetTag adds a key-value pair to the span.
func (s *Span) SetTag(key, value string) {
	if s.Tags == nil {
		s.Tags = make(map[string]string)
	}
	s.Tags[key] = value
}

// SetData stores an arbitrary value on the span.
func (s *Span) SetData(key string, value Value) {
	if s.Data == nil {
		s.Data = make(map[string]Value)
	}
	s.Data[key] = value
}

// SetStatus sets the outcome of the span.
func (s *Span) SetStatus(status SpanStatus) {
	s.Status = status
}

// SetHTTPStatus records an HTTP response code and derives the span status from it.
func (s *Span) SetHTTPStatus(code int) {
	s.SetTag("http.status_code", strconv.Itoa(code))
	s.SetData("http.response.status_code", IntValue(int64(code)))
	s.Status = SpanStatusFromHTTPCode(code)
}

// Transaction returns the transaction s belongs to, or nil.
func (s *Span) Transaction() *Transaction {
	return s.transaction
}

// TraceContext returns the payload shape of s.
func (s *Span) TraceContext() TraceContext {
	return TraceContext{
		TraceID:      s.TraceID,
		SpanID:       s.SpanID,
		ParentSpanID: s.ParentSpanID,
		Op:           s.Op,
		Description:  s.Description,
		Status:       s.Status,
		Tags:         cloneTags(s.Tags),
		Data:         cloneData(s.Data),
	}
}

// SentryTrace returns the sentry-trace header value for outbound requests.
func (s *Span) SentryTrace() string {
	return FormatSentryTrace(s.TraceID, s.SpanID, s.Sampled)
}

// Traceparent returns the W3C traceparent header value for outbound requests.
func (s *Span) Traceparent() string {
	return FormatTraceparent(s.TraceID, s.SpanID, s.Sampled)
}

// Baggage returns the baggage header value carrying the dynamic sampling
// context of the owning transaction, or "" for a span without one.
func (s *Span) Baggage() string {
	if s.transaction == nil {
		return ""
	}
	return s.transaction.DynamicSamplingContext().String()
}

func (s *Span) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}

// ContextWithSpan returns a context carrying span.
// The returned context can be used to start child spans.
func ContextWithSpan(parent context.Context, span *Span) context.Context {
	var tracer *Tracer
	if bundle, ok := parent.Value(bundleKey).(*contextBundle); ok {
		tracer = bundle.tracer
	}
	return context.WithValue(parent, bundleKey, &contextBundle{tracer: tracer, span: span})
}

// SpanFromContext extracts the current span from a context.
// Returns nil if no span is present.
func SpanFromContext(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}
	if bundle, ok := ctx.Value(bundleKey).(*contextBundle); ok {
		return bundle.span
	}
	return nil
}

// TracerFromContext returns the tracer that started the span in ctx, or nil.
func TracerFromContext(ctx context.Context) *Tracer {
	if ctx == nil {
		return nil
	}
	if bundle, ok := ctx.Value(bundleKey).(*contextBundle); ok {
		return bundle.tracer
	}
	return nil
}

// TransactionFromContext returns the transaction owning the current span, or nil.
func TransactionFromContext(ctx context.Context) *Transaction {
	if span := SpanFromContext(ctx); span != nil {
		return span.transaction
	}
	return nil
}

func cloneTags(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneData(m map[string]Value) map[string]Value {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
