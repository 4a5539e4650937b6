package samplez

import (
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
)

// EventSink receives finished, sampled transactions for encoding and transport.
type EventSink interface {
	CaptureTransaction(event *TransactionEvent)
}

// Transaction is the root span of the trace segment recorded by this process.
// It owns the span recorder shared by all of its descendants.
type Transaction struct {
	Span

	Metadata      *TransactionMetadata
	Name          string
	Source        TransactionSource
	ParentSampled Sampled

	context  TransactionContext
	cfg      OptionsProvider
	scope    ScopeProvider
	sink     EventSink
	logger   logr.Logger
	profiled bool
}

// NewTransaction creates an unsampled-decision transaction from tc that is not
// attached to any sink. Use Tracer.StartTransaction to sample and emit.
func NewTransaction(tc TransactionContext) *Transaction {
	return newTransaction(tc, clockz.RealClock)
}

func newTransaction(tc TransactionContext, clock clockz.Clock) *Transaction {
	md := tc.Metadata()
	tx := &Transaction{
		Name:          tc.name,
		Source:        tc.source,
		ParentSampled: tc.parentSampled,
		Metadata:      &md,
		context:       tc,
		logger:        logr.Discard(),
	}
	tx.Span.init(tc.span, clock)
	tx.Span.transaction = tx
	return tx
}

// InitSpanRecorder attaches a recorder of the given capacity if none exists.
func (t *Transaction) InitSpanRecorder(maxSpans int) {
	if t.recorder == nil {
		t.recorder = NewSpanRecorder(maxSpans)
	}
}

// SpanRecorder returns the recorder, or nil for an unsampled transaction.
func (t *Transaction) SpanRecorder() *SpanRecorder {
	return t.recorder
}

// Profiled reports whether the independent profiling roll succeeded.
func (t *Transaction) Profiled() bool {
	return t.profiled
}

// Context returns the context the transaction was started from.
func (t *Transaction) Context() TransactionContext {
	return t.context
}

// DynamicSamplingContext returns the frozen context published by the
// transaction. An inbound context is returned as is; otherwise one is
// assembled on first use and kept.
func (t *Transaction) DynamicSamplingContext() *DynamicSamplingContext {
	if t.Metadata == nil {
		t.Metadata = &TransactionMetadata{}
	}
	if t.Metadata.DynamicSamplingContext == nil {
		t.Metadata.DynamicSamplingContext = DynamicSamplingContextFromTransaction(t, t.cfg, t.scope)
	}
	return t.Metadata.DynamicSamplingContext
}

// Finish ends the transaction now. See FinishAt.
func (t *Transaction) Finish() {
	t.FinishAt(t.now())
}

// FinishAt ends the transaction and, if it is sampled, hands its payload to the
// sink. Only the first call has any effect.
func (t *Transaction) FinishAt(end time.Time) {
	if t.IsFinished() {
		return
	}
	t.Span.finish(end)
	if t.Sampled != SampledTrue {
		return
	}
	if t.sink == nil {
		t.logger.V(1).Info("transaction finished without a sink", "transaction", t.Name)
		return
	}
	t.sink.CaptureTransaction(t.Event())
}

// Event assembles the transaction payload from the finished child spans.
func (t *Transaction) Event() *TransactionEvent {
	ev := &TransactionEvent{
		EventID:         newEventID(),
		Type:            transactionType,
		Transaction:     t.Name,
		TransactionInfo: TransactionInfo{Source: t.Source},
		StartTimestamp:  Timestamp(t.StartTime),
		Timestamp:       Timestamp(t.EndTime),
		Tags:            cloneTags(t.Tags),
		Contexts:        EventContexts{Trace: t.TraceContext()},
		Spans:           []SpanPayload{},
		Profiled:        t.profiled,
	}
	if t.cfg != nil {
		opts := t.cfg.Options()
		ev.Release = opts.Release
		ev.Environment = opts.Environment
	}
	if t.recorder != nil {
		for _, s := range t.recorder.spans {
			if !s.IsFinished() {
				continue
			}
			ev.Spans = append(ev.Spans, SpanPayload{
				TraceContext:   s.TraceContext(),
				StartTimestamp: Timestamp(s.StartTime),
				Timestamp:      Timestamp(s.EndTime),
			})
		}
	}
	ev.DynamicSamplingContext = t.DynamicSamplingContext()
	return ev
}

func newEventID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
