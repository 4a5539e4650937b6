package samplez

import (
	"context"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func sampledTransaction(t *testing.T, clock clockz.Clock, maxSpans int) *Transaction {
	t.Helper()
	tx := newTransaction(NewTransactionContext("test", "task").WithSampled(SampledTrue), clock)
	tx.InitSpanRecorder(maxSpans)
	return tx
}

func TestSpanDefaults(t *testing.T) {
	span := newSpan(NewSpanContext("op"), nil)

	if len(span.TraceID) != 32 {
		t.Errorf("Expected generated trace ID, got %q", span.TraceID)
	}
	if len(span.SpanID) != 16 {
		t.Errorf("Expected generated span ID, got %q", span.SpanID)
	}
	if span.StartTime.IsZero() {
		t.Error("Expected non-zero StartTime")
	}
	if span.IsFinished() {
		t.Error("Expected new span to be unfinished")
	}
	if span.Duration() != 0 {
		t.Errorf("Expected zero duration for running span, got %v", span.Duration())
	}
}

func TestSpanStartChildInheritance(t *testing.T) {
	clock := clockz.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	tx := sampledTransaction(t, clock, 10)

	// A child context carrying its own trace and decision is overridden.
	child := tx.StartChild(NewSpanContext("http.client").
		WithTraceID(MustParseTraceID("00000000000000000000000000000001")).
		WithSampled(SampledFalse))

	if child.TraceID != tx.TraceID {
		t.Errorf("Expected trace %s, got %s", tx.TraceID, child.TraceID)
	}
	if child.ParentSpanID != tx.SpanID {
		t.Errorf("Expected parent %s, got %s", tx.SpanID, child.ParentSpanID)
	}
	if child.Sampled != SampledTrue {
		t.Errorf("Expected inherited sampled flag, got %s", child.Sampled)
	}
	if child.Transaction() != tx {
		t.Error("Expected child to reference its transaction")
	}

	grandchild := child.StartChild(NewSpanContext("dns"))
	if grandchild.ParentSpanID != child.SpanID {
		t.Errorf("Expected grandchild parent %s, got %s", child.SpanID, grandchild.ParentSpanID)
	}
	if tx.SpanRecorder().Len() != 2 {
		t.Errorf("Expected 2 recorded spans, got %d", tx.SpanRecorder().Len())
	}
}

func TestSpanRecorderCapacity(t *testing.T) {
	const maxSpans, extra = 3, 4
	tx := sampledTransaction(t, clockz.NewFakeClock(), maxSpans)

	children := make([]*Span, 0, maxSpans+extra)
	for i := 0; i < maxSpans+extra; i++ {
		children = append(children, tx.StartChild(NewSpanContext("child")))
	}

	rec := tx.SpanRecorder()
	if rec.Len() != maxSpans {
		t.Errorf("Expected %d recorded spans, got %d", maxSpans, rec.Len())
	}
	if rec.Dropped() != extra {
		t.Errorf("Expected %d dropped spans, got %d", extra, rec.Dropped())
	}
	for i, s := range rec.Spans() {
		if s != children[i] {
			t.Errorf("Expected recorded span %d to be the %d-th child", i, i)
		}
	}

	// Spans past the limit still work and still join the trace.
	last := children[len(children)-1]
	last.SetTag("k", "v")
	last.Finish()
	if last.TraceID != tx.TraceID || !last.IsFinished() {
		t.Error("Expected overflow span to be usable")
	}

	for _, c := range children {
		c.Finish()
	}
	tx.Finish()
	if got := len(tx.Event().Spans); got != maxSpans {
		t.Errorf("Expected %d spans in payload, got %d", maxSpans, got)
	}
}

func TestSpanRecorderDefaultCapacity(t *testing.T) {
	if got := NewSpanRecorder(0).MaxSpans(); got != DefaultMaxSpans {
		t.Errorf("Expected default capacity %d, got %d", DefaultMaxSpans, got)
	}
}

func TestSpanWithoutRecorder(t *testing.T) {
	tx := newTransaction(NewTransactionContext("unsampled", "task").WithSampled(SampledFalse), nil)
	child := tx.StartChild(NewSpanContext("child"))

	if tx.SpanRecorder() != nil {
		t.Error("Expected no recorder on an unsampled transaction")
	}
	if child.Sampled != SampledFalse {
		t.Errorf("Expected child sampled false, got %s", child.Sampled)
	}
}

func TestSpanFinishIdempotent(t *testing.T) {
	clock := clockz.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	span := newSpan(NewSpanContext("op"), clock)

	clock.Advance(time.Second)
	span.Finish()
	first := span.EndTime

	clock.Advance(time.Second)
	span.Finish()
	if !span.EndTime.Equal(first) {
		t.Errorf("Expected end time to stay %v, got %v", first, span.EndTime)
	}
	if span.Duration() != time.Second {
		t.Errorf("Expected 1s duration, got %v", span.Duration())
	}
}

func TestSpanRootFinishesTransaction(t *testing.T) {
	tx := sampledTransaction(t, clockz.NewFakeClock(), 10)
	sink := &recordingSink{}
	tx.sink = sink

	root := &tx.Span
	root.Finish()

	if !tx.IsFinished() {
		t.Error("Expected finishing the root span to finish the transaction")
	}
	if len(sink.events) != 1 {
		t.Errorf("Expected 1 emitted event, got %d", len(sink.events))
	}
}

func TestSpanSetters(t *testing.T) {
	span := newSpan(NewSpanContext("http.client"), nil)

	span.SetTag("peer", "db-1")
	span.SetData("rows", IntValue(3))
	span.SetStatus(SpanStatusAborted)
	if span.Tags["peer"] != "db-1" {
		t.Errorf("Expected tag 'db-1', got %s", span.Tags["peer"])
	}
	if rows, _ := span.Data["rows"].AsNumber(); rows != 3 {
		t.Errorf("Expected rows 3, got %v", rows)
	}
	if span.Status != SpanStatusAborted {
		t.Errorf("Expected aborted, got %s", span.Status)
	}

	span.SetHTTPStatus(404)
	if span.Status != SpanStatusNotFound {
		t.Errorf("Expected not_found, got %s", span.Status)
	}
	if span.Tags["http.status_code"] != "404" {
		t.Errorf("Expected status tag '404', got %s", span.Tags["http.status_code"])
	}
}

func TestSpanTraceHeaders(t *testing.T) {
	span := newSpan(NewSpanContext("op").
		WithTraceID(MustParseTraceID(inboundTraceID)).
		WithSpanID(MustParseSpanID(inboundSpanID)).
		WithSampled(SampledTrue), nil)

	if got := span.SentryTrace(); got != inboundTraceID+"-"+inboundSpanID+"-1" {
		t.Errorf("Unexpected sentry-trace %s", got)
	}
	if got := span.Traceparent(); got != "00-"+inboundTraceID+"-"+inboundSpanID+"-01" {
		t.Errorf("Unexpected traceparent %s", got)
	}
	if got := span.Baggage(); got != "" {
		t.Errorf("Expected no baggage for a detached span, got %s", got)
	}
}

func TestContextWithSpan(t *testing.T) {
	if SpanFromContext(context.Background()) != nil {
		t.Error("Expected no span in empty context")
	}
	if TransactionFromContext(context.Background()) != nil {
		t.Error("Expected no transaction in empty context")
	}

	tx := sampledTransaction(t, nil, 10)
	child := tx.StartChild(NewSpanContext("child"))
	ctx := ContextWithSpan(context.Background(), child)

	if SpanFromContext(ctx) != child {
		t.Error("Expected span in context")
	}
	if TransactionFromContext(ctx) != tx {
		t.Error("Expected transaction resolved through the span")
	}
	if TracerFromContext(ctx) != nil {
		t.Error("Expected no tracer for a manually stored span")
	}
}
