package samplez

import (
	"context"
	"sync"
	"testing"
	"time"
)

func testEvent(name string) *TransactionEvent {
	return &TransactionEvent{
		EventID:     newEventID(),
		Type:        transactionType,
		Transaction: name,
		Tags:        map[string]string{"service": "api"},
		Contexts: EventContexts{Trace: TraceContext{
			TraceID: MustParseTraceID("771a43a4192642f0b136d5159a501700"),
			SpanID:  MustParseSpanID("771a43a4192642f0"),
			Data:    map[string]Value{"route": StringValue("/users")},
		}},
		Spans: []SpanPayload{{TraceContext: TraceContext{
			SpanID: MustParseSpanID("a1a2a3a4a5a6a7a8"),
			Tags:   map[string]string{"db.system": "postgresql"},
		}}},
	}
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector("test-collector", 100)
	defer collector.Close()

	if collector.Name() != "test-collector" {
		t.Errorf("Expected name 'test-collector', got %s", collector.Name())
	}

	if collector.Count() != 0 {
		t.Errorf("Expected 0 events initially, got %d", collector.Count())
	}

	if collector.DroppedCount() != 0 {
		t.Errorf("Expected 0 dropped events initially, got %d", collector.DroppedCount())
	}
}

func TestCollectorBasicCollection(t *testing.T) {
	collector := NewCollector("test", 10)
	collector.SetSyncMode(true) // Enable sync for deterministic testing.
	defer collector.Close()

	collector.Collect(testEvent("GET /users"))

	if collector.Count() != 1 {
		t.Errorf("Expected 1 event, got %d", collector.Count())
	}

	events := collector.Export()
	if len(events) != 1 {
		t.Fatalf("Expected 1 exported event, got %d", len(events))
	}

	if events[0].Transaction != "GET /users" {
		t.Errorf("Expected transaction 'GET /users', got %s", events[0].Transaction)
	}

	// After export, collector should be empty.
	if collector.Count() != 0 {
		t.Errorf("Expected 0 events after export, got %d", collector.Count())
	}
	if events := collector.Export(); events != nil {
		t.Errorf("Expected nil export from empty collector, got %d events", len(events))
	}
}

func TestCollectorAsyncCollection(t *testing.T) {
	collector := NewCollector("test", 10)
	defer collector.Close()

	collector.Collect(testEvent("async"))

	deadline := time.Now().Add(time.Second)
	for collector.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if collector.Count() != 1 {
		t.Errorf("Expected 1 event, got %d", collector.Count())
	}
}

func TestCollectorDeepCopy(t *testing.T) {
	collector := NewCollector("test", 10)
	collector.SetSyncMode(true)
	defer collector.Close()

	event := testEvent("copy")
	collector.Collect(event)

	// Mutate the original after collection.
	event.Tags["service"] = "changed"
	event.Contexts.Trace.Data["route"] = StringValue("/changed")
	event.Spans[0].Tags["db.system"] = "changed"

	events := collector.Export()
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	got := events[0]
	if got.Tags["service"] != "api" {
		t.Errorf("Expected tag 'api', got %s", got.Tags["service"])
	}
	if route, _ := got.Contexts.Trace.Data["route"].AsString(); route != "/users" {
		t.Errorf("Expected route '/users', got %s", route)
	}
	if got.Spans[0].Tags["db.system"] != "postgresql" {
		t.Errorf("Expected span tag 'postgresql', got %s", got.Spans[0].Tags["db.system"])
	}
}

func TestCollectorDropsNilAndClosed(t *testing.T) {
	collector := NewCollector("test", 10)
	collector.SetSyncMode(true)

	collector.Collect(nil)
	if collector.DroppedCount() != 1 {
		t.Errorf("Expected nil event to be dropped, got %d", collector.DroppedCount())
	}

	collector.Close()
	collector.Close() // Closing twice is harmless.
	collector.Collect(testEvent("late"))

	if collector.DroppedCount() != 2 {
		t.Errorf("Expected 2 dropped events, got %d", collector.DroppedCount())
	}
	if collector.Count() != 0 {
		t.Errorf("Expected 0 events, got %d", collector.Count())
	}
}

func TestCollectorMemoryShrink(t *testing.T) {
	collector := NewCollector("test", 1000)
	collector.SetSyncMode(true)
	defer collector.Close()

	for i := 0; i < 600; i++ {
		collector.Collect(testEvent("bulk"))
	}
	if got := len(collector.Export()); got != 600 {
		t.Errorf("Expected 600 exported events, got %d", got)
	}

	// A small batch after a large one keeps working.
	for i := 0; i < 5; i++ {
		collector.Collect(testEvent("small"))
	}
	if got := len(collector.Export()); got != 5 {
		t.Errorf("Expected 5 exported events, got %d", got)
	}
}

func TestCollectorReset(t *testing.T) {
	collector := NewCollector("test", 10)
	collector.SetSyncMode(true)
	defer collector.Close()

	collector.Collect(testEvent("a"))
	collector.Collect(nil)
	collector.Reset()

	if collector.Count() != 0 {
		t.Errorf("Expected 0 events after reset, got %d", collector.Count())
	}
	if collector.DroppedCount() != 0 {
		t.Errorf("Expected 0 dropped after reset, got %d", collector.DroppedCount())
	}
}

func TestCollectorConcurrentCollection(t *testing.T) {
	collector := NewCollector("test", 1000)
	collector.SetSyncMode(true)
	defer collector.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				collector.Collect(testEvent("concurrent"))
			}
		}()
	}
	wg.Wait()

	if collector.Count() != 500 {
		t.Errorf("Expected 500 events, got %d", collector.Count())
	}
}

func TestTracerAddCollector(t *testing.T) {
	tracer := New(WithOptions(Options{TracesSampleRate: Float(1)}))
	defer tracer.Close()

	collector := NewCollector("test", 10)
	collector.SetSyncMode(true)
	defer collector.Close()

	id := tracer.AddCollector(collector)
	if id == 0 {
		t.Fatal("Expected non-zero handler ID")
	}
	if tracer.AddCollector(nil) != 0 {
		t.Error("Expected nil collector to be rejected")
	}

	ctx, tx := tracer.StartTransaction(context.Background(), NewTransactionContext("checkout", "http.server"), nil)
	_, span := tracer.StartSpan(ctx, NewSpanContext("db.query"))
	span.Finish()
	tx.Finish()

	events := collector.Export()
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if len(events[0].Spans) != 1 {
		t.Errorf("Expected 1 child span, got %d", len(events[0].Spans))
	}

	tracer.RemoveHandler(id)
	_, tx = tracer.StartTransaction(context.Background(), NewTransactionContext("second", "http.server"), nil)
	tx.Finish()
	if collector.Count() != 0 {
		t.Errorf("Expected no events after handler removal, got %d", collector.Count())
	}
}
