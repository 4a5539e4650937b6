package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/samplez"
)

// MockCollector wraps a real collector with test utilities.
// Provides synchronous collection and verification helpers.
//
//nolint:govet // Field alignment optimized for test helper readability
type MockCollector struct {
	exported []samplez.TransactionEvent
	*samplez.Collector
	t  *testing.T
	mu sync.Mutex
}

// NewMockCollector creates a collector for testing.
func NewMockCollector(t *testing.T, name string, bufferSize int) *MockCollector {
	collector := samplez.NewCollector(name, bufferSize)
	collector.SetSyncMode(true)
	return &MockCollector{
		Collector: collector,
		t:         t,
	}
}

// Export returns collected transactions and clears the buffer.
func (m *MockCollector) Export() []samplez.TransactionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := m.Collector.Export()
	m.exported = append(m.exported, events...)
	return events
}

// GetAll returns every transaction exported so far.
func (m *MockCollector) GetAll() []samplez.TransactionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current := m.Collector.Export(); len(current) > 0 {
		m.exported = append(m.exported, current...)
	}
	all := make([]samplez.TransactionEvent, len(m.exported))
	copy(all, m.exported)
	return all
}

// WaitForTransactions waits for the expected number of transactions with timeout.
func (m *MockCollector) WaitForTransactions(expected int, timeout time.Duration) []samplez.TransactionEvent {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	var got []samplez.TransactionEvent
	for time.Now().Before(deadline) {
		got = append(got, m.Export()...)
		if len(got) >= expected {
			return got
		}
		<-ticker.C
	}

	m.t.Errorf("Timeout waiting for transactions: expected %d, got %d", expected, len(got))
	return got
}

// AssertTransactionNamed returns the transaction with the given name.
func (m *MockCollector) AssertTransactionNamed(name string) *samplez.TransactionEvent {
	events := m.GetAll()
	for i := range events {
		if events[i].Transaction == name {
			return &events[i]
		}
	}
	m.t.Errorf("Transaction named '%s' not found", name)
	return nil
}

// MockService is an HTTP service that continues inbound traces and forwards
// them to an optional downstream service.
type MockService struct {
	tracer     *samplez.Tracer
	collector  *MockCollector
	downstream *MockService
	server     *httptest.Server
	name       string
	status     int
}

// NewMockService starts a service with its own tracer and collector. It is
// shut down when the test ends.
func NewMockService(t *testing.T, name string, opts samplez.Options) *MockService {
	tracer := samplez.New(samplez.WithOptions(opts))
	collector := NewMockCollector(t, name, 1000)
	tracer.AddCollector(collector.Collector)

	s := &MockService{
		tracer:    tracer,
		collector: collector,
		name:      name,
		status:    http.StatusOK,
	}
	s.server = httptest.NewServer(s)
	t.Cleanup(func() {
		s.server.Close()
		tracer.Close()
		collector.Close()
	})
	return s
}

// Then routes every request handled by s to next.
func (s *MockService) Then(next *MockService) *MockService {
	s.downstream = next
	return s
}

// SetStatus configures the status code s responds with when it has no downstream.
func (s *MockService) SetStatus(code int) {
	s.status = code
}

// Tracer returns the service tracer.
func (s *MockService) Tracer() *samplez.Tracer { return s.tracer }

// Collector returns the service collector.
func (s *MockService) Collector() *MockCollector { return s.collector }

// Name returns the transaction name s records for path.
func (s *MockService) Name(path string) string {
	return fmt.Sprintf("%s GET %s", s.name, path)
}

func (s *MockService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, tc := s.tracer.Extract(r.Context(), r.Header)
	tc = tc.WithName(s.Name(r.URL.Path)).WithSource(samplez.SourceRoute).WithOp("http.server")
	ctx, tx := s.tracer.StartTransaction(ctx, tc, nil)
	defer tx.Finish()

	code := s.status
	if s.downstream != nil {
		span := tx.StartChild(samplez.NewSpanContext("http.client").WithDescription("GET " + r.URL.Path))
		var err error
		code, err = s.downstream.Call(samplez.ContextWithSpan(ctx, span), r.URL.Path)
		if err != nil {
			code = http.StatusBadGateway
		}
		span.SetHTTPStatus(code)
		span.Finish()
	}
	tx.SetHTTPStatus(code)
	w.WriteHeader(code)
}

// Call sends a request to s. Trace headers are injected when ctx carries a
// span started by a tracer.
func (s *MockService) Call(ctx context.Context, path string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.server.URL+path, http.NoBody)
	if err != nil {
		return 0, err
	}
	if tracer := samplez.TracerFromContext(ctx); tracer != nil {
		tracer.Inject(ctx, req.Header)
	}
	resp, err := s.server.Client().Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// CallWithHeaders sends a request to s carrying raw trace headers.
func (s *MockService) CallWithHeaders(path string, headers http.Header) (int, error) {
	req, err := http.NewRequest(http.MethodGet, s.server.URL+path, http.NoBody)
	if err != nil {
		return 0, err
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	resp, err := s.server.Client().Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// TransactionMatcher provides fluent assertions for transactions.
type TransactionMatcher struct {
	t     *testing.T
	event *samplez.TransactionEvent
}

// NewTransactionMatcher creates a matcher for transaction assertions.
func NewTransactionMatcher(t *testing.T, event *samplez.TransactionEvent) *TransactionMatcher {
	return &TransactionMatcher{t: t, event: event}
}

// InTrace verifies the trace ID.
func (m *TransactionMatcher) InTrace(traceID samplez.TraceID) *TransactionMatcher {
	if m.event == nil {
		return m
	}
	if got := m.event.Contexts.Trace.TraceID; got != traceID {
		m.t.Errorf("Transaction %s in trace %s, expected %s", m.event.Transaction, got, traceID)
	}
	return m
}

// HasParent verifies the upstream span the transaction continues.
func (m *TransactionMatcher) HasParent(parentID samplez.SpanID) *TransactionMatcher {
	if m.event == nil {
		return m
	}
	if got := m.event.Contexts.Trace.ParentSpanID; got != parentID {
		m.t.Errorf("Transaction %s wrong parent: expected %s, got %s", m.event.Transaction, parentID, got)
	}
	return m
}

// HasStatus verifies the transaction status.
func (m *TransactionMatcher) HasStatus(status samplez.SpanStatus) *TransactionMatcher {
	if m.event == nil {
		return m
	}
	if got := m.event.Contexts.Trace.Status; got != status {
		m.t.Errorf("Transaction %s status: expected %s, got %s", m.event.Transaction, status, got)
	}
	return m
}

// HasSpans verifies the number of recorded child spans.
func (m *TransactionMatcher) HasSpans(n int) *TransactionMatcher {
	if m.event == nil {
		return m
	}
	if len(m.event.Spans) != n {
		m.t.Errorf("Transaction %s: expected %d spans, got %d", m.event.Transaction, n, len(m.event.Spans))
	}
	return m
}

// HasBaggage verifies a dynamic sampling context entry of the transaction.
func (m *TransactionMatcher) HasBaggage(key, value string) *TransactionMatcher {
	if m.event == nil {
		return m
	}
	if got, _ := m.event.DynamicSamplingContext.Get(key); got != value {
		m.t.Errorf("Transaction %s baggage %s: expected %q, got %q", m.event.Transaction, key, value, got)
	}
	return m
}
