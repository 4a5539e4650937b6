package samplez

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/zoobzio/clockz"
)

// TransactionHandler is called when a sampled transaction finishes.
type TransactionHandler func(event TransactionEvent)

type handlerEntry struct {
	handler TransactionHandler
	id      uint64
	async   bool
}

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithOptions sets the sampling configuration.
func WithOptions(opts Options) TracerOption {
	return func(t *Tracer) { t.opts = opts }
}

// WithScope sets the scope consulted when building dynamic sampling contexts.
func WithScope(scope ScopeProvider) TracerOption {
	return func(t *Tracer) { t.scope = scope }
}

// WithClock sets the clock used for span timestamps.
// Enables clock injection for deterministic testing.
func WithClock(clock clockz.Clock) TracerOption {
	return func(t *Tracer) { t.clock = clock }
}

// WithLogger sets the logger used when Options does not carry one.
func WithLogger(logger logr.Logger) TracerOption {
	return func(t *Tracer) { t.logger = logger }
}

// Tracer starts and samples transactions and hands finished ones to the
// registered handlers. It is the handle passed explicitly wherever a trace
// is started, continued or propagated.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order optimized for functionality over memory
type Tracer struct {
	opts                Options
	scope               ScopeProvider
	handlers            []handlerEntry
	panicHook           func(handlerID uint64, r interface{})
	workers             *workerPool
	clock               clockz.Clock
	logger              logr.Logger
	handlersLock        sync.RWMutex
	nextID              atomic.Uint64
	droppedTransactions atomic.Uint64
}

// New creates a new tracer.
// Uses the real clock unless WithClock is given.
func New(options ...TracerOption) *Tracer {
	t := &Tracer{
		handlers: make([]handlerEntry, 0),
		clock:    clockz.RealClock,
	}
	for _, opt := range options {
		opt(t)
	}
	if t.opts.Logger.GetSink() == nil && t.logger.GetSink() != nil {
		t.opts.Logger = t.logger
	}
	t.logger = t.opts.logger()
	if t.clock == nil {
		t.clock = clockz.RealClock
	}
	return t
}

// Options returns the tracer configuration.
func (t *Tracer) Options() Options {
	return t.opts
}

// OnTransaction registers a synchronous handler called when sampled transactions finish.
func (t *Tracer) OnTransaction(handler TransactionHandler) uint64 {
	return t.registerHandler(handler, false)
}

// OnTransactionAsync registers an asynchronous handler called when sampled transactions finish.
func (t *Tracer) OnTransactionAsync(handler TransactionHandler) uint64 {
	return t.registerHandler(handler, true)
}

// AddCollector buffers every finished transaction in c.
// Returns the handler ID for RemoveHandler.
func (t *Tracer) AddCollector(c *Collector) uint64 {
	if c == nil {
		return 0
	}
	return t.OnTransaction(func(event TransactionEvent) {
		c.Collect(&event)
	})
}

func (t *Tracer) registerHandler(handler TransactionHandler, async bool) uint64 {
	if handler == nil {
		return 0
	}

	id := t.nextID.Add(1)

	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()

	t.handlers = append(t.handlers, handlerEntry{
		id:      id,
		handler: handler,
		async:   async,
	})

	return id
}

// RemoveHandler removes a handler by ID.
func (t *Tracer) RemoveHandler(id uint64) {
	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()

	// Preserve order
	for i, h := range t.handlers {
		if h.id == id {
			copy(t.handlers[i:], t.handlers[i+1:])
			t.handlers = t.handlers[:len(t.handlers)-1]
			return
		}
	}
}

// SetPanicHook sets a function to be called when a handler panics.
func (t *Tracer) SetPanicHook(hook func(handlerID uint64, r interface{})) {
	t.panicHook = hook
}

// StartTransaction creates a transaction from tc, samples it and returns a
// context carrying its root span. custom is handed to the TracesSampler.
// When ctx carries a propagation context for the same trace, its sample rand
// is reused so the decision stays consistent with the rest of the trace.
func (t *Tracer) StartTransaction(ctx context.Context, tc TransactionContext, custom map[string]any) (context.Context, *Transaction) {
	// Handle nil context by creating a new one.
	if ctx == nil {
		ctx = context.Background()
	}

	tx := newTransaction(tc, t.clock)
	tx.cfg = t
	tx.scope = t.scope
	tx.sink = t
	tx.logger = t.logger

	if pc, ok := PropagationFromContext(ctx); ok && pc.TraceID == tx.TraceID && tx.Metadata.SampleRand == nil {
		tx.Metadata.SampleRand = Float(pc.SampleRand)
	}
	Sample(tx, t.opts, custom)

	bundle := &contextBundle{tracer: t, span: &tx.Span}
	return context.WithValue(ctx, bundleKey, bundle), tx
}

// StartSpan starts a child of the span in ctx. Without one, a transaction is
// started that continues the propagation context in ctx, or a new trace.
func (t *Tracer) StartSpan(ctx context.Context, sc SpanContext) (context.Context, *Span) {
	// Handle nil context by creating a new one.
	if ctx == nil {
		ctx = context.Background()
	}

	if parent := SpanFromContext(ctx); parent != nil {
		child := parent.StartChild(sc)
		bundle := &contextBundle{tracer: t, span: child}
		return context.WithValue(ctx, bundleKey, bundle), child
	}

	pc, ok := PropagationFromContext(ctx)
	if !ok {
		pc = NewPropagationContext()
	}
	name := sc.Description()
	if name == "" {
		name = sc.Op()
	}
	tc := pc.TransactionContext(name, sc.Op()).
		WithDescription(sc.Description()).
		WithStartTime(sc.StartTime())
	for k, v := range sc.Tags() {
		tc = tc.WithTag(k, v)
	}
	if sampled := sc.Sampled(); sampled != SampledUndefined {
		tc = tc.WithSampled(sampled)
	}
	ctx, tx := t.StartTransaction(ctx, tc, nil)
	return ctx, &tx.Span
}

// ContinueTrace stores the trace described by the inbound headers in ctx and
// returns the context for the transaction that should continue it.
func (t *Tracer) ContinueTrace(ctx context.Context, sentryTrace, baggage string) (context.Context, TransactionContext) {
	if ctx == nil {
		ctx = context.Background()
	}
	pc := PropagationContextFromHeaders(t, sentryTrace, baggage)
	return ContextWithPropagation(ctx, pc), pc.TransactionContext("", "")
}

// Extract is ContinueTrace for an inbound http.Header. A traceparent header
// is used when sentry-trace is missing or malformed.
func (t *Tracer) Extract(ctx context.Context, h http.Header) (context.Context, TransactionContext) {
	if ctx == nil {
		ctx = context.Background()
	}
	pc := propagationFromHeader(t, h)
	return ContextWithPropagation(ctx, pc), pc.TransactionContext("", "")
}

// Inject writes the sentry-trace, traceparent and baggage headers for the
// span or propagation context in ctx. Foreign baggage members already in h
// are kept.
func (t *Tracer) Inject(ctx context.Context, h http.Header) {
	out, ok := t.outgoing(ctx)
	if !ok {
		return
	}
	h.Set(SentryTraceHeader, out.sentryTrace)
	h.Set(TraceparentHeader, out.traceparent)
	if value := out.baggage(strings.Join(h.Values(BaggageHeader), ",")); value != "" {
		h.Set(BaggageHeader, value)
	}
}

// outgoingHeaders holds the values written to outbound requests.
type outgoingHeaders struct {
	dsc         *DynamicSamplingContext
	sentryTrace string
	traceparent string
}

// baggage merges the dynamic sampling context into an existing baggage header.
func (o outgoingHeaders) baggage(existing string) string {
	return ParseBaggage(existing).WithDynamicSamplingContext(o.dsc).String()
}

func (t *Tracer) outgoing(ctx context.Context) (outgoingHeaders, bool) {
	if span := SpanFromContext(ctx); span != nil {
		out := outgoingHeaders{
			sentryTrace: span.SentryTrace(),
			traceparent: span.Traceparent(),
		}
		if tx := span.Transaction(); tx != nil {
			out.dsc = tx.DynamicSamplingContext()
		}
		return out, true
	}
	pc, ok := PropagationFromContext(ctx)
	if !ok {
		return outgoingHeaders{}, false
	}
	out := outgoingHeaders{
		sentryTrace: pc.SentryTrace(),
		traceparent: pc.Traceparent(),
		dsc:         pc.DynamicSamplingContext,
	}
	if out.dsc == nil {
		out.dsc = DynamicSamplingContextFromOptions(t, t.scope, pc)
	}
	return out, true
}

// CaptureTransaction hands a finished transaction to the registered handlers.
func (t *Tracer) CaptureTransaction(event *TransactionEvent) {
	if event == nil {
		return
	}
	t.executeHandlers(*event)
}

// executeHandlers calls all registered handlers with the finished transaction.
func (t *Tracer) executeHandlers(event TransactionEvent) {
	t.handlersLock.RLock()
	if len(t.handlers) == 0 {
		t.handlersLock.RUnlock()
		return
	}

	handlers := make([]handlerEntry, len(t.handlers))
	copy(handlers, t.handlers)
	workers := t.workers
	t.handlersLock.RUnlock()

	for _, h := range handlers {
		if h.async {
			entry := h
			if workers != nil {
				workers.submit(func() {
					t.safeCall(entry, event)
				})
			} else {
				go t.safeCall(entry, event)
			}
		} else {
			t.safeCall(h, event)
		}
	}
}

func (t *Tracer) safeCall(entry handlerEntry, event TransactionEvent) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error(nil, "transaction handler panicked", "handler_id", entry.id, "panic", r)
			if t.panicHook != nil {
				t.panicHook(entry.id, r)
			}
		}
	}()
	entry.handler(event)
}

// EnableWorkerPool creates a bounded worker pool for async handlers.
func (t *Tracer) EnableWorkerPool(workers, queueSize int) error {
	if workers <= 0 {
		return errors.New("workers must be > 0")
	}
	if queueSize <= 0 {
		return errors.New("queueSize must be > 0")
	}

	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()
	if t.workers != nil {
		return errors.New("worker pool already enabled")
	}

	t.workers = &workerPool{
		tasks:   make(chan func(), queueSize),
		stop:    make(chan struct{}),
		dropped: &t.droppedTransactions,
	}

	t.workers.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go t.workers.run()
	}

	return nil
}

// DroppedTransactions returns the number of transactions dropped due to a full worker queue.
func (t *Tracer) DroppedTransactions() uint64 {
	return t.droppedTransactions.Load()
}

// Close shuts down the tracer gracefully and cleans up resources.
// Transactions finishing afterwards reach no handler.
func (t *Tracer) Close() {
	// Stop new handler executions
	t.handlersLock.Lock()
	t.handlers = nil
	workers := t.workers
	t.workers = nil
	t.handlersLock.Unlock()

	// Wait for in-flight async tasks
	if workers != nil {
		workers.shutdown()
	}
}

// workerPool manages a fixed number of workers for processing async handlers.
//
//nolint:govet // Field order optimized for functionality over memory
type workerPool struct {
	tasks   chan func()
	stop    chan struct{}
	dropped *atomic.Uint64
	wg      sync.WaitGroup
}

func (w *workerPool) run() {
	defer w.wg.Done()
	for {
		select {
		case task := <-w.tasks:
			task()
		case <-w.stop:
			return
		}
	}
}

func (w *workerPool) submit(task func()) {
	select {
	case w.tasks <- task:
	default:
		w.dropped.Add(1)
	}
}

func (w *workerPool) shutdown() {
	close(w.stop)
	w.wg.Wait()
}
