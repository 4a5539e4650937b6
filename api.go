// Package samplez propagates distributed traces between services and decides
// which transactions are sampled.
//
// samplez keeps a trace consistent across process boundaries: every service
// taking part reads the same trace ID, the same upstream sampling decision and
// the same dynamic sampling context from the inbound headers, and writes them
// back out on every outbound request.
//
// Core Components:.
//   - Tracer: Starts, samples and emits transactions. Passed explicitly.
//   - Transaction: Root span of the work done by this process for a trace.
//   - Span: A timed operation below a transaction.
//   - PropagationContext: Trace identity of a scope without an active span.
//   - DynamicSamplingContext: Trace level sampling inputs, frozen once shared.
//   - Baggage: The W3C baggage header carrying the dynamic sampling context.
//   - Collector: Buffers finished transactions for export.
//
// Basic Usage:.
//
//	tracer := samplez.New(samplez.WithOptions(samplez.Options{
//		DSN:              "https://public@o1.ingest.example.com/42",
//		TracesSampleRate: samplez.Float(0.25),
//	}))
//	defer tracer.Close()
//
//	// Continue the inbound trace.
//	ctx, tc := tracer.Extract(r.Context(), r.Header)
//	ctx, tx := tracer.StartTransaction(ctx, tc.WithName("GET /users").WithOp("http.server"), nil)
//	defer tx.Finish()
//
//	// Child spans share the trace and the sampling decision.
//	ctx, span := tracer.StartSpan(ctx, samplez.NewSpanContext("db.query"))
//	defer span.Finish()
//
//	// Propagate to the next service.
//	tracer.Inject(ctx, req.Header)
//
// Sampling:.
//
// A transaction is sampled by the first rule that applies: an explicit
// decision, the configured TracesSampler, the sample rate inherited from the
// upstream service, the upstream decision, and finally TracesSampleRate.
// The decision compares the trace's sample rand against the rate, so services
// sampling the same trace at the same rate agree.
//
// Thread Safety:.
//
// Tracer and Collector are safe for concurrent use by multiple goroutines.
// Spans and transactions are NOT thread-safe - do not modify the same
// span from multiple goroutines simultaneously.
//
// Resource Cleanup:.
//
// Call tracer.Close() to stop the async handler workers.
package samplez
