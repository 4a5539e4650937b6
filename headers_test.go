package samplez

import (
	"net/http"
	"testing"
)

func TestParseSentryTrace(t *testing.T) {
	h, ok := ParseSentryTrace("566e3688a61d4bc888951642d6f14a19-566e3688a61d4bc8-1")
	if !ok {
		t.Fatal("Expected header to parse")
	}
	if h.TraceID != "566e3688a61d4bc888951642d6f14a19" {
		t.Errorf("Expected trace ID, got %s", h.TraceID)
	}
	if h.ParentSpanID != "566e3688a61d4bc8" {
		t.Errorf("Expected parent span ID, got %s", h.ParentSpanID)
	}
	if h.ParentSampled != SampledTrue {
		t.Errorf("Expected sampled, got %s", h.ParentSampled)
	}
}

func TestParseSentryTraceVariants(t *testing.T) {
	tests := []struct {
		header  string
		ok      bool
		spanID  SpanID
		sampled Sampled
	}{
		{"566e3688a61d4bc888951642d6f14a19", true, "", SampledUndefined},
		{"566e3688a61d4bc888951642d6f14a19-566e3688a61d4bc8", true, "566e3688a61d4bc8", SampledUndefined},
		{"566e3688a61d4bc888951642d6f14a19-566e3688a61d4bc8-0", true, "566e3688a61d4bc8", SampledFalse},
		{"  566E3688A61D4BC888951642D6F14A19-566E3688A61D4BC8-1 ", true, "566e3688a61d4bc8", SampledTrue},
		{"", false, "", SampledUndefined},
		{"566e3688a61d4bc8", false, "", SampledUndefined},
		{"566e3688a61d4bc888951642d6f14a19-566e3688a61d4bc8-2", false, "", SampledUndefined},
		{"zz6e3688a61d4bc888951642d6f14a19-566e3688a61d4bc8-1", false, "", SampledUndefined},
	}
	for _, tt := range tests {
		h, ok := ParseSentryTrace(tt.header)
		if ok != tt.ok {
			t.Errorf("%q: expected ok=%v, got %v", tt.header, tt.ok, ok)
			continue
		}
		if !ok {
			continue
		}
		if h.ParentSpanID != tt.spanID {
			t.Errorf("%q: expected span %q, got %q", tt.header, tt.spanID, h.ParentSpanID)
		}
		if h.ParentSampled != tt.sampled {
			t.Errorf("%q: expected sampled %s, got %s", tt.header, tt.sampled, h.ParentSampled)
		}
	}
}

func TestParseTraceparent(t *testing.T) {
	tests := []struct {
		header  string
		ok      bool
		sampled Sampled
	}{
		{"00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01", true, SampledTrue},
		{"00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-00", true, SampledFalse},
		{"00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-03", true, SampledTrue},
		// Future versions may append fields.
		{"01-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01-extra", true, SampledTrue},
		{"00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01-extra", false, SampledUndefined},
		{"ff-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01", false, SampledUndefined},
		{"00-00000000000000000000000000000000-b7ad6b7169203331-01", false, SampledUndefined},
		{"00-0af7651916cd43dd8448eb211c80319c-0000000000000000-01", false, SampledUndefined},
		{"garbage", false, SampledUndefined},
	}
	for _, tt := range tests {
		h, ok := ParseTraceparent(tt.header)
		if ok != tt.ok {
			t.Errorf("%q: expected ok=%v, got %v", tt.header, tt.ok, ok)
			continue
		}
		if ok && h.ParentSampled != tt.sampled {
			t.Errorf("%q: expected sampled %s, got %s", tt.header, tt.sampled, h.ParentSampled)
		}
	}
}

func TestTraceHeaderRoundTrip(t *testing.T) {
	for _, sampled := range []Sampled{SampledTrue, SampledFalse, SampledUndefined} {
		want := TraceHeader{TraceID: NewTraceID(), ParentSpanID: NewSpanID(), ParentSampled: sampled}

		got, ok := ParseSentryTrace(want.SentryTrace())
		if !ok || got != want {
			t.Errorf("sentry-trace round trip: expected %+v, got %+v", want, got)
		}
	}

	// traceparent has no undefined state; unsampled encodes as 00.
	for _, sampled := range []Sampled{SampledTrue, SampledFalse} {
		want := TraceHeader{TraceID: NewTraceID(), ParentSpanID: NewSpanID(), ParentSampled: sampled}

		got, ok := ParseTraceparent(want.Traceparent())
		if !ok || got != want {
			t.Errorf("traceparent round trip: expected %+v, got %+v", want, got)
		}
	}
}

func TestContinueTrace(t *testing.T) {
	tc := ContinueTrace(nil, "566e3688a61d4bc888951642d6f14a19-566e3688a61d4bc8-1", "sentry-trace_id=566e3688a61d4bc888951642d6f14a19,sentry-sample_rate=0.5,sentry-sample_rand=0.25")

	if tc.TraceID() != "566e3688a61d4bc888951642d6f14a19" {
		t.Errorf("Expected inbound trace, got %s", tc.TraceID())
	}
	if tc.ParentSpanID() != "566e3688a61d4bc8" {
		t.Errorf("Expected inbound parent, got %s", tc.ParentSpanID())
	}
	if tc.ParentSampled() != SampledTrue {
		t.Errorf("Expected parent sampled, got %s", tc.ParentSampled())
	}
	md := tc.Metadata()
	if md.SampleRand == nil || *md.SampleRand != 0.25 {
		t.Errorf("Expected inbound sample rand 0.25, got %v", md.SampleRand)
	}
	if md.ParentSamplingRate == nil || *md.ParentSamplingRate != 0.5 {
		t.Errorf("Expected parent rate 0.5, got %v", md.ParentSamplingRate)
	}
	if !md.DynamicSamplingContext.IsFrozen() {
		t.Error("Expected inbound dsc to be frozen")
	}
}

func TestContinueTraceWithoutSentryEntries(t *testing.T) {
	tc := ContinueTrace(nil, "566e3688a61d4bc888951642d6f14a19-566e3688a61d4bc8", "vendor=a")

	dsc := tc.Metadata().DynamicSamplingContext
	if dsc == nil || !dsc.IsFrozen() {
		t.Fatal("Expected an empty frozen dsc for an older upstream")
	}
	if dsc.HasEntries() {
		t.Errorf("Expected no entries, got %v", dsc.Entries())
	}
}

func TestContinueTraceMalformed(t *testing.T) {
	tc := ContinueTrace(nil, "not-a-header", "sentry-trace_id=566e3688a61d4bc888951642d6f14a19")

	if tc.TraceID() == "566e3688a61d4bc888951642d6f14a19" || tc.TraceID().IsZero() {
		t.Errorf("Expected a new trace, got %q", tc.TraceID())
	}
	if !tc.ParentSpanID().IsZero() {
		t.Errorf("Expected no parent, got %s", tc.ParentSpanID())
	}
	if tc.Metadata().DynamicSamplingContext != nil {
		t.Error("Expected baggage without a trace header to be ignored")
	}
}

func TestContinueTraceOrgMismatch(t *testing.T) {
	logger, lines := captureLogger()
	cfg := Options{OrgID: "A", Logger: logger}
	inbound := "566e3688a61d4bc888951642d6f14a19"

	tc := ContinueTrace(cfg, inbound+"-566e3688a61d4bc8-1", "sentry-trace_id="+inbound+",sentry-org_id=B")
	if tc.TraceID() == TraceID(inbound) {
		t.Error("Expected a new trace for a foreign organization")
	}
	if !tc.ParentSpanID().IsZero() || tc.ParentSampled() != SampledUndefined {
		t.Error("Expected parent span and decision to be cleared")
	}
	if !lines.contains("org id does not match") {
		t.Errorf("Expected a diagnostic log, got %v", lines.lines)
	}

	// Matching and absent org ids continue the trace.
	for _, bg := range []string{"sentry-org_id=A", "sentry-trace_id=" + inbound} {
		if tc := ContinueTrace(cfg, inbound+"-566e3688a61d4bc8-1", bg); tc.TraceID() != TraceID(inbound) {
			t.Errorf("Expected %q to continue the trace", bg)
		}
	}
}

func TestContinueTraceOrgFromDSN(t *testing.T) {
	cfg := Options{DSN: "https://key@o42.ingest.example.com/7"}
	inbound := "566e3688a61d4bc888951642d6f14a19"

	if tc := ContinueTrace(cfg, inbound, "sentry-org_id=43"); tc.TraceID() == TraceID(inbound) {
		t.Error("Expected the DSN org id to scope the trace")
	}
}

func TestContinueTraceDerivesSampleRand(t *testing.T) {
	inbound := "566e3688a61d4bc888951642d6f14a19-566e3688a61d4bc8"
	for i := 0; i < 200; i++ {
		tc := ContinueTrace(nil, inbound+"-0", "sentry-sample_rate=0.4")
		if v := *tc.Metadata().SampleRand; v < 0.4 || v >= 1 {
			t.Fatalf("Expected unsampled upstream to imply a draw in [0.4, 1), got %v", v)
		}
		tc = ContinueTrace(nil, inbound+"-1", "sentry-sample_rate=0.4")
		if v := *tc.Metadata().SampleRand; v < 0 || v >= 0.4 {
			t.Fatalf("Expected sampled upstream to imply a draw in [0, 0.4), got %v", v)
		}
	}
}

func TestContinueTraceFromHeaders(t *testing.T) {
	h := http.Header{}
	h.Set(TraceparentHeader, "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
	h.Add(BaggageHeader, "vendor=a")
	h.Add(BaggageHeader, "sentry-trace_id=0af7651916cd43dd8448eb211c80319c")

	tc := ContinueTraceFromHeaders(nil, h)
	if tc.TraceID() != "0af7651916cd43dd8448eb211c80319c" {
		t.Errorf("Expected traceparent trace, got %s", tc.TraceID())
	}
	if v, _ := tc.Metadata().DynamicSamplingContext.Get(DSCTraceID); v != "0af7651916cd43dd8448eb211c80319c" {
		t.Errorf("Expected dsc from the second baggage header, got %q", v)
	}

	// sentry-trace takes precedence over traceparent.
	h.Set(SentryTraceHeader, "566e3688a61d4bc888951642d6f14a19-566e3688a61d4bc8-0")
	if tc := ContinueTraceFromHeaders(nil, h); tc.TraceID() != "566e3688a61d4bc888951642d6f14a19" {
		t.Errorf("Expected sentry-trace to win, got %s", tc.TraceID())
	}
}
