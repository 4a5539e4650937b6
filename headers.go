package samplez

import (
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
)

// Header names.
const (
	SentryTraceHeader = "sentry-trace"
	TraceparentHeader = "traceparent"
)

const traceparentVersion = "00"

var (
	sentryTracePattern = regexp.MustCompile(`(?i)^[ \t]*([0-9a-f]{32})?-?([0-9a-f]{16})?-?([01])?[ \t]*$`)
	traceparentPattern = regexp.MustCompile(`(?i)^[ \t]*([0-9a-f]{2})-([0-9a-f]{32})-([0-9a-f]{16})-([0-9a-f]{2})(?:-.*)?[ \t]*$`)
)

// TraceHeader is the decoded form of a sentry-trace or traceparent header.
type TraceHeader struct {
	TraceID       TraceID
	ParentSpanID  SpanID
	ParentSampled Sampled
}

// SentryTrace encodes h as a sentry-trace header value.
func (h TraceHeader) SentryTrace() string {
	return FormatSentryTrace(h.TraceID, h.ParentSpanID, h.ParentSampled)
}

// Traceparent encodes h as a traceparent header value.
func (h TraceHeader) Traceparent() string {
	return FormatTraceparent(h.TraceID, h.ParentSpanID, h.ParentSampled)
}

// ParseSentryTrace decodes traceId[-spanId[-sampled]]. It reports false when
// no trace ID could be read.
func ParseSentryTrace(header string) (TraceHeader, bool) {
	m := sentryTracePattern.FindStringSubmatch(header)
	if m == nil || m[1] == "" {
		return TraceHeader{}, false
	}
	h := TraceHeader{TraceID: TraceID(strings.ToLower(m[1]))}
	if m[2] != "" {
		h.ParentSpanID = SpanID(strings.ToLower(m[2]))
	}
	switch m[3] {
	case "1":
		h.ParentSampled = SampledTrue
	case "0":
		h.ParentSampled = SampledFalse
	}
	return h, true
}

// ParseTraceparent decodes a W3C version-traceId-spanId-flags header. Any
// version except ff is accepted. All-zero identifiers are rejected.
func ParseTraceparent(header string) (TraceHeader, bool) {
	m := traceparentPattern.FindStringSubmatch(header)
	if m == nil || strings.EqualFold(m[1], "ff") {
		return TraceHeader{}, false
	}
	if m[1] == traceparentVersion && strings.Count(strings.TrimSpace(header), "-") != 3 {
		return TraceHeader{}, false
	}
	traceID, spanID := strings.ToLower(m[2]), strings.ToLower(m[3])
	if strings.Trim(traceID, "0") == "" || strings.Trim(spanID, "0") == "" {
		return TraceHeader{}, false
	}
	flags, err := strconv.ParseUint(m[4], 16, 8)
	if err != nil {
		return TraceHeader{}, false
	}
	return TraceHeader{
		TraceID:       TraceID(traceID),
		ParentSpanID:  SpanID(spanID),
		ParentSampled: SampledFrom(flags&0x01 != 0),
	}, true
}

// FormatSentryTrace encodes a sentry-trace header value. The sampled flag is
// omitted when undefined.
func FormatSentryTrace(traceID TraceID, spanID SpanID, sampled Sampled) string {
	var b strings.Builder
	b.WriteString(traceID.String())
	b.WriteByte('-')
	b.WriteString(spanID.String())
	switch sampled {
	case SampledTrue:
		b.WriteString("-1")
	case SampledFalse:
		b.WriteString("-0")
	}
	return b.String()
}

// FormatTraceparent encodes a version 00 traceparent header value.
func FormatTraceparent(traceID TraceID, spanID SpanID, sampled Sampled) string {
	flags := "00"
	if sampled == SampledTrue {
		flags = "01"
	}
	return traceparentVersion + "-" + traceID.String() + "-" + spanID.String() + "-" + flags
}

// ContinueTrace builds the context of a transaction continuing the trace
// described by the inbound sentry-trace and baggage headers. Malformed headers
// start a new trace. cfg may be nil.
func ContinueTrace(cfg OptionsProvider, sentryTrace, baggage string) TransactionContext {
	return PropagationContextFromHeaders(cfg, sentryTrace, baggage).TransactionContext("", "")
}

// ContinueTraceFromHeaders is ContinueTrace for an inbound http.Header. A
// traceparent header is used when sentry-trace is missing or malformed.
func ContinueTraceFromHeaders(cfg OptionsProvider, h http.Header) TransactionContext {
	return propagationFromHeader(cfg, h).TransactionContext("", "")
}

func propagationFromHeader(cfg OptionsProvider, h http.Header) PropagationContext {
	return continuePropagation(cfg, h.Get(SentryTraceHeader), h.Get(TraceparentHeader), strings.Join(h.Values(BaggageHeader), ","))
}

// continuePropagation decodes the inbound headers and applies the org scoping rule.
func continuePropagation(cfg OptionsProvider, sentryTrace, traceparent, baggage string) PropagationContext {
	pc := NewPropagationContext()
	th, ok := ParseSentryTrace(sentryTrace)
	if !ok {
		th, ok = ParseTraceparent(traceparent)
	}
	if !ok {
		return pc
	}

	pc.TraceID = th.TraceID
	pc.ParentSpanID = th.ParentSpanID
	pc.ParentSampled = th.ParentSampled

	// Without Sentry entries the upstream SDK predates dynamic sampling; its
	// empty context is still frozen so nothing is fabricated downstream.
	dsc := DynamicSamplingContextFromHeader(baggage)
	dsc.Freeze()
	pc.DynamicSamplingContext = dsc

	if local := localOrgID(cfg); local != "" {
		if inbound, ok := dsc.Get(DSCOrgID); ok && inbound != local {
			optionsLogger(cfg).V(1).Info("starting a new trace: inbound org id does not match",
				"local_org_id", local, "inbound_org_id", inbound)
			return NewPropagationContext()
		}
	}

	rate, hasRate := 0.0, false
	if raw, ok := dsc.Get(DSCSampleRate); ok {
		rate, hasRate = parseRate(raw), true
	}
	if raw, ok := dsc.Get(DSCSampleRand); ok {
		if v := parseRate(raw); isValidRate(v) && v < 1 {
			pc.SampleRand = v
			return pc
		}
	}
	if hasRate && pc.ParentSampled != SampledUndefined {
		pc.SampleRand = sampleRandFor(pc.ParentSampled == SampledTrue, rate)
	}
	return pc
}

func localOrgID(cfg OptionsProvider) string {
	if cfg == nil {
		return ""
	}
	return cfg.Options().EffectiveOrgID()
}

func optionsLogger(cfg OptionsProvider) logr.Logger {
	if cfg == nil {
		return logr.Discard()
	}
	return cfg.Options().logger()
}

// parseRate parses a decimal rate; anything unparsable yields NaN.
func parseRate(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
