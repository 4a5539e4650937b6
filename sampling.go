package samplez

import (
	"maps"
	"math"
	"math/rand/v2"
)

// SamplingMethod records which rule produced a sampling decision.
type SamplingMethod int

// Sampling methods in precedence order.
const (
	SamplingMethodUndefined SamplingMethod = iota
	SamplingMethodExplicit
	SamplingMethodClientSampler
	SamplingMethodParentSampleRate
	SamplingMethodParentDecision
	SamplingMethodConfigRate
)

func (m SamplingMethod) String() string {
	switch m {
	case SamplingMethodExplicit:
		return "explicitly_set"
	case SamplingMethodClientSampler:
		return "client_sampler"
	case SamplingMethodParentSampleRate:
		return "parent:sample_rate"
	case SamplingMethodParentDecision:
		return "parent:sampling_decision"
	case SamplingMethodConfigRate:
		return "config:traces_sample_rate"
	default:
		return "undefined"
	}
}

// randFloat64 returns a value in [0, 1). Replaced in tests.
var randFloat64 = rand.Float64

// SamplingContext is handed to a TracesSampler.
type SamplingContext struct {
	extra       map[string]any
	transaction TransactionContext
}

// NewSamplingContext wraps tc and the caller supplied extras.
func NewSamplingContext(tc TransactionContext, extra map[string]any) SamplingContext {
	return SamplingContext{transaction: tc, extra: maps.Clone(extra)}
}

// TransactionContext returns the context of the transaction being sampled.
func (c SamplingContext) TransactionContext() TransactionContext { return c.transaction }

// ParentSampled returns the upstream decision, if any.
func (c SamplingContext) ParentSampled() Sampled { return c.transaction.ParentSampled() }

// Get returns a caller supplied value.
func (c SamplingContext) Get(key string) (any, bool) {
	v, ok := c.extra[key]
	return v, ok
}

// AdditionalContext returns a copy of the caller supplied values.
func (c SamplingContext) AdditionalContext() map[string]any { return maps.Clone(c.extra) }

// SamplingDecision is the outcome of Sample.
type SamplingDecision struct {
	Method SamplingMethod
	// Rate is the resolved rate; meaningless when HasRate is false.
	Rate       float64
	SampleRand float64
	HasRate    bool
	Sampled    bool
	Profiled   bool
}

// Sample resolves the sampling decision of tx in place and returns it.
// It never fails: invalid rates degrade to not sampled and are logged.
func Sample(tx *Transaction, opts Options, extra map[string]any) SamplingDecision {
	log := opts.logger().WithValues("transaction", tx.Name, "trace_id", tx.TraceID)
	if tx.Metadata == nil {
		tx.Metadata = &TransactionMetadata{}
	}
	md := tx.Metadata
	d := SamplingDecision{SampleRand: md.ensureSampleRand()}

	if tx.Sampled != SampledUndefined {
		d.Method = SamplingMethodExplicit
		d.Sampled = tx.Sampled == SampledTrue
		md.SamplingMethod = d.Method
		return sampled(tx, opts, d)
	}

	if !opts.TracingEnabled() {
		tx.Sampled = SampledFalse
		log.V(1).Info("transaction not sampled: tracing is disabled")
		return d
	}

	var rate float64
	parentRate, hasParentRate := md.parentSampleRate()
	switch {
	case opts.TracesSampler != nil:
		d.Method = SamplingMethodClientSampler
		rate = opts.TracesSampler(NewSamplingContext(tx.context, extra))
	case hasParentRate:
		d.Method = SamplingMethodParentSampleRate
		rate = parentRate
	case tx.ParentSampled != SampledUndefined:
		d.Method = SamplingMethodParentDecision
		rate = 0
		if tx.ParentSampled == SampledTrue {
			rate = 1
		}
	default:
		d.Method = SamplingMethodConfigRate
		rate = *opts.TracesSampleRate
	}
	md.SamplingMethod = d.Method

	if !isValidRate(rate) {
		tx.Sampled = SampledFalse
		log.Info("transaction not sampled: invalid sample rate", "rate", rate, "method", d.Method.String())
		return d
	}
	d.Rate, d.HasRate = rate, true
	md.SamplingRate = Float(rate)

	if rate == 0 {
		tx.Sampled = SampledFalse
		log.V(1).Info("transaction not sampled: sample rate is zero", "method", d.Method.String())
		return d
	}

	d.Sampled = d.SampleRand < rate
	tx.Sampled = SampledFrom(d.Sampled)
	return sampled(tx, opts, d)
}

// sampled finishes a positive or explicit decision.
func sampled(tx *Transaction, opts Options, d SamplingDecision) SamplingDecision {
	log := opts.logger().WithValues("transaction", tx.Name, "trace_id", tx.TraceID)
	if !d.Sampled {
		log.V(1).Info("transaction not sampled", "method", d.Method.String())
		return d
	}
	log.V(1).Info("transaction sampled", "method", d.Method.String())
	tx.InitSpanRecorder(opts.SpanLimit())

	switch rate := opts.ProfilesSampleRate; {
	case rate == nil:
		log.V(1).Info("transaction not profiled: profiles sample rate is not set")
	case !isValidRate(*rate):
		log.Info("transaction not profiled: invalid profiles sample rate", "rate", *rate)
	case *rate > 0 && randFloat64() < *rate:
		d.Profiled = true
		tx.profiled = true
	}
	return d
}

func isValidRate(rate float64) bool {
	return !math.IsNaN(rate) && !math.IsInf(rate, 0) && rate >= 0 && rate <= 1
}

// parentSampleRate returns the inherited rate, falling back to the sample_rate
// entry of the dynamic sampling context. A non numeric entry yields NaN.
func (m *TransactionMetadata) parentSampleRate() (float64, bool) {
	if m.ParentSamplingRate != nil {
		return *m.ParentSamplingRate, true
	}
	if raw, ok := m.DynamicSamplingContext.Get(DSCSampleRate); ok {
		return parseRate(raw), true
	}
	return 0, false
}

func (m *TransactionMetadata) ensureSampleRand() float64 {
	if m.SampleRand == nil {
		m.SampleRand = Float(newSampleRand())
	}
	return *m.SampleRand
}

// newSampleRand draws a value in [0, 1) truncated to six decimals.
func newSampleRand() float64 {
	return truncate6(randFloat64())
}

// sampleRandFor draws a value consistent with an upstream decision made at rate:
// in [0, rate) when sampled and in [rate, 1) otherwise.
func sampleRandFor(sampled bool, rate float64) float64 {
	if !isValidRate(rate) {
		return newSampleRand()
	}
	if sampled {
		return truncate6(randFloat64() * rate)
	}
	v := truncate6(rate + randFloat64()*(1-rate))
	if v < rate {
		v = rate
	}
	return v
}

func truncate6(v float64) float64 {
	return math.Floor(v*1e6) / 1e6
}
