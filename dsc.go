package samplez

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// SentryPrefix marks baggage members that carry dynamic sampling context entries.
const SentryPrefix = "sentry-"

// Well known dynamic sampling context keys.
const (
	DSCTraceID     = "trace_id"
	DSCSampleRate  = "sample_rate"
	DSCSampleRand  = "sample_rand"
	DSCSampled     = "sampled"
	DSCTransaction = "transaction"
	DSCPublicKey   = "public_key"
	DSCOrgID       = "org_id"
	DSCRelease     = "release"
	DSCEnvironment = "environment"
	DSCUserSegment = "user_segment"
)

type entry struct {
	key   string
	value string
}

// DynamicSamplingContext carries the trace-level sampling inputs that every SDK
// taking part in a trace must agree on. Once frozen, every mutation is a no-op.
// The zero value is an empty, unfrozen context.
type DynamicSamplingContext struct {
	entries []entry
	frozen  bool
}

// NewDynamicSamplingContext returns an empty, unfrozen context.
func NewDynamicSamplingContext() *DynamicSamplingContext {
	return &DynamicSamplingContext{}
}

// DynamicSamplingContextFromHeader decodes the sentry- members of a baggage header.
// The result is frozen when at least one entry was found. Malformed members are skipped.
func DynamicSamplingContextFromHeader(header string) *DynamicSamplingContext {
	dsc := &DynamicSamplingContext{}
	for _, member := range strings.Split(header, ",") {
		if strings.TrimSpace(member) == "" {
			continue
		}
		keyValue, _, _ := strings.Cut(member, ";")
		key, value, ok := strings.Cut(strings.TrimSpace(keyValue), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if !strings.HasPrefix(key, SentryPrefix) {
			continue
		}
		dsc.Set(unescape(strings.TrimPrefix(key, SentryPrefix)), unescape(strings.TrimSpace(value)))
	}
	if dsc.HasEntries() {
		dsc.Freeze()
	}
	return dsc
}

// DynamicSamplingContextFromTransaction assembles the frozen context published by tx.
// cfg and scope may be nil.
func DynamicSamplingContextFromTransaction(tx *Transaction, cfg OptionsProvider, scope ScopeProvider) *DynamicSamplingContext {
	dsc := &DynamicSamplingContext{}
	dsc.Set(DSCTraceID, tx.TraceID.String())
	if md := tx.Metadata; md != nil {
		if md.SamplingRate != nil {
			dsc.Set(DSCSampleRate, formatRate(*md.SamplingRate))
		}
	}
	// URL sourced names are high cardinality.
	if tx.Source != SourceURL && tx.Name != "" {
		dsc.Set(DSCTransaction, tx.Name)
	}
	dsc.setClientEntries(cfg, scope)
	if tx.Sampled != SampledUndefined {
		dsc.Set(DSCSampled, strconv.FormatBool(tx.Sampled == SampledTrue))
	}
	if md := tx.Metadata; md != nil && md.SampleRand != nil {
		dsc.Set(DSCSampleRand, formatRate(*md.SampleRand))
	}
	dsc.Freeze()
	return dsc
}

// DynamicSamplingContextFromOptions assembles the frozen context for a propagation
// context that has no transaction. cfg and scope may be nil.
func DynamicSamplingContextFromOptions(cfg OptionsProvider, scope ScopeProvider, pc PropagationContext) *DynamicSamplingContext {
	dsc := &DynamicSamplingContext{}
	dsc.Set(DSCTraceID, pc.TraceID.String())
	if cfg != nil {
		if rate := cfg.Options().TracesSampleRate; rate != nil {
			dsc.Set(DSCSampleRate, formatRate(*rate))
		}
	}
	dsc.setClientEntries(cfg, scope)
	dsc.Set(DSCSampleRand, formatRate(pc.SampleRand))
	dsc.Freeze()
	return dsc
}

func (d *DynamicSamplingContext) setClientEntries(cfg OptionsProvider, scope ScopeProvider) {
	if cfg != nil {
		opts := cfg.Options()
		if key := opts.PublicKey(); key != "" {
			d.Set(DSCPublicKey, key)
		}
		if org := opts.EffectiveOrgID(); org != "" {
			d.Set(DSCOrgID, org)
		}
		if opts.Release != "" {
			d.Set(DSCRelease, opts.Release)
		}
		if opts.Environment != "" {
			d.Set(DSCEnvironment, opts.Environment)
		}
	}
	if scope != nil {
		if segment := scope.UserSegment(); segment != "" {
			d.Set(DSCUserSegment, segment)
		}
	}
}

// Set stores value under key, keeping the original position of an existing key.
// No-op when frozen.
func (d *DynamicSamplingContext) Set(key, value string) {
	if d == nil || d.frozen {
		return
	}
	for i := range d.entries {
		if d.entries[i].key == key {
			d.entries[i].value = value
			return
		}
	}
	d.entries = append(d.entries, entry{key: key, value: value})
}

// Get returns the value stored under key.
func (d *DynamicSamplingContext) Get(key string) (string, bool) {
	if d == nil {
		return "", false
	}
	for _, e := range d.entries {
		if e.key == key {
			return e.value, true
		}
	}
	return "", false
}

// Has reports whether key is present.
func (d *DynamicSamplingContext) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// HasEntries reports whether the context holds at least one entry.
func (d *DynamicSamplingContext) HasEntries() bool {
	return d != nil && len(d.entries) > 0
}

// Entries returns a copy of the entries as a map.
func (d *DynamicSamplingContext) Entries() map[string]string {
	if d == nil {
		return nil
	}
	m := make(map[string]string, len(d.entries))
	for _, e := range d.entries {
		m[e.key] = e.value
	}
	return m
}

// Keys returns the entry keys in insertion order.
func (d *DynamicSamplingContext) Keys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, len(d.entries))
	for i, e := range d.entries {
		keys[i] = e.key
	}
	return keys
}

// Freeze makes the context immutable. Freezing twice is harmless.
func (d *DynamicSamplingContext) Freeze() {
	if d != nil {
		d.frozen = true
	}
}

// IsFrozen reports whether the context is immutable.
func (d *DynamicSamplingContext) IsFrozen() bool {
	return d != nil && d.frozen
}

// String encodes the context as baggage list members.
func (d *DynamicSamplingContext) String() string {
	if d == nil {
		return ""
	}
	items := make([]string, 0, len(d.entries))
	for _, e := range d.entries {
		items = append(items, SentryPrefix+escape(e.key)+"="+escape(e.value))
	}
	return strings.Join(items, ",")
}

// MarshalJSON encodes the entries as a JSON object.
func (d *DynamicSamplingContext) MarshalJSON() ([]byte, error) {
	return marshalOrdered(d.entriesOrNil())
}

func (d *DynamicSamplingContext) entriesOrNil() []entry {
	if d == nil {
		return nil
	}
	return d.entries
}

func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// escape percent-encodes everything except unreserved characters.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func unescape(s string) string {
	v, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return v
}

func marshalOrdered(entries []entry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
