package samplez

import (
	"strings"
)

// BaggageHeader is the W3C baggage header name.
const BaggageHeader = "baggage"

// BaggageProperty is a key or key=value property attached to a baggage member.
type BaggageProperty struct {
	Key      string
	Value    string
	HasValue bool
}

func (p BaggageProperty) String() string {
	if !p.HasValue {
		return escape(p.Key)
	}
	return escape(p.Key) + "=" + escape(p.Value)
}

// BaggageMember is one list member of a baggage header.
type BaggageMember struct {
	Key        string
	Value      string
	Properties []BaggageProperty
}

func (m BaggageMember) String() string {
	var b strings.Builder
	b.WriteString(escape(m.Key))
	b.WriteByte('=')
	b.WriteString(escape(m.Value))
	for _, p := range m.Properties {
		b.WriteByte(';')
		b.WriteString(p.String())
	}
	return b.String()
}

// Baggage is an ordered set of baggage members. Baggage parsed from an inbound
// header is frozen; every mutation of frozen baggage is a no-op.
type Baggage struct {
	members []BaggageMember
	frozen  bool
}

// NewBaggage returns empty, unfrozen baggage holding members.
func NewBaggage(members ...BaggageMember) *Baggage {
	b := &Baggage{}
	for _, m := range members {
		b.SetMember(m)
	}
	return b
}

// ParseBaggage decodes a baggage header. Malformed members are skipped, so
// parsing never fails. The result is frozen.
func ParseBaggage(header string) *Baggage {
	b := &Baggage{}
	for _, raw := range strings.Split(header, ",") {
		if m, ok := parseBaggageMember(raw); ok {
			b.SetMember(m)
		}
	}
	b.Freeze()
	return b
}

func parseBaggageMember(raw string) (BaggageMember, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return BaggageMember{}, false
	}
	parts := strings.Split(raw, ";")
	key, value, ok := strings.Cut(parts[0], "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return BaggageMember{}, false
	}
	m := BaggageMember{
		Key:   unescape(key),
		Value: unescape(strings.TrimSpace(value)),
	}
	for _, rawProp := range parts[1:] {
		rawProp = strings.TrimSpace(rawProp)
		if rawProp == "" {
			continue
		}
		pk, pv, hasValue := strings.Cut(rawProp, "=")
		pk = strings.TrimSpace(pk)
		if pk == "" {
			continue
		}
		m.Properties = append(m.Properties, BaggageProperty{
			Key:      unescape(pk),
			Value:    unescape(strings.TrimSpace(pv)),
			HasValue: hasValue,
		})
	}
	return m, true
}

// Get returns the value of the member named key.
func (b *Baggage) Get(key string) (string, bool) {
	m, ok := b.Member(key)
	return m.Value, ok
}

// Member returns the member named key.
func (b *Baggage) Member(key string) (BaggageMember, bool) {
	if b == nil {
		return BaggageMember{}, false
	}
	for _, m := range b.members {
		if m.Key == key {
			return m, true
		}
	}
	return BaggageMember{}, false
}

// Members returns a copy of all members in order.
func (b *Baggage) Members() []BaggageMember {
	if b == nil {
		return nil
	}
	out := make([]BaggageMember, len(b.members))
	copy(out, b.members)
	return out
}

// Len returns the number of members.
func (b *Baggage) Len() int {
	if b == nil {
		return 0
	}
	return len(b.members)
}

// Set stores a member without properties. No-op when frozen.
func (b *Baggage) Set(key, value string) {
	b.SetMember(BaggageMember{Key: key, Value: value})
}

// SetMember stores m, replacing a member with the same key in place. No-op when frozen.
func (b *Baggage) SetMember(m BaggageMember) {
	if b == nil || b.frozen || m.Key == "" {
		return
	}
	for i := range b.members {
		if b.members[i].Key == m.Key {
			b.members[i] = m
			return
		}
	}
	b.members = append(b.members, m)
}

// Delete removes the member named key. No-op when frozen.
func (b *Baggage) Delete(key string) {
	if b == nil || b.frozen {
		return
	}
	for i := range b.members {
		if b.members[i].Key == key {
			b.members = append(b.members[:i], b.members[i+1:]...)
			return
		}
	}
}

// Freeze makes the baggage immutable.
func (b *Baggage) Freeze() {
	if b != nil {
		b.frozen = true
	}
}

// IsFrozen reports whether the baggage is immutable.
func (b *Baggage) IsFrozen() bool {
	return b != nil && b.frozen
}

// HasSentryEntries reports whether any member key starts with SentryPrefix.
func (b *Baggage) HasSentryEntries() bool {
	if b == nil {
		return false
	}
	for _, m := range b.members {
		if strings.HasPrefix(m.Key, SentryPrefix) {
			return true
		}
	}
	return false
}

// DynamicSamplingContext extracts the sentry- members. The result is frozen
// whenever the baggage is frozen or carries Sentry entries.
func (b *Baggage) DynamicSamplingContext() *DynamicSamplingContext {
	dsc := &DynamicSamplingContext{}
	if b == nil {
		return dsc
	}
	for _, m := range b.members {
		if strings.HasPrefix(m.Key, SentryPrefix) {
			dsc.Set(strings.TrimPrefix(m.Key, SentryPrefix), m.Value)
		}
	}
	if b.frozen || dsc.HasEntries() {
		dsc.Freeze()
	}
	return dsc
}

// WithDynamicSamplingContext returns unfrozen baggage whose sentry- members are
// replaced by dsc while foreign members keep their order and properties.
func (b *Baggage) WithDynamicSamplingContext(dsc *DynamicSamplingContext) *Baggage {
	out := &Baggage{}
	if b != nil {
		for _, m := range b.members {
			if !strings.HasPrefix(m.Key, SentryPrefix) {
				out.members = append(out.members, m)
			}
		}
	}
	if dsc != nil {
		for _, e := range dsc.entries {
			out.members = append(out.members, BaggageMember{Key: SentryPrefix + e.key, Value: e.value})
		}
	}
	return out
}

// String encodes the baggage as a header value.
func (b *Baggage) String() string {
	if b == nil {
		return ""
	}
	items := make([]string, len(b.members))
	for i, m := range b.members {
		items[i] = m.String()
	}
	return strings.Join(items, ",")
}
