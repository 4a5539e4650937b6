package samplez

// SpanRecorder is the bounded, ordered list of child spans kept for a transaction.
// It is owned by one transaction and shared by reference with its descendants.
type SpanRecorder struct {
	spans    []*Span
	maxSpans int
	dropped  int
}

// NewSpanRecorder returns a recorder keeping at most maxSpans spans.
// A non-positive maxSpans selects DefaultMaxSpans.
func NewSpanRecorder(maxSpans int) *SpanRecorder {
	if maxSpans <= 0 {
		maxSpans = DefaultMaxSpans
	}
	return &SpanRecorder{maxSpans: maxSpans}
}

// add appends s unless the recorder is full.
func (r *SpanRecorder) add(s *Span) bool {
	if len(r.spans) >= r.maxSpans {
		r.dropped++
		return false
	}
	r.spans = append(r.spans, s)
	return true
}

// Spans returns the recorded spans in start order.
func (r *SpanRecorder) Spans() []*Span {
	out := make([]*Span, len(r.spans))
	copy(out, r.spans)
	return out
}

// Len returns the number of recorded spans.
func (r *SpanRecorder) Len() int { return len(r.spans) }

// MaxSpans returns the capacity.
func (r *SpanRecorder) MaxSpans() int { return r.maxSpans }

// Dropped returns how many spans were started after the recorder filled up.
func (r *SpanRecorder) Dropped() int { return r.dropped }
