package samplez

import (
	"encoding/json"
	"strconv"
	"time"
)

const transactionType = "transaction"

// Timestamp encodes as fractional unix seconds with microsecond precision.
type Timestamp time.Time

// Time returns the timestamp as a time.Time.
func (t Timestamp) Time() time.Time { return time.Time(t) }

// Equal reports whether t and u are the same instant.
func (t Timestamp) Equal(u Timestamp) bool { return time.Time(t).Equal(time.Time(u)) }

// MarshalJSON encodes t as a JSON number.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	micros := time.Time(t).UnixMicro()
	return []byte(strconv.FormatFloat(float64(micros)/1e6, 'f', 6, 64)), nil
}

// UnmarshalJSON decodes fractional unix seconds.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return err
	}
	*t = Timestamp(time.UnixMicro(int64(secs*1e6 + 0.5)).UTC())
	return nil
}

// TraceContext is the payload shape of a span's identity and metadata.
type TraceContext struct {
	Tags         map[string]string `json:"tags,omitempty"`
	Data         map[string]Value  `json:"data,omitempty"`
	TraceID      TraceID           `json:"trace_id"`
	SpanID       SpanID            `json:"span_id"`
	ParentSpanID SpanID            `json:"parent_span_id,omitempty"`
	Op           string            `json:"op,omitempty"`
	Description  string            `json:"description,omitempty"`
	Status       SpanStatus        `json:"status,omitempty"`
}

// SpanPayload is a finished child span inside a transaction payload.
type SpanPayload struct {
	TraceContext
	StartTimestamp Timestamp `json:"start_timestamp"`
	Timestamp      Timestamp `json:"timestamp"`
}

// EventContexts holds the contexts attached to a transaction payload.
type EventContexts struct {
	Trace TraceContext `json:"trace"`
}

// TransactionInfo describes the transaction name.
type TransactionInfo struct {
	Source TransactionSource `json:"source"`
}

// TransactionEvent is the payload of a finished, sampled transaction.
//
//nolint:govet // Field order follows the payload layout
type TransactionEvent struct {
	EventID         string            `json:"event_id"`
	Type            string            `json:"type"`
	Transaction     string            `json:"transaction"`
	TransactionInfo TransactionInfo   `json:"transaction_info"`
	StartTimestamp  Timestamp         `json:"start_timestamp"`
	Timestamp       Timestamp         `json:"timestamp"`
	Release         string            `json:"release,omitempty"`
	Environment     string            `json:"environment,omitempty"`
	Tags            map[string]string `json:"tags,omitempty"`
	Contexts        EventContexts     `json:"contexts"`
	Spans           []SpanPayload     `json:"spans"`

	// DynamicSamplingContext belongs in the envelope header, not the event body.
	DynamicSamplingContext *DynamicSamplingContext `json:"-"`
	Profiled               bool                    `json:"-"`
}
