package samplez

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidTraceID is returned when a string is not a 32 character hex trace ID.
	ErrInvalidTraceID = errors.New("invalid trace id")
	// ErrInvalidSpanID is returned when a string is not a 16 character hex span ID.
	ErrInvalidSpanID = errors.New("invalid span id")
)

var (
	traceIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)
	spanIDPattern  = regexp.MustCompile(`^[0-9a-f]{16}$`)
)

// TraceID identifies a trace. The zero value means no trace ID.
type TraceID string

// SpanID identifies a span within a trace. The zero value means no span ID.
type SpanID string

// NewTraceID generates a random trace ID.
func NewTraceID() TraceID {
	return TraceID(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// NewSpanID generates a random span ID.
func NewSpanID() SpanID {
	return SpanID(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}

// ParseTraceID validates s and returns it as a TraceID.
// Upper case input is accepted and stored lower case.
func ParseTraceID(s string) (TraceID, error) {
	v := strings.ToLower(s)
	if !traceIDPattern.MatchString(v) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTraceID, s)
	}
	return TraceID(v), nil
}

// ParseSpanID validates s and returns it as a SpanID.
// Upper case input is accepted and stored lower case.
func ParseSpanID(s string) (SpanID, error) {
	v := strings.ToLower(s)
	if !spanIDPattern.MatchString(v) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSpanID, s)
	}
	return SpanID(v), nil
}

// MustParseTraceID is like ParseTraceID but panics on malformed input.
func MustParseTraceID(s string) TraceID {
	id, err := ParseTraceID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// MustParseSpanID is like ParseSpanID but panics on malformed input.
func MustParseSpanID(s string) SpanID {
	id, err := ParseSpanID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id TraceID) String() string { return string(id) }

// IsZero reports whether the ID is absent.
func (id TraceID) IsZero() bool { return id == "" }

func (id SpanID) String() string { return string(id) }

// IsZero reports whether the ID is absent.
func (id SpanID) IsZero() bool { return id == "" }
