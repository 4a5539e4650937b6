package samplez

import (
	"errors"
	"testing"
)

func TestNewIDsFormat(t *testing.T) {
	traceIDs := make(map[TraceID]struct{}, 10000)
	spanIDs := make(map[SpanID]struct{}, 10000)

	for i := 0; i < 10000; i++ {
		traceID := NewTraceID()
		if !traceIDPattern.MatchString(traceID.String()) {
			t.Fatalf("Invalid trace ID %q", traceID)
		}
		if _, dup := traceIDs[traceID]; dup {
			t.Fatalf("Duplicate trace ID %q after %d generations", traceID, i)
		}
		traceIDs[traceID] = struct{}{}

		spanID := NewSpanID()
		if !spanIDPattern.MatchString(spanID.String()) {
			t.Fatalf("Invalid span ID %q", spanID)
		}
		if _, dup := spanIDs[spanID]; dup {
			t.Fatalf("Duplicate span ID %q after %d generations", spanID, i)
		}
		spanIDs[spanID] = struct{}{}
	}
}

func TestParseTraceID(t *testing.T) {
	id, err := ParseTraceID("566E3688A61D4BC888951642D6F14A19")
	if err != nil {
		t.Fatalf("Expected valid trace ID, got %v", err)
	}
	if id != "566e3688a61d4bc888951642d6f14a19" {
		t.Errorf("Expected lower case ID, got %s", id)
	}

	for _, bad := range []string{"", "566e3688", "566e3688a61d4bc888951642d6f14a19a", "g66e3688a61d4bc888951642d6f14a19"} {
		if _, err := ParseTraceID(bad); !errors.Is(err, ErrInvalidTraceID) {
			t.Errorf("%q: expected ErrInvalidTraceID, got %v", bad, err)
		}
	}
}

func TestParseSpanID(t *testing.T) {
	if _, err := ParseSpanID("566e3688a61d4bc8"); err != nil {
		t.Errorf("Expected valid span ID, got %v", err)
	}
	for _, bad := range []string{"", "566e3688a61d4bc", "566e3688a61d4bc8-", "566e3688a61d4bcx"} {
		if _, err := ParseSpanID(bad); !errors.Is(err, ErrInvalidSpanID) {
			t.Errorf("%q: expected ErrInvalidSpanID, got %v", bad, err)
		}
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected MustParseTraceID to panic on invalid input")
		}
	}()
	MustParseTraceID("invalid")
}
