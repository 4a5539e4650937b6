package samplez

import (
	"encoding/json"
	"net/http"
)

// SpanStatus is the outcome of the operation a span measures.
type SpanStatus int

// Span statuses. SpanStatusUndefined is omitted from payloads.
const (
	SpanStatusUndefined SpanStatus = iota
	SpanStatusOK
	SpanStatusCanceled
	SpanStatusUnknown
	SpanStatusInvalidArgument
	SpanStatusDeadlineExceeded
	SpanStatusNotFound
	SpanStatusAlreadyExists
	SpanStatusPermissionDenied
	SpanStatusResourceExhausted
	SpanStatusFailedPrecondition
	SpanStatusAborted
	SpanStatusOutOfRange
	SpanStatusUnimplemented
	SpanStatusInternalError
	SpanStatusUnavailable
	SpanStatusDataLoss
	SpanStatusUnauthenticated
	maxSpanStatus
)

var spanStatusNames = [...]string{
	SpanStatusUndefined:          "",
	SpanStatusOK:                 "ok",
	SpanStatusCanceled:           "cancelled",
	SpanStatusUnknown:            "unknown",
	SpanStatusInvalidArgument:    "invalid_argument",
	SpanStatusDeadlineExceeded:   "deadline_exceeded",
	SpanStatusNotFound:           "not_found",
	SpanStatusAlreadyExists:      "already_exists",
	SpanStatusPermissionDenied:   "permission_denied",
	SpanStatusResourceExhausted:  "resource_exhausted",
	SpanStatusFailedPrecondition: "failed_precondition",
	SpanStatusAborted:            "aborted",
	SpanStatusOutOfRange:         "out_of_range",
	SpanStatusUnimplemented:      "unimplemented",
	SpanStatusInternalError:      "internal_error",
	SpanStatusUnavailable:        "unavailable",
	SpanStatusDataLoss:           "data_loss",
	SpanStatusUnauthenticated:    "unauthenticated",
}

func (s SpanStatus) String() string {
	if s < 0 || s >= maxSpanStatus {
		return ""
	}
	return spanStatusNames[s]
}

// MarshalJSON encodes the status name, or null for undefined and unknown values.
func (s SpanStatus) MarshalJSON() ([]byte, error) {
	name := s.String()
	if name == "" {
		return []byte("null"), nil
	}
	return json.Marshal(name)
}

// UnmarshalJSON decodes a status name. Unknown names decode as undefined.
func (s *SpanStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*s = SpanStatusUndefined
	for i, n := range spanStatusNames {
		if n != "" && n == name {
			*s = SpanStatus(i)
			break
		}
	}
	return nil
}

// SpanStatusFromHTTPCode maps an HTTP response status code to a span status.
func SpanStatusFromHTTPCode(code int) SpanStatus {
	switch code {
	case http.StatusBadRequest:
		return SpanStatusInvalidArgument
	case http.StatusUnauthorized:
		return SpanStatusUnauthenticated
	case http.StatusForbidden:
		return SpanStatusPermissionDenied
	case http.StatusNotFound:
		return SpanStatusNotFound
	case http.StatusConflict:
		return SpanStatusAlreadyExists
	case http.StatusTooManyRequests:
		return SpanStatusResourceExhausted
	case 499:
		return SpanStatusCanceled
	case http.StatusInternalServerError:
		return SpanStatusInternalError
	case http.StatusNotImplemented:
		return SpanStatusUnimplemented
	case http.StatusServiceUnavailable:
		return SpanStatusUnavailable
	case http.StatusGatewayTimeout:
		return SpanStatusDeadlineExceeded
	}
	switch {
	case code >= 200 && code < 300:
		return SpanStatusOK
	case code >= 400 && code < 500:
		return SpanStatusInvalidArgument
	case code >= 500 && code < 600:
		return SpanStatusInternalError
	}
	return SpanStatusUnknown
}

// TransactionSource describes where a transaction name came from.
type TransactionSource int

// Transaction sources.
const (
	SourceCustom TransactionSource = iota
	SourceURL
	SourceRoute
	SourceView
	SourceComponent
	SourceTask
)

var transactionSourceNames = [...]string{
	SourceCustom:    "custom",
	SourceURL:       "url",
	SourceRoute:     "route",
	SourceView:      "view",
	SourceComponent: "component",
	SourceTask:      "task",
}

func (s TransactionSource) String() string {
	if s < 0 || int(s) >= len(transactionSourceNames) {
		return transactionSourceNames[SourceCustom]
	}
	return transactionSourceNames[s]
}

// MarshalJSON encodes the source name.
func (s TransactionSource) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Sampled is a tri-state sampling flag.
type Sampled int

// Sampling flags. SampledUndefined means no decision has been made.
const (
	SampledUndefined Sampled = iota
	SampledFalse
	SampledTrue
)

// SampledFrom converts a bool decision.
func SampledFrom(b bool) Sampled {
	if b {
		return SampledTrue
	}
	return SampledFalse
}

// Bool returns the decision, treating undefined as false.
func (s Sampled) Bool() bool { return s == SampledTrue }

// Ptr returns the decision as a *bool, nil when undefined.
func (s Sampled) Ptr() *bool {
	if s == SampledUndefined {
		return nil
	}
	b := s == SampledTrue
	return &b
}

func (s Sampled) String() string {
	switch s {
	case SampledTrue:
		return "true"
	case SampledFalse:
		return "false"
	default:
		return "undefined"
	}
}
