package flow

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when Submit is called while a request is in flight.
var ErrBusy = errors.New("flow: submission already in flight")

// Kind classifies why a submission did not produce an answer.
type Kind int

const (
	EmptyInput Kind = iota + 1
	OffTopic
	ServiceError
	TransportError
	UnknownError
)

func (k Kind) String() string {
	switch k {
	case EmptyInput:
		return "empty_input"
	case OffTopic:
		return "off_topic"
	case ServiceError:
		return "service_error"
	case TransportError:
		return "transport_error"
	case UnknownError:
		return "unknown_error"
	default:
		return "invalid"
	}
}

// SubmissionError is the user-facing failure of a single submission.
type SubmissionError struct {
	Kind       Kind
	Message    string
	StatusCode int
	Err        error
}

func (e *SubmissionError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *SubmissionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// statusError is satisfied by answer service clients that report a non-2xx
// reply.
type statusError interface {
	HTTPStatusCode() int
	HTTPStatusText() string
}

func classify(err error) *SubmissionError {
	var se statusError
	if errors.As(err, &se) {
		return &SubmissionError{
			Kind:       ServiceError,
			Message:    fmt.Sprintf("API request failed with status %d: %s", se.HTTPStatusCode(), se.HTTPStatusText()),
			StatusCode: se.HTTPStatusCode(),
			Err:        err,
		}
	}
	if msg := err.Error(); msg != "" {
		return &SubmissionError{Kind: TransportError, Message: msg, Err: err}
	}
	return &SubmissionError{Kind: UnknownError, Message: MsgUnknownError, Err: err}
}
