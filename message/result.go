package message

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// ErrorKind classifies a failed call.
type ErrorKind int

const (
	// KindUnavailable: the editor could not be reached, or the connection died mid-call.
	KindUnavailable ErrorKind = iota + 1
	// KindTimeout: no response within the call's time bound.
	KindTimeout
	// KindInvalidRequest: the call was malformed for the target (unknown method,
	// wrong argument shape, result outside the method's contract).
	KindInvalidRequest
	// KindRemoteRejected: the remote operation ran and declined.
	KindRemoteRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindInvalidRequest:
		return "invalid_request"
	case KindRemoteRejected:
		return "remote_rejected"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Retryable reports whether retrying the same call can succeed without changing it.
// Only timeouts qualify; retries are always the caller's decision.
func (k ErrorKind) Retryable() bool { return k == KindTimeout }

// CallError is the failure half of a Result.
type CallError struct {
	Kind    ErrorKind
	Message string
}

func (e *CallError) Error() string {
	return e.Kind.String() + ": " + e.Message
}

// Is matches any CallError of the same kind, so errors.Is(err, ErrTimeout) works
// regardless of the message.
func (e *CallError) Is(target error) bool {
	t, ok := target.(*CallError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrUnavailable    = &CallError{Kind: KindUnavailable}
	ErrTimeout        = &CallError{Kind: KindTimeout}
	ErrInvalidRequest = &CallError{Kind: KindInvalidRequest}
	ErrRemoteRejected = &CallError{Kind: KindRemoteRejected}
)

// Outcome is Success or Failure.
type Outcome int

const (
	OutcomeSuccess Outcome = iota + 1
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	}
	return "invalid"
}

// Result is the outcome of one call: exactly one of payload and err is set.
// Build it with Success or Failure only.
type Result struct {
	payload json.RawMessage
	err     *CallError
}

// Success wraps a result payload. An empty payload becomes JSON null.
func Success(payload []byte) Result {
	if len(payload) == 0 {
		payload = []byte("null")
	}
	return Result{payload: append(json.RawMessage(nil), payload...)}
}

// Failure builds a failed result. The message is kept verbatim; an empty one is
// replaced by the kind name so every failure says something.
func Failure(kind ErrorKind, msg string) Result {
	if msg == "" {
		msg = kind.String()
	}
	return Result{err: &CallError{Kind: kind, Message: msg}}
}

// Failuref is Failure with formatting.
func Failuref(kind ErrorKind, format string, args ...any) Result {
	return Failure(kind, fmt.Sprintf(format, args...))
}

func (r Result) OK() bool { return r.err == nil && r.payload != nil }

func (r Result) Outcome() Outcome {
	if r.OK() {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// Payload returns the raw JSON payload, nil on failure.
func (r Result) Payload() json.RawMessage { return r.payload }

// Err returns the failure as an error, nil on success. The zero Result reports an
// invalid-request failure rather than pretending to have succeeded.
func (r Result) Err() error {
	if r.err != nil {
		return r.err
	}
	if r.payload == nil {
		return &CallError{Kind: KindInvalidRequest, Message: "empty result"}
	}
	return nil
}

// CallError returns the failure detail, nil on success.
func (r Result) CallError() *CallError { return r.err }

// Kind returns the failure kind, 0 on success.
func (r Result) Kind() ErrorKind {
	if r.err == nil {
		return 0
	}
	return r.err.Kind
}

// Decode unmarshals the payload into v, or returns the call's error.
func (r Result) Decode(v any) error {
	if err := r.Err(); err != nil {
		return err
	}
	return json.Unmarshal(r.payload, v)
}

// Canonical returns the payload in RFC 8785 canonical form, so two results can be
// compared independently of key order and number formatting.
func (r Result) Canonical() ([]byte, error) {
	if err := r.Err(); err != nil {
		return nil, err
	}
	return jcs.Transform(r.payload)
}

func (r Result) String() string {
	if err := r.Err(); err != nil {
		return "failure: " + err.Error()
	}
	return "success: " + string(r.payload)
}
