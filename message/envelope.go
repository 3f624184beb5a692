package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"editor-bridge/value"

	"github.com/google/uuid"
)

// Envelope is one outbound remote operation. It cannot be modified after NewEnvelope
// returns it; a retried call reuses the same Envelope and CallID.
type Envelope struct {
	callID  string
	service string
	method  string
	args    value.Value
}

var ErrInvalidIdentifier = errors.New("message: invalid identifier")

// NewEnvelope validates the call and assigns it a fresh CallID.
// Service and method must be non-empty and made of ASCII letters, digits and '_'.
// Args must be a record or null (no arguments) and must pass value.Validate.
func NewEnvelope(service, method string, args value.Value) (*Envelope, error) {
	if err := checkIdentifier("service", service); err != nil {
		return nil, err
	}
	if err := checkIdentifier("method", method); err != nil {
		return nil, err
	}
	if k := args.Kind(); k != value.KindRecord && k != value.KindNull {
		return nil, fmt.Errorf("message: arguments must be a record, got %s", k)
	}
	if err := args.Validate(); err != nil {
		return nil, fmt.Errorf("message: arguments: %w", err)
	}
	return &Envelope{
		callID:  uuid.NewString(),
		service: service,
		method:  method,
		args:    args,
	}, nil
}

func checkIdentifier(what, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty %s", ErrInvalidIdentifier, what)
	}
	for _, r := range id {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return fmt.Errorf("%w: %s %q contains %q", ErrInvalidIdentifier, what, id, r)
		}
	}
	return nil
}

// CallID identifies the call in logs and traces. It never goes on the wire; frames are
// correlated by their sequence number.
func (e *Envelope) CallID() string { return e.callID }

func (e *Envelope) Service() string { return e.service }

func (e *Envelope) Method() string { return e.method }

// Args returns the argument record (or null).
func (e *Envelope) Args() value.Value { return e.args }

// ServiceMethod returns "Service.method".
func (e *Envelope) ServiceMethod() string { return e.service + "." + e.method }

// EncodeArgs returns the JSON argument object. Null args encode as {}.
func (e *Envelope) EncodeArgs() ([]byte, error) {
	if e.args.IsNull() {
		return []byte("{}"), nil
	}
	return json.Marshal(e.args)
}

// RPCMessage builds the request wire message for e.
func (e *Envelope) RPCMessage() (*RPCMessage, error) {
	payload, err := e.EncodeArgs()
	if err != nil {
		return nil, err
	}
	return &RPCMessage{ServiceMethod: e.ServiceMethod(), Payload: payload}, nil
}

// SplitServiceMethod splits "Service.method" at its single dot.
func SplitServiceMethod(serviceMethod string) (service, method string, err error) {
	service, method, ok := strings.Cut(serviceMethod, ".")
	if !ok || strings.Contains(method, ".") {
		return "", "", fmt.Errorf("invalid service method format: %q", serviceMethod)
	}
	if err := checkIdentifier("service", service); err != nil {
		return "", "", err
	}
	if err := checkIdentifier("method", method); err != nil {
		return "", "", err
	}
	return service, method, nil
}
