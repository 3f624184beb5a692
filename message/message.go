// Package message defines what travels between the bridge and an editor endpoint.
//
// Envelope is the caller-facing description of one remote operation. RPCMessage is its
// wire form: it gets serialized by the codec layer and wrapped in a protocol frame.
// Result is what the bridge hands back for every call.
package message

import "fmt"

// Status is the outcome an editor endpoint reports in a response.
type Status byte

const (
	StatusOK             Status = 0 // payload holds the method result
	StatusInvalidRequest Status = 1 // unknown service/method, or arguments it cannot accept
	StatusRejected       Status = 2 // the method ran and declined; Error carries its message
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalidRequest:
		return "invalid_request"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", byte(s))
	}
}

// RPCMessage carries a single request or response.
//
//   - On request:  ServiceMethod is set, Payload holds the JSON-encoded arguments.
//   - On response: Status says how the call went; Payload holds the JSON result when
//     Status is OK, Error holds the editor's message otherwise.
type RPCMessage struct {
	ServiceMethod string // "ServiceName.method_name", e.g. "FoliageService.scatter_foliage"
	Status        Status
	Error         string
	Payload       []byte
}
