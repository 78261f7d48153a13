// Package ipc implements the request/reply transport used by out-of-process
// plugin hosts: a synchronous client with timeout, async wrappers, a
// reconnecting client, and a round-robin transport pool.
package ipc

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Kind tags the variant of an Envelope's payload.
type Kind string

const (
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
	KindEvent    Kind = "event"
)

// Request is a method call with opaque JSON params.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers a Request by matching Envelope.ID.
type Response struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Event is a server-pushed notification carrying no reply.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Envelope is the wire unit exchanged over an IPC connection. Exactly one of
// Request, Response, or Event is set, matching Kind.
type Envelope struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	Request  *Request  `json:"request,omitempty"`
	Response *Response `json:"response,omitempty"`
	Event    *Event    `json:"event,omitempty"`
}

// NewRequest builds a request envelope with a fresh UUID v4 id.
func NewRequest(method string, params interface{}) (Envelope, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:      uuid.NewString(),
		Kind:    KindRequest,
		Request: &Request{Method: method, Params: raw},
	}, nil
}

// NewResponse builds a success or failure response for the given request id.
func NewResponse(requestID string, result interface{}, failure error) (Envelope, error) {
	resp := &Response{}
	if failure != nil {
		resp.Success = false
		resp.Error = failure.Error()
	} else {
		raw, err := marshalParams(result)
		if err != nil {
			return Envelope{}, err
		}
		resp.Success = true
		resp.Result = raw
	}
	return Envelope{ID: requestID, Kind: KindResponse, Response: resp}, nil
}

// NewEvent builds an event envelope with a fresh UUID v4 id.
func NewEvent(eventType string, data interface{}) (Envelope, error) {
	raw, err := marshalParams(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{ID: uuid.NewString(), Kind: KindEvent, Event: &Event{Type: eventType, Data: raw}}, nil
}

func marshalParams(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}
