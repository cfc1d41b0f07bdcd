// File: rpc/message.go
// Package rpc defines the JSON request/response envelopes carried in text frames
// and the method dispatch table of the host endpoint.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"encoding/json"

	"github.com/sugawarayuuta/sonnet"
)

// Reserved error codes. Handlers may define further domain-specific codes.
const (
	CodeMalformedRequest = -1
	CodeUnknownMethod    = -2
	CodeHandlerError     = -3

	// CodeRemoteUnavailable is the conventional code for a handler whose own
	// backend is unreachable.
	CodeRemoteUnavailable = -32000
)

// UnknownID is echoed in replies to requests that carried no usable id.
const UnknownID = "unknown"

// Request is an outbound call: {"id","method","params"}.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is either {"id","result"} or {"id","error"}.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Message is the union view used when the kind of an inbound payload is not
// known in advance: a response to a pending call or an unsolicited call.
type Message struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// ParseMessage decodes a raw text payload into a Message.
func ParseMessage(raw []byte) (*Message, error) {
	var m Message
	if err := sonnet.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// IDString returns the id as a string. String ids are unquoted, numeric ids
// keep their literal text, and absent or null ids yield "".
func (m *Message) IDString() string {
	return idString(m.ID)
}

// HasResult reports whether a result member was present, including null.
func (m *Message) HasResult() bool {
	return len(m.Result) > 0
}

// EncodeRequest serializes a request envelope. A nil params value is sent as {}.
func EncodeRequest(id, method string, params any) ([]byte, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return sonnet.Marshal(Request{ID: id, Method: method, Params: raw})
}

// EncodeResult builds a success envelope with result embedded verbatim. Empty
// output is sent as null.
func EncodeResult(id string, result []byte) []byte {
	idJSON, _ := sonnet.Marshal(id)
	if len(result) == 0 {
		result = []byte("null")
	}
	out := make([]byte, 0, len(idJSON)+len(result)+20)
	out = append(out, `{"id":`...)
	out = append(out, idJSON...)
	out = append(out, `,"result":`...)
	out = append(out, result...)
	return append(out, '}')
}

// EncodeError builds an error envelope.
func EncodeError(id string, code int, message string) []byte {
	out, err := sonnet.Marshal(Response{ID: id, Error: &Error{Code: code, Message: message}})
	if err != nil {
		// Strings and ints always marshal.
		panic(err)
	}
	return out
}

func marshalParams(params any) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		if len(p) == 0 {
			return json.RawMessage("{}"), nil
		}
		return p, nil
	case []byte:
		if len(p) == 0 {
			return json.RawMessage("{}"), nil
		}
		return json.RawMessage(p), nil
	default:
		b, err := sonnet.Marshal(p)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(b), nil
	}
}

func idString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := sonnet.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return string(raw)
}
