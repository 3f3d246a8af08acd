package protocol

import (
	"encoding/json"
	"fmt"
)

// EncodeRequest serializes one request envelope to its wire string.
func EncodeRequest(req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	out, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return string(out), nil
}

// DecodeRequest parses one wire string into a request envelope. Any failure
// is reported as a malformed or invalid envelope; receivers drop the message
// rather than propagate.
func DecodeRequest(wire string) (Request, error) {
	var req Request
	if err := json.Unmarshal([]byte(wire), &req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// EncodeResponse serializes one response envelope to its wire string.
func EncodeResponse(resp Response) (string, error) {
	if err := resp.Validate(); err != nil {
		return "", err
	}
	out, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return string(out), nil
}

// DecodeResponse parses one wire string into a response envelope.
func DecodeResponse(wire string) (Response, error) {
	var resp Response
	if err := json.Unmarshal([]byte(wire), &resp); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := resp.Validate(); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// EncodeSitterID marshals the handshake payload.
func EncodeSitterID(id string) (json.RawMessage, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty sitter id", ErrInvalidRequest)
	}
	out, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return out, nil
}

// DecodeSitterID unmarshals the handshake payload.
func DecodeSitterID(raw json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if id == "" {
		return "", fmt.Errorf("%w: empty sitter id", ErrMalformedPayload)
	}
	return id, nil
}

// EncodeKeys marshals the ordered key batch of a GET or DELETE.
func EncodeKeys(keys []string) (json.RawMessage, error) {
	out, err := json.Marshal(keys)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return out, nil
}

// DecodeKeys unmarshals the ordered key batch of a GET or DELETE.
func DecodeKeys(raw json.RawMessage) ([]string, error) {
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return keys, nil
}

// EncodePairs marshals the ordered pair batch of a SET.
func EncodePairs(pairs []Pair) (json.RawMessage, error) {
	out, err := json.Marshal(pairs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return out, nil
}

// DecodePairs unmarshals the ordered pair batch of a SET.
func DecodePairs(raw json.RawMessage) ([]Pair, error) {
	var pairs []Pair
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return pairs, nil
}

// AckResult returns the acknowledgment marker result.
func AckResult() json.RawMessage {
	return json.RawMessage(`"` + MarkerAck + `"`)
}

// CloseResult returns the teardown marker result.
func CloseResult() json.RawMessage {
	return json.RawMessage(`"` + MarkerClose + `"`)
}

// EncodeEntries marshals per-key outcome entries preserving batch order.
func EncodeEntries(entries []map[string]any) (json.RawMessage, error) {
	out, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return out, nil
}

// DecodeEntries unmarshals per-key outcome entries.
func DecodeEntries(raw json.RawMessage) ([]map[string]any, error) {
	var entries []map[string]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return entries, nil
}
