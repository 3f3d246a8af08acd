package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Origin identifies one security principal attached to the channel. Origins
// compare by exact string equality; the transport stamps them, payload
// contents never do.
type Origin string

// TeardownID is the correlation id reserved for the medium's close broadcast.
// The request id generator starts above it and never produces it.
const TeardownID uint64 = 0

// Result markers carried in the response result field.
const (
	MarkerAck   = "ACK"
	MarkerClose = "CLOSE"
)

var (
	ErrMalformedPayload = errors.New("protocol: malformed payload")
	ErrInvalidRequest   = errors.New("protocol: invalid request")
	ErrInvalidResponse  = errors.New("protocol: invalid response")
)

// Pair is one key/value assignment in a SET batch.
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Request is the sitter->medium envelope shape.
type Request struct {
	Sender  Origin          `json:"sender"`
	ID      uint64          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (r Request) Validate() error {
	if strings.TrimSpace(string(r.Sender)) == "" {
		return fmt.Errorf("%w: missing sender", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Type) == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidRequest)
	}
	if r.ID == TeardownID {
		return fmt.Errorf("%w: reserved correlation id %d", ErrInvalidRequest, TeardownID)
	}
	return nil
}

// Kind returns the parsed message kind for the request type string.
func (r Request) Kind() Kind {
	return ParseKind(r.Type)
}

// Response is the medium->sitter envelope shape. Result carries the ack or
// close marker, or the aggregated entries of a store operation. Error is
// empty on success.
type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

func (r Response) Validate() error {
	if rawIsEmpty(r.Result) && strings.TrimSpace(r.Error) == "" {
		return fmt.Errorf("%w: neither result nor error present", ErrInvalidResponse)
	}
	return nil
}

// IsAck reports whether the result is the bare acknowledgment marker.
func (r Response) IsAck() bool {
	return rawEqualsMarker(r.Result, MarkerAck)
}

// IsClose reports whether the result is the close marker.
func (r Response) IsClose() bool {
	return rawEqualsMarker(r.Result, MarkerClose)
}

// IsTeardown reports whether the response is the medium's close broadcast.
func (r Response) IsTeardown() bool {
	return r.ID == TeardownID && r.IsClose()
}

// NewMount builds the handshake request carrying the sitter's unique id.
func NewMount(sender Origin, id uint64, sitterID string) (Request, error) {
	payload, err := EncodeSitterID(sitterID)
	if err != nil {
		return Request{}, err
	}
	return Request{Sender: sender, ID: id, Type: TypeMount, Payload: payload}, nil
}

// NewUnmount builds the voluntary detach notice. It expects no reply.
func NewUnmount(sender Origin, id uint64) Request {
	return Request{Sender: sender, ID: id, Type: TypeUnmount}
}

// NewSyn builds one heartbeat probe.
func NewSyn(sender Origin, id uint64) Request {
	return Request{Sender: sender, ID: id, Type: TypeSyn}
}

// NewGet builds a read request over an ordered key batch.
func NewGet(sender Origin, id uint64, keys []string) (Request, error) {
	payload, err := EncodeKeys(keys)
	if err != nil {
		return Request{}, err
	}
	return Request{Sender: sender, ID: id, Type: TypeGet, Payload: payload}, nil
}

// NewSet builds a write request over an ordered pair batch.
func NewSet(sender Origin, id uint64, pairs []Pair) (Request, error) {
	payload, err := EncodePairs(pairs)
	if err != nil {
		return Request{}, err
	}
	return Request{Sender: sender, ID: id, Type: TypeSet, Payload: payload}, nil
}

// NewDelete builds a removal request over an ordered key batch.
func NewDelete(sender Origin, id uint64, keys []string) (Request, error) {
	payload, err := EncodeKeys(keys)
	if err != nil {
		return Request{}, err
	}
	return Request{Sender: sender, ID: id, Type: TypeDelete, Payload: payload}, nil
}

// NewAck builds the acknowledgment reply for a handshake or heartbeat.
func NewAck(id uint64) Response {
	return Response{ID: id, Result: AckResult()}
}

// NewTeardown builds the close broadcast sent to every incorporated origin.
func NewTeardown() Response {
	return Response{ID: TeardownID, Result: CloseResult()}
}

// NewEntriesResponse builds a successful store operation reply.
func NewEntriesResponse(id uint64, entries []map[string]any) (Response, error) {
	result, err := EncodeEntries(entries)
	if err != nil {
		return Response{}, err
	}
	return Response{ID: id, Result: result}, nil
}

// NewErrorResponse builds a whole-operation failure reply with a null result.
func NewErrorResponse(id uint64, msg string) Response {
	return Response{ID: id, Result: json.RawMessage("null"), Error: msg}
}

func rawIsEmpty(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

func rawEqualsMarker(raw json.RawMessage, marker string) bool {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return s == marker
}
