package zmqrelay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

var ErrMalformedFrame = errors.New("zmqrelay: malformed relay frame")

// frame is the msgpack envelope crossing the relay. Sender is a claim:
// the router overrides it with the socket identity frame on ingest, the
// dealer trusts it because its only peer is the router it connected to.
type frame struct {
	Sender  string `msgpack:"sender"`
	Payload string `msgpack:"payload"`
}

func encodeFrame(f frame) ([]byte, error) {
	if strings.TrimSpace(f.Sender) == "" {
		return nil, fmt.Errorf("%w: missing sender", ErrMalformedFrame)
	}
	raw, err := msgpack.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return raw, nil
}

func decodeFrame(raw []byte) (frame, error) {
	var f frame
	if err := msgpack.Unmarshal(raw, &f); err != nil {
		return frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if strings.TrimSpace(f.Sender) == "" {
		return frame{}, fmt.Errorf("%w: missing sender", ErrMalformedFrame)
	}
	return f, nil
}
