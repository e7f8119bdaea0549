package host

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Envelope is one command frame sent to MuseScore.
type Envelope struct {
	Action string
	// Params must encode as a JSON object. Nil encodes as {}.
	Params any
}

// Reply is a decoded host response. MuseScore owns its shape; the adapter only
// requires a JSON object. Numbers are kept as json.Number so they round-trip
// without float rounding.
type Reply map[string]any

type wireEnvelope struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

var emptyObject = json.RawMessage(`{}`)

// Encode serializes the envelope into the wire frame.
func (e Envelope) Encode() ([]byte, error) {
	action := strings.TrimSpace(e.Action)
	if action == "" {
		return nil, errors.New("action is required")
	}
	params := emptyObject
	if e.Params != nil {
		raw, err := json.Marshal(e.Params)
		if err != nil {
			return nil, fmt.Errorf("encode %s params: %w", action, err)
		}
		raw = bytes.TrimSpace(raw)
		switch {
		case bytes.Equal(raw, []byte("null")):
		case len(raw) > 0 && raw[0] == '{':
			params = raw
		default:
			return nil, fmt.Errorf("%s params must be a JSON object", action)
		}
	}
	return json.Marshal(wireEnvelope{Action: action, Params: params})
}

// decodeReply parses one reply frame. Anything but a single JSON object is
// rejected.
func decodeReply(text string) (Reply, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var reply Reply
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if reply == nil {
		return nil, errors.New("reply is not a JSON object")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("reply has trailing data")
	}
	return reply, nil
}
