package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Action is one validated processSequence entry. Params are kept as received
// so the batch reaches MuseScore exactly as the caller wrote it.
type Action struct {
	Name   ActionName
	Params json.RawMessage
}

type wireAction struct {
	Action ActionName      `json:"action"`
	Params json.RawMessage `json:"params,omitempty"`
}

// NewAction builds a sequence entry from a params value, validating it the
// same way a decoded entry is validated. Nil params encode as {}.
func NewAction(name ActionName, params any) (Action, error) {
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return Action{}, fmt.Errorf("encode %s params: %w", name, err)
		}
		raw = data
	}
	return newAction(name, raw)
}

func newAction(name ActionName, raw json.RawMessage) (Action, error) {
	desc, ok := LookupAction(name)
	if !ok {
		return Action{}, fmt.Errorf("unknown action %q", name)
	}
	if !desc.Sequenceable {
		return Action{}, fmt.Errorf("action %q cannot be used in a sequence", name)
	}
	params, err := normalizeParams(raw)
	if err != nil {
		return Action{}, fmt.Errorf("%s: %w", name, err)
	}
	if err := desc.ValidateParams(params); err != nil {
		return Action{}, fmt.Errorf("%s params: %w", name, err)
	}
	return Action{Name: name, Params: params}, nil
}

// UnmarshalJSON decodes and validates one {"action", "params"} entry.
func (a *Action) UnmarshalJSON(data []byte) error {
	var wire wireAction
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil {
		return fmt.Errorf("decode action: %w", err)
	}
	if wire.Action == "" {
		return errors.New("action is required")
	}
	action, err := newAction(wire.Action, wire.Params)
	if err != nil {
		return err
	}
	*a = action
	return nil
}

// MarshalJSON encodes the entry as {"action", "params"}.
func (a Action) MarshalJSON() ([]byte, error) {
	params := a.Params
	if len(params) == 0 {
		params = emptyParams
	}
	return json.Marshal(wireAction{Action: a.Name, Params: params})
}

// Sequence is an ordered batch of actions applied by MuseScore one after the
// other. Order is preserved when encoding.
type Sequence []Action

// UnmarshalJSON decodes a JSON array of entries, reporting the index of the
// first invalid one.
func (s *Sequence) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return errors.New("sequence must be an array")
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("sequence must be an array: %w", err)
	}
	out := make(Sequence, 0, len(entries))
	for i, entry := range entries {
		var action Action
		if err := json.Unmarshal(entry, &action); err != nil {
			return fmt.Errorf("sequence[%d]: %w", i, err)
		}
		out = append(out, action)
	}
	*s = out
	return nil
}

// MarshalJSON encodes the sequence as an array; a nil sequence encodes as [].
func (s Sequence) MarshalJSON() ([]byte, error) {
	entries := []Action(s)
	if entries == nil {
		entries = []Action{}
	}
	return json.Marshal(entries)
}
