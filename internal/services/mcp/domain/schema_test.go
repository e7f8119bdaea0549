package domain

import (
	"encoding/json"
	"testing"
)

func validateSequenceInstance(t *testing.T, raw string) error {
	t.Helper()
	resolved, err := ProcessSequenceInputSchema().Resolve(nil)
	if err != nil {
		t.Fatalf("resolve schema: %v", err)
	}
	var instance any
	if err := json.Unmarshal([]byte(raw), &instance); err != nil {
		t.Fatalf("decode instance: %v", err)
	}
	return resolved.Validate(instance)
}

func TestProcessSequenceInputSchemaAccepts(t *testing.T) {
	valid := []string{
		`{"sequence":[]}`,
		`{"sequence":[{"action":"getScore"}]}`,
		`{"sequence":[{"action":"undo","params":null}]}`,
		`{"sequence":[
			{"action":"addNote","params":{"pitch":64,"duration":{"numerator":1,"denominator":4}}},
			{"action":"nextElement","params":{}},
			{"action":"setTimeSignature","params":{"numerator":3,"denominator":4}},
			{"action":"deleteSelection"}
		]}`,
	}
	for _, raw := range valid {
		if err := validateSequenceInstance(t, raw); err != nil {
			t.Errorf("expected %s to validate, got %v", raw, err)
		}
	}
}

func TestProcessSequenceInputSchemaRejects(t *testing.T) {
	invalid := map[string]string{
		"missing sequence":   `{}`,
		"extra top key":      `{"sequence":[],"dryRun":true}`,
		"unknown action":     `{"sequence":[{"action":"transpose"}]}`,
		"not sequenceable":   `{"sequence":[{"action":"ping"}]}`,
		"missing params":     `{"sequence":[{"action":"goToMeasure"}]}`,
		"missing pitch":      `{"sequence":[{"action":"addNote","params":{"duration":{"numerator":1,"denominator":4}}}]}`,
		"fraction too low":   `{"sequence":[{"action":"addRest","params":{"duration":{"numerator":0,"denominator":4}}}]}`,
		"extra param":        `{"sequence":[{"action":"undo","params":{"times":2}}]}`,
		"string measure":     `{"sequence":[{"action":"goToMeasure","params":{"measure":"3"}}]}`,
		"sequence as object": `{"sequence":{"action":"undo"}}`,
	}
	for name, raw := range invalid {
		if err := validateSequenceInstance(t, raw); err == nil {
			t.Errorf("%s: expected %s to be rejected", name, raw)
		}
	}
}

func TestProcessSequenceInputSchemaCoversSequenceableActions(t *testing.T) {
	schema := ProcessSequenceInputSchema()
	items := schema.Properties["sequence"].Items
	if items == nil {
		t.Fatal("expected sequence items schema")
	}
	names := SequenceableActions()
	if len(items.OneOf) != len(names) {
		t.Fatalf("expected %d variants, got %d", len(names), len(items.OneOf))
	}
	for i, variant := range items.OneOf {
		action := variant.Properties["action"]
		if action == nil || action.Const == nil || *action.Const != string(names[i]) {
			t.Fatalf("variant %d: expected const %q", i, names[i])
		}
	}
}
