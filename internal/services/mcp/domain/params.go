package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// DefaultPitch is the MIDI pitch used when add_note omits one (E4).
	DefaultPitch = 64
	// DefaultAppendCount is the number of measures appended when count is omitted.
	DefaultAppendCount = 1
)

var (
	// QuarterNote is the default duration for inserted notes, rests and tuplets.
	QuarterNote = Fraction{Numerator: 1, Denominator: 4}
	// TripletRatio is the default tuplet ratio: three in the time of two.
	TripletRatio = Fraction{Numerator: 3, Denominator: 2}
	// CommonTime is the default time signature.
	CommonTime = Fraction{Numerator: 4, Denominator: 4}
)

// Params is one action's parameter variant.
type Params interface {
	// Validate reports whether the params are complete enough to send.
	Validate() error
}

// actionParams is implemented by every variant usable as a tool input.
type actionParams[P any] interface {
	Params
	// WithDefaults returns a copy with omitted fields filled in.
	WithDefaults() P
}

// Fraction is a numerator/denominator pair, used for durations and ratios.
type Fraction struct {
	Numerator   int `json:"numerator" jsonschema:"numerator, a positive integer"`
	Denominator int `json:"denominator" jsonschema:"denominator, a positive integer"`
}

// String renders the fraction as n/d.
func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}

func (f Fraction) validate(field string) error {
	if f.Numerator <= 0 || f.Denominator <= 0 {
		return fmt.Errorf("%s must have a positive numerator and denominator, got %s", field, f)
	}
	return nil
}

func requireFraction(field string, f *Fraction) error {
	if f == nil {
		return fmt.Errorf("%s is required", field)
	}
	return f.validate(field)
}

func intPtr(v int) *int {
	return &v
}

func fractionPtr(f Fraction) *Fraction {
	return &f
}

// NoParams is the variant for actions that take no parameters.
type NoParams struct{}

// Validate always succeeds.
func (NoParams) Validate() error { return nil }

// WithDefaults returns p unchanged.
func (p NoParams) WithDefaults() NoParams { return p }

// AddNoteParams are the params of addNote.
type AddNoteParams struct {
	Pitch                    *int      `json:"pitch,omitempty" jsonschema:"MIDI pitch number (default 64)"`
	Duration                 *Fraction `json:"duration,omitempty" jsonschema:"note length as a fraction of a whole note (default 1/4)"`
	AdvanceCursorAfterAction *bool     `json:"advanceCursorAfterAction,omitempty" jsonschema:"move the cursor past the new note"`
}

// Validate requires a pitch and a well-formed duration.
func (p AddNoteParams) Validate() error {
	if p.Pitch == nil {
		return errors.New("pitch is required")
	}
	return requireFraction("duration", p.Duration)
}

// WithDefaults fills pitch and duration.
func (p AddNoteParams) WithDefaults() AddNoteParams {
	if p.Pitch == nil {
		p.Pitch = intPtr(DefaultPitch)
	}
	if p.Duration == nil {
		p.Duration = fractionPtr(QuarterNote)
	}
	return p
}

// AddRestParams are the params of addRest.
type AddRestParams struct {
	Duration                 *Fraction `json:"duration,omitempty" jsonschema:"rest length as a fraction of a whole note (default 1/4)"`
	AdvanceCursorAfterAction *bool     `json:"advanceCursorAfterAction,omitempty" jsonschema:"move the cursor past the new rest"`
}

// Validate requires a well-formed duration.
func (p AddRestParams) Validate() error {
	return requireFraction("duration", p.Duration)
}

// WithDefaults fills duration.
func (p AddRestParams) WithDefaults() AddRestParams {
	if p.Duration == nil {
		p.Duration = fractionPtr(QuarterNote)
	}
	return p
}

// AddTupletParams are the params of addTuplet.
type AddTupletParams struct {
	Duration                 *Fraction `json:"duration,omitempty" jsonschema:"total length of the tuplet (default 1/4)"`
	Ratio                    *Fraction `json:"ratio,omitempty" jsonschema:"actual notes over normal notes (default 3/2)"`
	AdvanceCursorAfterAction *bool     `json:"advanceCursorAfterAction,omitempty" jsonschema:"move the cursor past the new tuplet"`
}

// Validate requires a well-formed duration and ratio.
func (p AddTupletParams) Validate() error {
	if err := requireFraction("duration", p.Duration); err != nil {
		return err
	}
	return requireFraction("ratio", p.Ratio)
}

// WithDefaults fills duration and ratio.
func (p AddTupletParams) WithDefaults() AddTupletParams {
	if p.Duration == nil {
		p.Duration = fractionPtr(QuarterNote)
	}
	if p.Ratio == nil {
		p.Ratio = fractionPtr(TripletRatio)
	}
	return p
}

// AppendMeasureParams are the params of appendMeasure.
type AppendMeasureParams struct {
	Count *int `json:"count,omitempty" jsonschema:"number of measures to append (default 1)"`
}

// Validate rejects a non-positive count.
func (p AppendMeasureParams) Validate() error {
	if p.Count != nil && *p.Count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", *p.Count)
	}
	return nil
}

// WithDefaults fills count.
func (p AppendMeasureParams) WithDefaults() AppendMeasureParams {
	if p.Count == nil {
		p.Count = intPtr(DefaultAppendCount)
	}
	return p
}

// DeleteSelectionParams are the params of deleteSelection. Without a measure
// the current selection is deleted.
type DeleteSelectionParams struct {
	Measure *int `json:"measure,omitempty" jsonschema:"measure to delete instead of the current selection"`
}

// Validate always succeeds; measure is optional.
func (DeleteSelectionParams) Validate() error { return nil }

// WithDefaults returns p unchanged.
func (p DeleteSelectionParams) WithDefaults() DeleteSelectionParams { return p }

// GoToMeasureParams are the params of goToMeasure.
type GoToMeasureParams struct {
	Measure *int `json:"measure" jsonschema:"measure number to move the cursor to"`
}

// Validate requires a measure.
func (p GoToMeasureParams) Validate() error {
	if p.Measure == nil {
		return errors.New("measure is required")
	}
	return nil
}

// WithDefaults returns p unchanged; measure has no default.
func (p GoToMeasureParams) WithDefaults() GoToMeasureParams { return p }

// SetTimeSignatureParams are the params of setTimeSignature.
type SetTimeSignatureParams struct {
	Numerator   *int `json:"numerator,omitempty" jsonschema:"beats per measure (default 4)"`
	Denominator *int `json:"denominator,omitempty" jsonschema:"beat unit (default 4)"`
}

// Validate requires a positive numerator and denominator.
func (p SetTimeSignatureParams) Validate() error {
	if p.Numerator == nil || p.Denominator == nil {
		return errors.New("numerator and denominator are required")
	}
	return Fraction{Numerator: *p.Numerator, Denominator: *p.Denominator}.validate("time signature")
}

// WithDefaults fills a 4/4 time signature.
func (p SetTimeSignatureParams) WithDefaults() SetTimeSignatureParams {
	if p.Numerator == nil {
		p.Numerator = intPtr(CommonTime.Numerator)
	}
	if p.Denominator == nil {
		p.Denominator = intPtr(CommonTime.Denominator)
	}
	return p
}

var emptyParams = json.RawMessage(`{}`)

// normalizeParams maps absent or null params to {} and rejects non-objects.
func normalizeParams(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return emptyParams, nil
	}
	if trimmed[0] != '{' {
		return nil, errors.New("params must be a JSON object")
	}
	return trimmed, nil
}

// decodeParams strictly decodes raw into the variant P and validates it.
func decodeParams[P Params](raw json.RawMessage) error {
	var params P
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&params); err != nil {
		return err
	}
	return params.Validate()
}
