package domain

import (
	"encoding/json"
	"fmt"
	"slices"
)

// ActionName identifies a command understood by the MuseScore plugin.
type ActionName string

const (
	ActionPing                 ActionName = "ping"
	ActionGetScore             ActionName = "getScore"
	ActionGetCursorInfo        ActionName = "getCursorInfo"
	ActionGoToMeasure          ActionName = "goToMeasure"
	ActionGoToFinalMeasure     ActionName = "goToFinalMeasure"
	ActionGoToBeginningOfScore ActionName = "goToBeginningOfScore"
	ActionNextElement          ActionName = "nextElement"
	ActionPrevElement          ActionName = "prevElement"
	ActionSelectCurrentMeasure ActionName = "selectCurrentMeasure"
	ActionAddNote              ActionName = "addNote"
	ActionAddRest              ActionName = "addRest"
	ActionAddTuplet            ActionName = "addTuplet"
	ActionInsertMeasure        ActionName = "insertMeasure"
	ActionAppendMeasure        ActionName = "appendMeasure"
	ActionDeleteSelection      ActionName = "deleteSelection"
	ActionSetTimeSignature     ActionName = "setTimeSignature"
	ActionUndo                 ActionName = "undo"
	ActionProcessSequence      ActionName = "processSequence"
)

// Field types used in FieldDescriptor.Type.
const (
	FieldInteger  = "integer"
	FieldBoolean  = "boolean"
	FieldFraction = "fraction"
	FieldSequence = "sequence"
)

// Action categories.
const (
	CategoryQuery      = "query"
	CategoryNavigation = "navigation"
	CategoryEdit       = "edit"
	CategoryBatch      = "batch"
)

// FieldDescriptor documents one parameter of an action.
type FieldDescriptor struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// ActionDescriptor is the static description of one catalog action.
// Sequenceable actions may appear as processSequence entries. Core actions are
// always exposed as tools; the others only when step tools are enabled.
type ActionDescriptor struct {
	Name         ActionName        `json:"action"`
	ToolName     string            `json:"tool"`
	Description  string            `json:"description"`
	Category     string            `json:"category"`
	ReadOnly     bool              `json:"read_only"`
	Destructive  bool              `json:"destructive"`
	Sequenceable bool              `json:"sequenceable"`
	Core         bool              `json:"core"`
	Fields       []FieldDescriptor `json:"fields"`

	decode func(json.RawMessage) error
	bind   func(HostClient) any
}

var (
	advanceField = FieldDescriptor{Name: "advanceCursorAfterAction", Type: FieldBoolean, Description: "move the cursor past the inserted element"}
	noFields     = []FieldDescriptor{}
)

// define attaches the typed decoder and tool handler for params variant P.
func define[P actionParams[P]](d ActionDescriptor) ActionDescriptor {
	name := d.Name
	d.decode = decodeParams[P]
	d.bind = func(client HostClient) any {
		return ActionHandler[P](client, name)
	}
	if d.Fields == nil {
		d.Fields = noFields
	}
	return d
}

var catalog = []ActionDescriptor{
	define[NoParams](ActionDescriptor{
		Name:        ActionPing,
		ToolName:    "ping_musescore",
		Description: "Ping the MuseScore plugin to check the connection.",
		Category:    CategoryQuery,
		ReadOnly:    true,
		Core:        true,
	}),
	define[NoParams](ActionDescriptor{
		Name:         ActionGetScore,
		ToolName:     "get_score",
		Description:  "Get information about the current score.",
		Category:     CategoryQuery,
		ReadOnly:     true,
		Sequenceable: true,
		Core:         true,
	}),
	define[NoParams](ActionDescriptor{
		Name:         ActionGetCursorInfo,
		ToolName:     "get_cursor_info",
		Description:  "Get information about the current cursor position.",
		Category:     CategoryQuery,
		ReadOnly:     true,
		Sequenceable: true,
		Core:         true,
	}),
	define[GoToMeasureParams](ActionDescriptor{
		Name:         ActionGoToMeasure,
		ToolName:     "go_to_measure",
		Description:  "Move the cursor to a specific measure.",
		Category:     CategoryNavigation,
		Sequenceable: true,
		Fields: []FieldDescriptor{
			{Name: "measure", Type: FieldInteger, Required: true, Description: "measure number"},
		},
	}),
	define[NoParams](ActionDescriptor{
		Name:         ActionGoToFinalMeasure,
		ToolName:     "go_to_final_measure",
		Description:  "Move the cursor to the final measure of the score.",
		Category:     CategoryNavigation,
		Sequenceable: true,
	}),
	define[NoParams](ActionDescriptor{
		Name:         ActionGoToBeginningOfScore,
		ToolName:     "go_to_beginning_of_score",
		Description:  "Move the cursor to the beginning of the score.",
		Category:     CategoryNavigation,
		Sequenceable: true,
	}),
	define[NoParams](ActionDescriptor{
		Name:         ActionNextElement,
		ToolName:     "next_element",
		Description:  "Move the cursor to the next element.",
		Category:     CategoryNavigation,
		Sequenceable: true,
	}),
	define[NoParams](ActionDescriptor{
		Name:         ActionPrevElement,
		ToolName:     "prev_element",
		Description:  "Move the cursor to the previous element.",
		Category:     CategoryNavigation,
		Sequenceable: true,
	}),
	define[NoParams](ActionDescriptor{
		Name:         ActionSelectCurrentMeasure,
		ToolName:     "select_current_measure",
		Description:  "Select the measure under the cursor.",
		Category:     CategoryNavigation,
		Sequenceable: true,
	}),
	define[AddNoteParams](ActionDescriptor{
		Name:         ActionAddNote,
		ToolName:     "add_note",
		Description:  "Add a note at the cursor with the given pitch and duration.",
		Category:     CategoryEdit,
		Sequenceable: true,
		Fields: []FieldDescriptor{
			{Name: "pitch", Type: FieldInteger, Required: true, Default: DefaultPitch, Description: "MIDI pitch number"},
			{Name: "duration", Type: FieldFraction, Required: true, Default: QuarterNote, Description: "fraction of a whole note"},
			advanceField,
		},
	}),
	define[AddRestParams](ActionDescriptor{
		Name:         ActionAddRest,
		ToolName:     "add_rest",
		Description:  "Add a rest at the cursor.",
		Category:     CategoryEdit,
		Sequenceable: true,
		Fields: []FieldDescriptor{
			{Name: "duration", Type: FieldFraction, Required: true, Default: QuarterNote, Description: "fraction of a whole note"},
			advanceField,
		},
	}),
	define[AddTupletParams](ActionDescriptor{
		Name:         ActionAddTuplet,
		ToolName:     "add_tuplet",
		Description:  "Add a tuplet at the cursor.",
		Category:     CategoryEdit,
		Sequenceable: true,
		Fields: []FieldDescriptor{
			{Name: "duration", Type: FieldFraction, Required: true, Default: QuarterNote, Description: "total length of the tuplet"},
			{Name: "ratio", Type: FieldFraction, Required: true, Default: TripletRatio, Description: "actual notes over normal notes"},
			advanceField,
		},
	}),
	define[NoParams](ActionDescriptor{
		Name:         ActionInsertMeasure,
		ToolName:     "insert_measure",
		Description:  "Insert a measure at the cursor.",
		Category:     CategoryEdit,
		Sequenceable: true,
	}),
	define[AppendMeasureParams](ActionDescriptor{
		Name:         ActionAppendMeasure,
		ToolName:     "append_measure",
		Description:  "Append measures to the end of the score.",
		Category:     CategoryEdit,
		Sequenceable: true,
		Fields: []FieldDescriptor{
			{Name: "count", Type: FieldInteger, Default: DefaultAppendCount, Description: "number of measures"},
		},
	}),
	define[DeleteSelectionParams](ActionDescriptor{
		Name:         ActionDeleteSelection,
		ToolName:     "delete_selection",
		Description:  "Delete the current selection, or the given measure.",
		Category:     CategoryEdit,
		Destructive:  true,
		Sequenceable: true,
		Fields: []FieldDescriptor{
			{Name: "measure", Type: FieldInteger, Description: "measure to delete instead of the selection"},
		},
	}),
	define[SetTimeSignatureParams](ActionDescriptor{
		Name:         ActionSetTimeSignature,
		ToolName:     "set_time_signature",
		Description:  "Set the time signature at the cursor.",
		Category:     CategoryEdit,
		Sequenceable: true,
		Fields: []FieldDescriptor{
			{Name: "numerator", Type: FieldInteger, Required: true, Default: CommonTime.Numerator, Description: "beats per measure"},
			{Name: "denominator", Type: FieldInteger, Required: true, Default: CommonTime.Denominator, Description: "beat unit"},
		},
	}),
	define[NoParams](ActionDescriptor{
		Name:         ActionUndo,
		ToolName:     "undo",
		Description:  "Undo the last edit.",
		Category:     CategoryEdit,
		Destructive:  true,
		Sequenceable: true,
	}),
	{
		Name:     ActionProcessSequence,
		ToolName: "processSequence",
		Description: "Apply an ordered list of actions in a single round trip. Each entry runs " +
			"against the cursor and selection left by the previous one.",
		Category:    CategoryBatch,
		Destructive: true,
		Core:        true,
		Fields: []FieldDescriptor{
			{Name: "sequence", Type: FieldSequence, Required: true, Description: "ordered list of {action, params} entries"},
		},
		bind: func(client HostClient) any {
			return ProcessSequenceHandler(client)
		},
	},
}

var catalogIndex = func() map[ActionName]int {
	index := make(map[ActionName]int, len(catalog))
	for i, desc := range catalog {
		index[desc.Name] = i
	}
	return index
}()

// Catalog returns every action descriptor in catalog order.
func Catalog() []ActionDescriptor {
	return slices.Clone(catalog)
}

// LookupAction finds the descriptor for name.
func LookupAction(name ActionName) (ActionDescriptor, bool) {
	i, ok := catalogIndex[name]
	if !ok {
		return ActionDescriptor{}, false
	}
	return catalog[i], true
}

// SequenceableActions lists the actions allowed inside processSequence.
func SequenceableActions() []ActionName {
	names := make([]ActionName, 0, len(catalog))
	for _, desc := range catalog {
		if desc.Sequenceable {
			names = append(names, desc.Name)
		}
	}
	return names
}

// ValidateParams checks raw params against the action's variant. Absent or
// null params are treated as {}.
func (d ActionDescriptor) ValidateParams(raw json.RawMessage) error {
	if d.decode == nil {
		return fmt.Errorf("action %q has no parameter variant", d.Name)
	}
	params, err := normalizeParams(raw)
	if err != nil {
		return err
	}
	return d.decode(params)
}

// Handler returns the typed MCP tool handler for the action bound to client.
func (d ActionDescriptor) Handler(client HostClient) any {
	if d.bind == nil {
		return nil
	}
	return d.bind(client)
}
