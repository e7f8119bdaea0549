package domain

import (
	"github.com/google/jsonschema-go/jsonschema"
)

// ProcessSequenceInputSchema describes the processSequence tool input: a
// "sequence" array whose entries are exactly one of the sequenceable action
// shapes, discriminated by a constant "action" value.
func ProcessSequenceInputSchema() *jsonschema.Schema {
	variants := make([]*jsonschema.Schema, 0, len(catalog))
	for _, desc := range catalog {
		if !desc.Sequenceable {
			continue
		}
		variants = append(variants, sequenceEntrySchema(desc))
	}
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"sequence": {
				Type:        "array",
				Description: "ordered actions; each runs against the cursor left by the previous one",
				Items:       &jsonschema.Schema{OneOf: variants},
			},
		},
		Required:             []string{"sequence"},
		AdditionalProperties: closedObject(),
	}
}

func sequenceEntrySchema(desc ActionDescriptor) *jsonschema.Schema {
	required := []string{"action"}
	params := paramsSchema(desc.Fields)
	if len(params.Required) > 0 {
		required = append(required, "params")
	}
	return &jsonschema.Schema{
		Type:        "object",
		Description: desc.Description,
		Properties: map[string]*jsonschema.Schema{
			"action": {Type: "string", Const: jsonschema.Ptr[any](string(desc.Name))},
			"params": params,
		},
		Required:             required,
		AdditionalProperties: closedObject(),
	}
}

func paramsSchema(fields []FieldDescriptor) *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Types:                []string{"null", "object"},
		Properties:           make(map[string]*jsonschema.Schema, len(fields)),
		AdditionalProperties: closedObject(),
	}
	for _, field := range fields {
		schema.Properties[field.Name] = fieldSchema(field)
		if field.Required {
			schema.Required = append(schema.Required, field.Name)
		}
	}
	return schema
}

func fieldSchema(field FieldDescriptor) *jsonschema.Schema {
	switch field.Type {
	case FieldBoolean:
		return &jsonschema.Schema{Type: "boolean", Description: field.Description}
	case FieldFraction:
		return &jsonschema.Schema{
			Type:        "object",
			Description: field.Description,
			Properties: map[string]*jsonschema.Schema{
				"numerator":   {Type: "integer", Minimum: jsonschema.Ptr(1.0)},
				"denominator": {Type: "integer", Minimum: jsonschema.Ptr(1.0)},
			},
			Required:             []string{"numerator", "denominator"},
			AdditionalProperties: closedObject(),
		}
	default:
		return &jsonschema.Schema{Type: "integer", Description: field.Description}
	}
}

// closedObject is the schema that matches nothing, used to forbid extra keys.
func closedObject() *jsonschema.Schema {
	return &jsonschema.Schema{Not: &jsonschema.Schema{}}
}
