package tool

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

var schemaTypes = map[string]genai.Type{
	"object":  genai.TypeObject,
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
}

// convertJSONSchemaToGenai converts JSON Schema to Gemini genai.Schema
func convertJSONSchemaToGenai(schema *jsonschema.Schema) (*genai.Schema, error) {
	if schema == nil {
		return nil, nil
	}

	out := &genai.Schema{
		Description: schema.Description,
		Required:    schema.Required,
		Minimum:     schema.Minimum,
		Maximum:     schema.Maximum,
	}

	typeName := schema.Type
	if typeName == "" {
		// ["number", "null"] style
		for _, t := range schema.Types {
			if t == "null" {
				nullable := true
				out.Nullable = &nullable
				continue
			}
			typeName = t
		}
	}
	if typeName != "" {
		t, ok := schemaTypes[typeName]
		if !ok {
			return nil, goerr.New("unsupported schema type", goerr.V("type", typeName))
		}
		out.Type = t
	}

	if len(schema.Default) > 0 {
		var def any
		if err := json.Unmarshal(schema.Default, &def); err != nil {
			return nil, goerr.Wrap(err, "invalid default value", goerr.V("default", string(schema.Default)))
		}
		out.Default = def
	}

	for _, v := range schema.Enum {
		if s, ok := v.(string); ok {
			out.Enum = append(out.Enum, s)
		}
	}

	if len(schema.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(schema.Properties))
		for name, propSchema := range schema.Properties {
			converted, err := convertJSONSchemaToGenai(propSchema)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema",
					goerr.V("property", name))
			}
			out.Properties[name] = converted
		}
	}

	if schema.Items != nil {
		converted, err := convertJSONSchemaToGenai(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		out.Items = converted
	}

	return out, nil
}
