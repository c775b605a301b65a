package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Summary joins all errors into one line for logs and 400 responses.
func (r *ValidationResult) Summary() string {
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(parts, "; ")
}

// Schema is a compiled JSON schema, safe for concurrent use.
type Schema struct {
	schema *gojsonschema.Schema
}

// Compile loads a schema expressed as a Go value.
func Compile(definition map[string]interface{}) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(definition))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(definition map[string]interface{}) *Schema {
	s, err := Compile(definition)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks doc against the schema. A document that cannot be loaded is
// reported as a single root-level error.
func (s *Schema) Validate(doc interface{}) *ValidationResult {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "INVALID_DOCUMENT",
			}},
		}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out
}

// RenderRequestSchema accepts the optional string fields of /applyPhraseToPicture.
var RenderRequestSchema = MustCompile(map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"phrase":   map[string]interface{}{"type": "string"},
		"imageUrl": map[string]interface{}{"type": "string"},
	},
})

// ImagePayloadSchema describes a usable image-source response.
var ImagePayloadSchema = MustCompile(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"imageUrl"},
	"properties": map[string]interface{}{
		"imageUrl": map[string]interface{}{"type": "string", "minLength": 1},
	},
})

// PhrasePayloadSchema describes a usable phrase-source response.
var PhrasePayloadSchema = MustCompile(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"phrase"},
	"properties": map[string]interface{}{
		"phrase": map[string]interface{}{"type": "string", "minLength": 1},
	},
})
