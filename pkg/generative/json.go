package generative

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	errs "github.com/glasshouse-ai/glasshouse/pkg/errors"
)

// StripFences removes a surrounding markdown code fence from model
// output. Models often wrap JSON in ```json blocks even when asked not
// to, so every structured response passes through here first.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Validator checks model output against a JSON schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the given JSON schema
func NewValidator(schemaJSON string) (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, err
	}
	return &Validator{schema: schema}, nil
}

// MustValidator compiles a schema literal, panicking on error. Use only
// for schemas fixed at build time.
func MustValidator(schemaJSON string) *Validator {
	v, err := NewValidator(schemaJSON)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks the payload against the schema. Violations come back
// as schema-class errors so the pipeline can apply its repair policy.
func (v *Validator) Validate(payload []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return errs.Schema(err, "generative.validate", "payload is not valid JSON")
	}

	if !result.Valid() {
		var errMsgs []string
		for _, resultErr := range result.Errors() {
			errMsgs = append(errMsgs, resultErr.String())
		}
		return errs.Newf(errs.ClassSchema, "generative.validate", "payload validation failed: %s", strings.Join(errMsgs, "; "))
	}

	return nil
}

// ParseJSON strips fences, optionally validates against a schema, and
// unmarshals into out.
func ParseJSON(raw string, validator *Validator, out interface{}) error {
	payload := []byte(StripFences(raw))

	if validator != nil {
		if err := validator.Validate(payload); err != nil {
			return err
		}
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return errs.Schema(err, "generative.parse", "malformed JSON output")
	}

	return nil
}
