package bridge

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is a name of a request schema.
type Schema string

const (
	SchemaTimeline Schema = "timeline.json"
	SchemaResource Schema = "resource.json"
	SchemaGalaxy   Schema = "galaxy.json"
	SchemaImport   Schema = "import.json"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var ErrInvalidRequest = errors.New("invalid request")

// Validator checks request bodies against schemas.
type Validator struct {
	schemas map[Schema]*jsonschema.Schema
}

// NewValidator compiles all request schemas.
func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	names := []Schema{SchemaTimeline, SchemaResource, SchemaGalaxy, SchemaImport}
	for _, name := range names {
		f, err := schemaFS.Open(path.Join("schemas", string(name)))
		if err != nil {
			return nil, err
		}
		doc, err := jsonschema.UnmarshalJSON(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		if err := c.AddResource(string(name), doc); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
	}

	v := &Validator{schemas: map[Schema]*jsonschema.Schema{}}
	for _, name := range names {
		sch, err := c.Compile(string(name))
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		v.schemas[name] = sch
	}
	return v, nil
}

// MustValidator is NewValidator which panics on error. Schemas are embedded, so it fails only on a broken build.
func MustValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// Decode validates body against the schema, then unmarshals it into out.
//
// Invalid bodies are errors wrapping ErrInvalidRequest.
func (v *Validator) Decode(schema Schema, body []byte, out any) error {
	sch, ok := v.schemas[schema]
	if !ok {
		return fmt.Errorf("unknown schema: %s", schema)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: not a JSON: %s", ErrInvalidRequest, err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}
	return nil
}
