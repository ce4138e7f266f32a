package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"google.golang.org/protobuf/types/known/structpb"
)

var requestSchemas = map[string]map[string]any{
	"TakePhoto": {
		"type": "object",
		"properties": map[string]any{
			"wait": map[string]any{"type": "boolean"},
		},
		"additionalProperties": false,
	},
	"PickImage": {
		"type":     "object",
		"required": []any{"selection"},
		"properties": map[string]any{
			"selection": map[string]any{"type": "string", "maxLength": 1024},
			"wait":      map[string]any{"type": "boolean"},
		},
		"additionalProperties": false,
	},
	"GetState": {
		"type":                 "object",
		"additionalProperties": false,
	},
	"Export": {
		"type":                 "object",
		"additionalProperties": false,
	},
}

// requestValidator holds one compiled schema per RPC method.
type requestValidator struct {
	schemas map[string]*jsonschema.Schema
}

func newRequestValidator() (*requestValidator, error) {
	v := &requestValidator{schemas: make(map[string]*jsonschema.Schema, len(requestSchemas))}
	for method, schemaMap := range requestSchemas {
		b, err := json.Marshal(schemaMap)
		if err != nil {
			return nil, fmt.Errorf("marshal %s schema: %w", method, err)
		}
		url := method + ".json"
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("add %s schema: %w", method, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", method, err)
		}
		v.schemas[method] = schema
	}
	return v, nil
}

// validate checks a request body against the method's schema. A nil body is an empty object.
func (v *requestValidator) validate(method string, req *structpb.Struct) error {
	schema, ok := v.schemas[method]
	if !ok {
		return fmt.Errorf("no schema for %s", method)
	}
	body := map[string]any{}
	if req != nil {
		body = req.AsMap()
	}
	if err := schema.Validate(body); err != nil {
		return fmt.Errorf("request does not match schema: %w", err)
	}
	return nil
}
