// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// ErrSchema indicates the configuration document does not match the schema.
var ErrSchema = errors.New("config does not match schema")

func ptr[T any](v T) *T { return &v }

// closed rejects any property not listed in Properties. Schemas must form
// a tree, so every use gets its own node.
func closed() *jsonschema.Schema {
	return &jsonschema.Schema{Not: &jsonschema.Schema{}}
}

var (
	schemaOnce     sync.Once
	resolvedSchema *jsonschema.Resolved
	schemaErr      error
)

// Schema returns the JSON schema of the configuration file.
func Schema() *jsonschema.Schema {
	number := func() *jsonschema.Schema { return &jsonschema.Schema{Type: "number"} }
	positive := func() *jsonschema.Schema { return &jsonschema.Schema{Type: "number", ExclusiveMinimum: ptr(0.0)} }
	count := func() *jsonschema.Schema { return &jsonschema.Schema{Type: "integer", Minimum: ptr(0.0)} }
	str := func() *jsonschema.Schema { return &jsonschema.Schema{Type: "string", MinLength: ptr(1)} }

	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"version", "source", "toa-type", "par-file", "tim-files"},
		Properties: map[string]*jsonschema.Schema{
			"version":    {Type: "integer", Minimum: ptr(1.0)},
			"source":     str(),
			"toa-type":   {Type: "string", Enum: []any{TOATypeNB, TOATypeWB}},
			"par-file":   str(),
			"tim-files":  {Type: "array", Items: str(), MinItems: ptr(1)},
			"output-dir": str(),
			"dmx": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"fratio":      {Type: "number", Minimum: ptr(1.0)},
					"max-delta-t": positive(),
				},
				AdditionalProperties: closed(),
			},
			"ignore": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"mjd-start": positive(),
					"mjd-end":   positive(),
					"bad-file":  {Type: "array", Items: str()},
					"bad-toa": {
						Type: "array",
						Items: &jsonschema.Schema{
							Type:        "array",
							PrefixItems: []*jsonschema.Schema{str(), count()},
							MinItems:    ptr(2),
							MaxItems:    ptr(2),
						},
					},
					"bad-range": {
						Type: "array",
						Items: &jsonschema.Schema{
							Type:     "array",
							Items:    number(),
							MinItems: ptr(2),
							MaxItems: ptr(2),
						},
					},
					"prob-outlier": {Type: "number", Minimum: ptr(0.0), Maximum: ptr(1.0)},
				},
				AdditionalProperties: closed(),
			},
			"outlier": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"method":          str(),
					"n-samples":       count(),
					"n-burnin":        count(),
					"seed":            count(),
					"ftest-threshold": {Type: "number", ExclusiveMinimum: ptr(0.0), Maximum: ptr(1.0)},
					"max-outlier-pct": {Type: "number", ExclusiveMinimum: ptr(0.0), Maximum: ptr(100.0)},
					"workers":         count(),
				},
				AdditionalProperties: closed(),
			},
		},
		AdditionalProperties: closed(),
	}
}

func resolved() (*jsonschema.Resolved, error) {
	schemaOnce.Do(func() {
		resolvedSchema, schemaErr = Schema().Resolve(nil)
	})
	return resolvedSchema, schemaErr
}

// ValidateSchema checks a YAML configuration document against Schema.
func ValidateSchema(data []byte) error {
	rs, err := resolved()
	if err != nil {
		return fmt.Errorf("resolve config schema: %w", err)
	}
	doc, err := toJSON(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if err := rs.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}
