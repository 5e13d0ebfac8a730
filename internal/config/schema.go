// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package config

import (
	_ "embed"
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/config.schema.json
var embeddedSchema []byte

// SchemaID is the canonical identifier of the config schema.
const SchemaID = "https://cairn.dev/schemas/config.schema.json"

var (
	schemaOnce sync.Once
	schema     *jschema.Schema
	schemaErr  error
)

// GenerateSchema generates the JSON Schema from the Config struct.
// cmd/gen-schema writes its output to schemas/config.schema.json,
// which is embedded for validation at load time.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	s := r.Reflect(&Config{})

	s.ID = jsonschema.ID(SchemaID)
	s.Title = "Cairn Configuration"
	s.Description = "Schema for cairn.yaml configuration files"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
	}
	return data, nil
}

// validateSchema validates a loaded Config against the embedded schema.
func validateSchema(c *Config) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}

	// Round-trip through JSON so the document carries the types the
	// schema speaks about.
	raw, err := json.Marshal(c)
	if err != nil {
		return oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
	}

	if err := sch.Validate(doc); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return nil
}

// compiledSchema compiles the embedded schema once.
func compiledSchema() (*jschema.Schema, error) {
	schemaOnce.Do(func() {
		var schemaData any
		if err := json.Unmarshal(embeddedSchema, &schemaData); err != nil {
			schemaErr = oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
			return
		}

		c := jschema.NewCompiler()
		if err := c.AddResource("config.schema.json", schemaData); err != nil {
			schemaErr = oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
			return
		}
		schema, schemaErr = c.Compile("config.schema.json")
		if schemaErr != nil {
			schemaErr = oops.Code("CONFIG_SCHEMA_FAILED").Wrap(schemaErr)
		}
	})
	return schema, schemaErr
}
