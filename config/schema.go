package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects the JSON Schema of metaoverlay.yml from Config.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		// Unknown keys are typos, never extensions.
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
		FieldNameTag:              "yaml",
	}

	schema := r.Reflect(&Config{})
	schema.Title = "metaoverlay panel configuration"
	schema.Description = "Schema for metaoverlay.yml and metaoverlay.toml."

	return json.MarshalIndent(schema, "", "  ")
}
