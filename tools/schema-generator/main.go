// Command schema-generator writes the JSON schema of metaoverlay.yml so
// editors can validate and complete config files.
package main

import (
	"log"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/metaoverlayfs/panel/config"
)

func main() {
	out := flag.StringP("output", "o", "schema/definitions/metaoverlay.schema.json", "output file")
	flag.Parse()

	schemaBytes, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("Error generating schema: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}
	if err := os.WriteFile(*out, schemaBytes, 0644); err != nil {
		log.Fatalf("Error writing schema file: %v", err)
	}

	log.Printf("Wrote config schema to %s", *out)
}
