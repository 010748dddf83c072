package config

// file: internal/config/schema.go

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://authsession.local/config.schema.json"

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func configSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			compileErr = errors.Wrap(err, "failed to add config schema resource")
			return
		}
		compiledSchema, compileErr = compiler.Compile(schemaURL)
		if compileErr != nil {
			compileErr = errors.Wrap(compileErr, "failed to compile config schema")
		}
	})
	return compiledSchema, compileErr
}

// Validate checks cfg against the embedded configuration schema.
func Validate(cfg *Config) error {
	schema, err := configSchema()
	if err != nil {
		return err
	}

	// The schema describes the JSON form of the merged configuration,
	// so environment overrides are validated too.
	raw, err := json.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to encode configuration for validation")
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errors.Wrap(err, "failed to decode configuration for validation")
	}

	if err := schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return errors.WithDetail(errors.Wrap(err, "invalid configuration"), verr.GoString())
		}
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}
