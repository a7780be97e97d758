package content

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/mod/semver"
)

// SupportedMajor is the bundle format major version this build understands.
const SupportedMajor = "v1"

const schemaURL = "schema://prepcoach/content.json"

//go:embed schema.json
var schemaJSON []byte

//go:embed default.json
var defaultBundle []byte

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// ErrInvalidBundle indicates a content file that failed validation.
type ErrInvalidBundle struct {
	Err error
}

func (e *ErrInvalidBundle) Error() string {
	return fmt.Sprintf("invalid content bundle: %v", e.Err)
}

func (e *ErrInvalidBundle) Unwrap() error { return e.Err }

// Load reads and validates a bundle from disk.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content bundle: %w", err)
	}
	return Parse(data)
}

// Default returns the bundle compiled into the binary.
func Default() (*Bundle, error) {
	return Parse(defaultBundle)
}

// Parse validates raw JSON against the bundle schema, checks the format
// version and cross-references, and decodes it.
func Parse(data []byte) (*Bundle, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ErrInvalidBundle{Err: fmt.Errorf("invalid JSON: %w", err)}
	}

	sch, err := bundleSchema()
	if err != nil {
		return nil, fmt.Errorf("compile content schema: %w", err)
	}
	if err := sch.Validate(raw); err != nil {
		return nil, &ErrInvalidBundle{Err: fmt.Errorf("schema validation failed: %w", err)}
	}

	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, &ErrInvalidBundle{Err: err}
	}

	if err := checkVersion(b.Version); err != nil {
		return nil, &ErrInvalidBundle{Err: err}
	}
	if err := checkReferences(&b); err != nil {
		return nil, &ErrInvalidBundle{Err: err}
	}
	return &b, nil
}

func bundleSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		var doc any
		if err := json.Unmarshal(schemaJSON, &doc); err != nil {
			compileErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	return compiled, compileErr
}

func checkVersion(v string) error {
	if !semver.IsValid(v) {
		return fmt.Errorf("version %q is not a semantic version", v)
	}
	if major := semver.Major(v); major != SupportedMajor {
		return fmt.Errorf("version %s not supported (want %s.x)", v, SupportedMajor)
	}
	return nil
}

// checkReferences enforces the uniqueness the engine relies on: stage ids,
// day ids (they are lesson ids) and item ids inside one assessment.
func checkReferences(b *Bundle) error {
	stages := make(map[string]bool, len(b.Stages))
	days := make(map[string]bool)
	for _, s := range b.Stages {
		if stages[s.ID] {
			return fmt.Errorf("duplicate stage id %q", s.ID)
		}
		stages[s.ID] = true

		numbers := make(map[int]bool, len(s.Days))
		for _, d := range s.Days {
			if days[d.ID] {
				return fmt.Errorf("duplicate day id %q", d.ID)
			}
			days[d.ID] = true
			if numbers[d.Number] {
				return fmt.Errorf("stage %q: duplicate day number %d", s.ID, d.Number)
			}
			numbers[d.Number] = true
		}

		items := make(map[string]bool)
		for _, q := range s.FinalTest.Questions {
			for _, it := range q.Items {
				if items[it.ID] {
					return fmt.Errorf("stage %q final test: duplicate item id %q", s.ID, it.ID)
				}
				items[it.ID] = true
			}
		}
	}
	return nil
}
