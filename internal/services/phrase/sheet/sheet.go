// Package sheet loads character sheet documents: a property bag, named
// formulas computed over it, and the roll tables and prompt templates those
// formulas use.
//
// Documents are YAML validated against an embedded JSON schema:
//
//	name: Aria
//	props:
//	  level: 3
//	  str: 16
//	formulas:
//	  str_mod: "${floor((str - 10) / 2)}$"
//	  attack: "${str_mod + level}$"
//	tables:
//	  - name: Loot
//	    entries:
//	      - {low: 1, high: 4, text: Gold}
//	      - {low: 5, high: 6, text: Sword}
package sheet

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/louisbranch/sheetphrase/internal/services/phrase/dice"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/engine"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// ErrInvalidSheet indicates a document that fails to parse or validate.
var ErrInvalidSheet = errors.New("invalid sheet")

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "sheetphrase://sheet.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add sheet schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Document is a parsed sheet.
type Document struct {
	Name      string                  `json:"name"`
	Props     map[string]any          `json:"props,omitempty"`
	Formulas  map[string]string       `json:"formulas,omitempty"`
	Tables    []dice.Table            `json:"tables,omitempty"`
	Templates []engine.PromptTemplate `json:"templates,omitempty"`
}

// Load reads and parses the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a YAML document, validates it against the sheet schema and
// checks its roll tables and template names.
func Parse(data []byte) (*Document, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSheet, err)
	}
	// Round-trip through JSON so the schema sees JSON types and YAML maps
	// with non-string keys are rejected.
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSheet, err)
	}
	var generic any
	if err := json.Unmarshal(encoded, &generic); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSheet, err)
	}

	s, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := s.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSheet, err)
	}

	var doc Document
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSheet, err)
	}
	if doc.Props == nil {
		doc.Props = map[string]any{}
	}
	if err := doc.check(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) check() error {
	seen := map[string]bool{}
	for _, table := range d.Tables {
		if err := table.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSheet, err)
		}
		if seen[table.Name] {
			return fmt.Errorf("%w: duplicate roll table %s", ErrInvalidSheet, table.Name)
		}
		seen[table.Name] = true
	}
	seen = map[string]bool{}
	for _, tpl := range d.Templates {
		if seen[tpl.Name] {
			return fmt.Errorf("%w: duplicate prompt template %s", ErrInvalidSheet, tpl.Name)
		}
		seen[tpl.Name] = true
	}
	return nil
}

// RollTables returns the document tables keyed by name.
func (d *Document) RollTables() dice.Tables {
	tables := make(dice.Tables, len(d.Tables))
	for _, table := range d.Tables {
		tables[table.Name] = table
	}
	return tables
}

// PromptTemplates returns the document templates keyed by name.
func (d *Document) PromptTemplates() Templates {
	templates := make(Templates, len(d.Templates))
	for _, tpl := range d.Templates {
		templates[tpl.Name] = tpl
	}
	return templates
}

// Resolution is a resolved sheet.
type Resolution struct {
	engine.Convergence
	// Props is the document props with every resolved formula written at
	// its key.
	Props map[string]any
}

// Resolve computes the document formulas to a fixed point.
func (d *Document) Resolve(ctx context.Context, rt *engine.Runtime, opts engine.Options) (Resolution, error) {
	conv, err := engine.Converge(ctx, rt, d.Props, d.Formulas, opts)
	if err != nil {
		return Resolution{}, err
	}
	props := engine.CloneProps(d.Props)
	for _, key := range sortedKeys(conv.Resolved) {
		engine.SetPath(props, key, conv.Resolved[key])
	}
	return Resolution{Convergence: conv, Props: props}, nil
}

// Templates is an in-memory engine.TemplateSource.
type Templates map[string]engine.PromptTemplate

// PromptTemplate returns the named template.
func (t Templates) PromptTemplate(_ context.Context, name string) (engine.PromptTemplate, error) {
	tpl, ok := t[name]
	if !ok {
		return engine.PromptTemplate{}, fmt.Errorf("%w: %s", engine.ErrTemplateNotFound, name)
	}
	return tpl, nil
}

// TemplateNames returns the template names in order.
func (t Templates) TemplateNames(context.Context) ([]string, error) {
	return sortedKeys(t), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
