// Package levels loads training levels from YAML and validates them
// against a JSON schema before the engine may start them.
package levels

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml data/level.schema.json
var dataFS embed.FS

const schemaName = "level.schema.json"

var (
	// ErrInvalidLevel is returned for level data that fails validation
	ErrInvalidLevel = errors.New("invalid level")
	// ErrLevelNotFound is returned for unknown level IDs
	ErrLevelNotFound = errors.New("level not found")
)

// Point is an offset from the configured spawn point
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Objective is one goal of a level. Only "collect" exists.
type Objective struct {
	Type        string `yaml:"type" json:"type"`
	Count       int    `yaml:"count" json:"count"`
	Description string `yaml:"description" json:"description"`
}

// Bounds are the arena walls, relative to the spawn point
type Bounds struct {
	Left      float64 `yaml:"left" json:"left"`
	Right     float64 `yaml:"right" json:"right"`
	Ceiling   float64 `yaml:"ceiling" json:"ceiling"` // zero means no ceiling
	Thickness float64 `yaml:"thickness" json:"thickness"`
}

// Level is a training level
type Level struct {
	ID               string      `yaml:"id" json:"id"`
	Name             string      `yaml:"name" json:"name"`
	Description      string      `yaml:"description" json:"description"`
	Tutorial         string      `yaml:"tutorial" json:"tutorial"`
	Objectives       []Objective `yaml:"objectives" json:"objectives"`
	Collectibles     []Point     `yaml:"collectibles" json:"collectibles"`
	AvailableRockets []string    `yaml:"available_rockets" json:"availableRockets"`
	Unlocks          []string    `yaml:"unlocks" json:"unlocks"`
	Start            Point       `yaml:"start" json:"start"`
	Bounds           *Bounds     `yaml:"bounds" json:"bounds,omitempty"`
}

// Target is the number of collections that completes the level
func (l *Level) Target() int {
	n := 0
	for _, o := range l.Objectives {
		if o.Type == "collect" {
			n += o.Count
		}
	}
	return n
}

// NextID is the first unlocked level, or "" at the end of training
func (l *Level) NextID() string {
	if len(l.Unlocks) == 0 {
		return ""
	}
	return l.Unlocks[0]
}

// Catalog is a validated, immutable set of levels
type Catalog struct {
	levels map[string]*Level
	order  []string
}

// Load reads the embedded training levels
func Load() (*Catalog, error) {
	sub, err := fs.Sub(dataFS, "data")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}

// LoadFS reads every *.yaml file in fsys and validates it against the
// level.schema.json found in the embedded data.
func LoadFS(fsys fs.FS) (*Catalog, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}

	names, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	c := &Catalog{levels: make(map[string]*Level, len(names))}
	for _, name := range names {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		lvl, err := parse(schema, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path.Base(name), err)
		}
		if _, dup := c.levels[lvl.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q in %s", ErrInvalidLevel, lvl.ID, name)
		}
		c.levels[lvl.ID] = lvl
		c.order = append(c.order, lvl.ID)
	}
	return c, nil
}

// Parse validates and decodes a single level document
func Parse(raw []byte) (*Level, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	return parse(schema, raw)
}

func compileSchema() (*jsonschema.Schema, error) {
	raw, err := dataFS.ReadFile("data/" + schemaName)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(schemaName, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("level schema: %w", err)
	}
	schema, err := compiler.Compile(schemaName)
	if err != nil {
		return nil, fmt.Errorf("level schema: %w", err)
	}
	return schema, nil
}

func parse(schema *jsonschema.Schema, raw []byte) (*Level, error) {
	// The validator wants JSON values, so the YAML tree goes through encoding/json first
	var doc interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}
	var v interface{}
	if err := json.Unmarshal(js, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}

	var lvl Level
	if err := yaml.Unmarshal(raw, &lvl); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}
	if t := lvl.Target(); t > len(lvl.Collectibles) {
		return nil, fmt.Errorf("%w: %s needs %d collectibles, has %d", ErrInvalidLevel, lvl.ID, t, len(lvl.Collectibles))
	}
	if b := lvl.Bounds; b != nil && b.Left >= b.Right {
		return nil, fmt.Errorf("%w: %s bounds left %v >= right %v", ErrInvalidLevel, lvl.ID, b.Left, b.Right)
	}
	return &lvl, nil
}

// Get returns a level by ID
func (c *Catalog) Get(id string) (*Level, error) {
	lvl, ok := c.levels[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrLevelNotFound, id)
	}
	return lvl, nil
}

// First returns the first level in file order, or nil for an empty catalog
func (c *Catalog) First() *Level {
	if len(c.order) == 0 {
		return nil
	}
	return c.levels[c.order[0]]
}

// Next returns the level unlocked by id. ok is false at the end of training.
func (c *Catalog) Next(id string) (*Level, bool) {
	cur, ok := c.levels[id]
	if !ok {
		return nil, false
	}
	next, ok := c.levels[cur.NextID()]
	return next, ok
}

// IDs lists level IDs in file order
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.order...)
}

// Len returns the number of levels
func (c *Catalog) Len() int { return len(c.order) }
