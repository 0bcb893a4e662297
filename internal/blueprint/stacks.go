package blueprint

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed stacks.yaml
var stacksYAML []byte

// Stack is one entry of the stack catalog
type Stack struct {
	ID           string   `yaml:"id" json:"id"`
	Name         string   `yaml:"name" json:"name"`
	Instructions string   `yaml:"instructions" json:"instructions"`
	Checklist    []string `yaml:"checklist" json:"checklist,omitempty"`
}

// Catalog maps stack ids to their prompt instructions
type Catalog struct {
	defaultID string
	order     []string
	stacks    map[string]Stack
}

type catalogFile struct {
	Default string  `yaml:"default"`
	Stacks  []Stack `yaml:"stacks"`
}

// ParseCatalog parses a YAML stack catalog. The default id must name one of
// the listed stacks.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse stack catalog: %w", err)
	}

	c := &Catalog{defaultID: strings.TrimSpace(f.Default), stacks: make(map[string]Stack, len(f.Stacks))}
	for _, s := range f.Stacks {
		s.ID = strings.ToLower(strings.TrimSpace(s.ID))
		if s.ID == "" {
			return nil, fmt.Errorf("parse stack catalog: stack without id")
		}
		if _, dup := c.stacks[s.ID]; dup {
			return nil, fmt.Errorf("parse stack catalog: duplicate stack %q", s.ID)
		}
		s.Instructions = strings.TrimSpace(s.Instructions)
		c.stacks[s.ID] = s
		c.order = append(c.order, s.ID)
	}
	if _, ok := c.stacks[c.defaultID]; !ok {
		return nil, fmt.Errorf("parse stack catalog: default stack %q not defined", c.defaultID)
	}
	return c, nil
}

// DefaultCatalog returns the embedded catalog
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(stacksYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the stack for id, falling back to the default stack when id
// is unknown. The second result reports whether id itself was found.
func (c *Catalog) Lookup(id string) (Stack, bool) {
	if s, ok := c.stacks[strings.ToLower(strings.TrimSpace(id))]; ok {
		return s, true
	}
	return c.stacks[c.defaultID], false
}

// Default returns the fallback stack id
func (c *Catalog) Default() string {
	return c.defaultID
}

// List returns all stacks in catalog order
func (c *Catalog) List() []Stack {
	out := make([]Stack, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.stacks[id])
	}
	return out
}
