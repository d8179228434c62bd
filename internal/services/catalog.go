package services

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// QuestionsPerArchetype is fixed by the form: every archetype is measured by three statements.
const QuestionsPerArchetype = 3

// ArchetypeLookup resolves archetype reference data by id.
type ArchetypeLookup interface {
	Archetype(id int) *Archetype
}

// Catalog is the immutable reference data of the assessment. It is loaded
// once and never mutated afterwards.
type Catalog struct {
	archetypes []Archetype
	questions  []Question
	byArch     map[int]*Archetype
	byQuestion map[int]*Question
}

type catalogFile struct {
	Archetypes []Archetype `yaml:"archetypes"`
	Questions  []Question  `yaml:"questions"`
}

var (
	defaultCatalogOnce sync.Once
	defaultCatalog     *Catalog
	defaultCatalogErr  error
)

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	defaultCatalogOnce.Do(func() {
		defaultCatalog, defaultCatalogErr = ParseCatalog(embeddedCatalog)
	})
	return defaultCatalog, defaultCatalogErr
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(f.Archetypes, f.Questions)
}

// NewCatalog validates reference data and indexes it. Questions are kept in
// display order.
func NewCatalog(archetypes []Archetype, questions []Question) (*Catalog, error) {
	c := &Catalog{
		archetypes: append([]Archetype(nil), archetypes...),
		questions:  append([]Question(nil), questions...),
		byArch:     make(map[int]*Archetype, len(archetypes)),
		byQuestion: make(map[int]*Question, len(questions)),
	}
	for i := range c.archetypes {
		a := &c.archetypes[i]
		if a.ID <= 0 {
			return nil, fmt.Errorf("catalog: archetype %q has no id", a.Name)
		}
		if _, dup := c.byArch[a.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate archetype id %d", a.ID)
		}
		if a.MaleName == "" || a.FemaleName == "" {
			return nil, fmt.Errorf("catalog: archetype %d is missing a display name", a.ID)
		}
		c.byArch[a.ID] = a
	}

	sort.SliceStable(c.questions, func(i, j int) bool {
		return c.questions[i].DisplayOrder < c.questions[j].DisplayOrder
	})
	perArch := map[int]int{}
	orders := map[int]bool{}
	for i := range c.questions {
		q := &c.questions[i]
		if _, dup := c.byQuestion[q.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate question id %d", q.ID)
		}
		if orders[q.DisplayOrder] {
			return nil, fmt.Errorf("catalog: duplicate display order %d", q.DisplayOrder)
		}
		if _, ok := c.byArch[q.ArchetypeID]; !ok {
			return nil, fmt.Errorf("catalog: question %d references unknown archetype %d", q.ID, q.ArchetypeID)
		}
		orders[q.DisplayOrder] = true
		perArch[q.ArchetypeID]++
		c.byQuestion[q.ID] = q
	}
	for _, a := range c.archetypes {
		if n := perArch[a.ID]; n != QuestionsPerArchetype {
			return nil, fmt.Errorf("catalog: archetype %d has %d questions, want %d", a.ID, n, QuestionsPerArchetype)
		}
	}
	if len(c.questions) != QuestionCount {
		return nil, fmt.Errorf("catalog: %d questions, want %d", len(c.questions), QuestionCount)
	}
	return c, nil
}

func (c *Catalog) Archetype(id int) *Archetype { return c.byArch[id] }

func (c *Catalog) Question(id int) *Question { return c.byQuestion[id] }

// Archetypes returns a copy of the archetypes in catalog order.
func (c *Catalog) Archetypes() []Archetype {
	return append([]Archetype(nil), c.archetypes...)
}

// Questions returns a copy of the questions in display order.
func (c *Catalog) Questions() []Question {
	return append([]Question(nil), c.questions...)
}
