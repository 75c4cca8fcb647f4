// Package questions holds the embedded questionnaire catalog.
package questions

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	VariantStandard = "standard"
	VariantPremium  = "premium"
)

//go:embed questions.yaml
var catalog []byte

// Question is one catalog entry. Options is empty for free-text questions.
type Question struct {
	ID       string   `yaml:"id" json:"id"`
	Text     string   `yaml:"text" json:"text"`
	Category string   `yaml:"category" json:"category"`
	Variant  string   `yaml:"variant" json:"variant"`
	Options  []string `yaml:"options,omitempty" json:"options,omitempty"`
}

// Bank indexes questions by id.
type Bank struct {
	ordered []Question
	byID    map[string]Question
}

// Load parses the embedded catalog.
func Load() (*Bank, error) {
	return Parse(catalog)
}

// Parse builds a Bank from YAML. Duplicate ids and entries without text are rejected.
func Parse(data []byte) (*Bank, error) {
	var doc struct {
		Questions []Question `yaml:"questions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	b := &Bank{byID: make(map[string]Question, len(doc.Questions))}
	for i, q := range doc.Questions {
		q.ID = strings.TrimSpace(q.ID)
		if q.ID == "" || strings.TrimSpace(q.Text) == "" {
			return nil, fmt.Errorf("question %d: id and text are required", i)
		}
		if _, dup := b.byID[q.ID]; dup {
			return nil, fmt.Errorf("question %s: duplicate id", q.ID)
		}
		if q.Variant == "" {
			q.Variant = VariantStandard
		}
		if q.Category == "" {
			q.Category = "general"
		}
		b.byID[q.ID] = q
		b.ordered = append(b.ordered, q)
	}
	return b, nil
}

// Get returns the question with id.
func (b *Bank) Get(id string) (Question, bool) {
	if b == nil {
		return Question{}, false
	}
	q, ok := b.byID[strings.TrimSpace(id)]
	return q, ok
}

// ForVariant lists the questions of a variant in catalog order. The premium
// variant includes every standard question.
func (b *Bank) ForVariant(variant string) []Question {
	if b == nil {
		return nil
	}
	out := make([]Question, 0, len(b.ordered))
	for _, q := range b.ordered {
		if q.Variant == variant || (variant == VariantPremium && q.Variant == VariantStandard) {
			out = append(out, q)
		}
	}
	return out
}

// Categories returns the distinct categories, sorted.
func (b *Bank) Categories() []string {
	if b == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, q := range b.ordered {
		seen[q.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Len reports how many questions the bank holds.
func (b *Bank) Len() int {
	if b == nil {
		return 0
	}
	return len(b.ordered)
}
