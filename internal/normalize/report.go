package normalize

import (
	"strings"
)

// Trait is one scored personality trait.
type Trait struct {
	Name        string `json:"name"`
	Score       int    `json:"score"`
	Description string `json:"description,omitempty"`
}

// Score is a named 0..10 score without commentary.
type Score struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Report is the canonical, render-safe analysis shape.
type Report struct {
	Overview             string   `json:"overview"`
	Traits               []Trait  `json:"traits"`
	Strengths            []string `json:"strengths"`
	GrowthAreas          []string `json:"growthAreas"`
	CareerSuggestions    []string `json:"careerSuggestions"`
	RelationshipPatterns []string `json:"relationshipPatterns"`
	Intelligence         []Score  `json:"intelligence"`
	Motivators           []string `json:"motivators"`
	Values               []string `json:"values"`
	Placeholder          bool     `json:"placeholder"`
}

// Usable reports whether the report has anything worth rendering.
func (r Report) Usable() bool {
	return strings.TrimSpace(r.Overview) != "" || len(r.Traits) > 0
}

// DefaultCompleteThreshold is the trait count at which a report counts as complete.
const DefaultCompleteThreshold = 8

// IsComplete applies the trait-count heuristic for a full analysis.
func (r Report) IsComplete(threshold int) bool {
	return len(r.Traits) >= threshold
}

var (
	overviewKeys     = []string{"overview", "summary", "personalityOverview", "description"}
	traitKeys        = []string{"traits", "personalityTraits", "coreTraits", "traitScores"}
	strengthKeys     = []string{"strengths", "keyStrengths"}
	growthKeys       = []string{"growthAreas", "areasForGrowth", "developmentAreas", "weaknesses"}
	careerKeys       = []string{"careerSuggestions", "careerRecommendations", "careerPaths", "careers"}
	relationshipKeys = []string{"relationshipPatterns", "relationships", "relationshipStyle"}
	intelligenceKeys = []string{"intelligence", "intelligenceScores", "multipleIntelligences", "cognitiveProfile"}
	motivatorKeys    = []string{"motivators", "coreMotivators", "motivations"}
	valueKeys        = []string{"values", "coreValues"}
	envelopeKeys     = []string{"analysis", "result", "data"}
)

// Normalize coerces a provider result into a Report.
func Normalize(result map[string]any) Report {
	fields := index(unwrap(result))

	report := Report{
		Overview:             SafeString(fields.first(overviewKeys)),
		Traits:               traits(fields.first(traitKeys)),
		Strengths:            labels(fields.first(strengthKeys)),
		GrowthAreas:          labels(fields.first(growthKeys)),
		CareerSuggestions:    labels(fields.first(careerKeys)),
		RelationshipPatterns: labels(fields.first(relationshipKeys)),
		Intelligence:         scores(fields.first(intelligenceKeys)),
		Motivators:           labels(fields.first(motivatorKeys)),
		Values:               labels(fields.first(valueKeys)),
	}
	if flag, ok := fields.first([]string{"placeholder"}).(bool); ok {
		report.Placeholder = flag
	}
	return report
}

// unwrap descends into a single envelope object such as {"analysis": {...}}
// when the top level carries no report fields of its own.
func unwrap(result map[string]any) map[string]any {
	if result == nil {
		return nil
	}
	top := index(result)
	if top.first(overviewKeys) != nil || top.first(traitKeys) != nil {
		return result
	}
	if inner, ok := top.first(envelopeKeys).(map[string]any); ok {
		return inner
	}
	return result
}

type fieldIndex map[string]any

func index(m map[string]any) fieldIndex {
	out := make(fieldIndex, len(m))
	for _, k := range sortedKeys(m) {
		key := canonicalKey(k)
		if _, exists := out[key]; !exists {
			out[key] = m[k]
		}
	}
	return out
}

func (f fieldIndex) first(aliases []string) any {
	for _, alias := range aliases {
		if v, ok := f[canonicalKey(alias)]; ok && v != nil {
			return v
		}
	}
	return nil
}

func canonicalKey(k string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(k) {
		if r == '_' || r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// labels turns a list field into display strings, dropping blanks.
func labels(v any) []string {
	if s, ok := v.(string); ok {
		v = splitList(s)
	}
	out := []string{}
	for _, item := range asList(v) {
		label := strings.TrimSpace(labelOf(item))
		if label != "" {
			out = append(out, label)
		}
	}
	return out
}

// labelOf prefers a title-like key for object items, then SafeString.
func labelOf(item any) string {
	obj, ok := item.(map[string]any)
	if !ok {
		return SafeString(item)
	}
	f := index(obj)
	for _, key := range []string{"name", "title", "trait", "career", "area"} {
		if v := f.first([]string{key}); v != nil {
			name := SafeString(v)
			if desc := SafeString(f.first([]string{"description", "reason", "explanation"})); desc != "" {
				return name + ": " + desc
			}
			return name
		}
	}
	return SafeString(item)
}

func traits(v any) []Trait {
	out := []Trait{}
	for _, entry := range namedEntries(v) {
		out = append(out, Trait{
			Name:        entry.name,
			Score:       entry.score,
			Description: entry.description,
		})
	}
	return out
}

func scores(v any) []Score {
	out := []Score{}
	for _, entry := range namedEntries(v) {
		out = append(out, Score{Name: entry.name, Score: entry.score})
	}
	return out
}

type namedEntry struct {
	name        string
	score       int
	description string
}

// namedEntries accepts a list of objects or strings, or an object keyed by name.
func namedEntries(v any) []namedEntry {
	var out []namedEntry
	switch val := v.(type) {
	case map[string]any:
		if index(val).first([]string{"name", "trait"}) != nil {
			return []namedEntry{entryFrom(val)}
		}
		for _, name := range sortedKeys(val) {
			var entry namedEntry
			if obj, ok := val[name].(map[string]any); ok {
				entry = entryFrom(obj)
			} else if raw, ok := ParseScore(val[name]); ok {
				entry.score = FormatTraitScore(raw)
			} else {
				entry.description = strings.TrimSpace(SafeString(val[name]))
			}
			if entry.name == "" {
				entry.name = name
			}
			out = append(out, entry)
		}
	case string:
		for _, name := range splitList(val) {
			out = append(out, namedEntry{name: name})
		}
	default:
		for _, item := range asList(val) {
			entry := entryFrom(item)
			if entry.name != "" {
				out = append(out, entry)
			}
		}
	}
	return out
}

func entryFrom(item any) namedEntry {
	obj, ok := item.(map[string]any)
	if !ok {
		return namedEntry{name: strings.TrimSpace(SafeString(item))}
	}
	f := index(obj)
	entry := namedEntry{
		name:        strings.TrimSpace(SafeString(f.first([]string{"name", "trait", "title", "type", "label"}))),
		description: strings.TrimSpace(SafeString(f.first([]string{"description", "explanation", "details", "summary"}))),
	}
	if raw, ok := ParseScore(f.first([]string{"score", "value", "rating", "level", "percentage"})); ok {
		entry.score = FormatTraitScore(raw)
	}
	return entry
}

func asList(v any) []any {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		return val
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	default:
		return []any{val}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '\n' }) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
