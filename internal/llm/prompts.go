package llm

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
)

// PromptVersion identifies the embedded instruction template.
const PromptVersion = "personality_v1"

//go:embed prompts/personality_v1.txt
var promptPersonalityV1 string

const (
	SystemPrompt        = "You are a personality assessment engine. Respond with JSON only. No markdown. Never omit keys."
	SystemPromptFixJSON = "You are a JSON repair tool. Return only valid JSON that matches the requested keys."
)

// Instructions renders the developer instructions for a request.
func Instructions(req AnalysisRequest, model string) string {
	variant := req.Variant
	if variant == "" {
		variant = "standard"
	}
	return strings.NewReplacer(
		"{{VARIANT}}", variant,
		"{{MODEL}}", model,
		"{{PROMPT_VERSION}}", PromptVersion,
	).Replace(promptPersonalityV1)
}

// UserPrompt lists the answers with the category distribution.
func UserPrompt(req AnalysisRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Responses (%d):\n", req.ResponseCount)
	for i, r := range req.Responses {
		fmt.Fprintf(&b, "%d. [%s] %s\n   Answer: %s\n", i+1, fallback(r.Category, "general"), fallback(r.Question, r.QuestionID), r.Answer)
	}
	if len(req.CategoryDistribution) > 0 {
		cats := make([]string, 0, len(req.CategoryDistribution))
		for c := range req.CategoryDistribution {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		b.WriteString("\nCategory distribution:\n")
		for _, c := range cats {
			fmt.Fprintf(&b, "- %s: %d\n", c, req.CategoryDistribution[c])
		}
	}
	return b.String()
}

// FixPrompt asks the model to repair its own malformed output.
func FixPrompt(raw []byte) string {
	return fmt.Sprintf("Fix this JSON so it parses and keeps the requested keys. Output JSON only:\n%s", string(raw))
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
