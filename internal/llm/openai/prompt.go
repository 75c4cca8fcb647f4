package openai

import (
	"persona-backend/internal/llm"
)

// Message represents an OpenAI chat message.
type Message struct {
	Role    string
	Content string
}

// BuildPrompt creates the chat messages for a personality analysis request.
func BuildPrompt(req llm.AnalysisRequest, model string) []Message {
	return []Message{
		{Role: "system", Content: llm.SystemPrompt},
		{Role: "developer", Content: llm.Instructions(req, model)},
		{Role: "user", Content: llm.UserPrompt(req)},
	}
}

func buildFixPrompt(req llm.AnalysisRequest, model string, raw []byte) []Message {
	return []Message{
		{Role: "system", Content: llm.SystemPromptFixJSON},
		{Role: "developer", Content: llm.Instructions(req, model)},
		{Role: "user", Content: llm.FixPrompt(raw)},
	}
}
