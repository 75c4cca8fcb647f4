package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"persona-backend/internal/bootstrap"
	"persona-backend/internal/llm"
	"persona-backend/internal/normalize"
	"persona-backend/internal/questions"
	"persona-backend/internal/shared/config"
)

// answersFile is the YAML (or JSON) input of the prompt command.
type answersFile struct {
	Variant string `yaml:"variant"`
	Answers []struct {
		QuestionID string `yaml:"questionId"`
		Answer     string `yaml:"answer"`
	} `yaml:"answers"`
}

func newPromptCmd(loadConfig func() config.Config) *cobra.Command {
	var (
		provider string
		model    string
		outPath  string
	)
	cmd := &cobra.Command{
		Use:   "prompt <answers.yaml>",
		Short: "Send a set of answers to the configured provider and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			bank, err := questions.Load()
			if err != nil {
				return err
			}
			req, err := buildRequest(data, bank)
			if err != nil {
				return err
			}

			cfg := loadConfig()
			if provider != "" {
				cfg.LLMProvider = provider
			}
			if model != "" {
				cfg.LLMModel = model
			}
			client, err := bootstrap.NewLLMClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return runPrompt(cmd, client, req, outPath)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "override LLM_PROVIDER (openai, gemini)")
	cmd.Flags().StringVar(&model, "model", "", "override LLM_MODEL")
	cmd.Flags().StringVar(&outPath, "out", "", "also write the raw provider JSON here")
	return cmd
}

func buildRequest(data []byte, bank *questions.Bank) (llm.AnalysisRequest, error) {
	var in answersFile
	if err := yaml.Unmarshal(data, &in); err != nil {
		return llm.AnalysisRequest{}, fmt.Errorf("parse answers: %w", err)
	}
	if len(in.Answers) == 0 {
		return llm.AnalysisRequest{}, fmt.Errorf("answers file has no answers")
	}
	responses := make([]llm.Response, 0, len(in.Answers))
	for _, a := range in.Answers {
		q, ok := bank.Get(a.QuestionID)
		if !ok {
			return llm.AnalysisRequest{}, fmt.Errorf("unknown question %q", a.QuestionID)
		}
		if strings.TrimSpace(a.Answer) == "" {
			continue
		}
		responses = append(responses, llm.Response{
			QuestionID: q.ID,
			Question:   q.Text,
			Answer:     a.Answer,
			Category:   q.Category,
		})
	}
	variant := in.Variant
	if variant == "" {
		variant = questions.VariantStandard
	}
	return llm.NewAnalysisRequest("cli", variant, responses), nil
}

func runPrompt(cmd *cobra.Command, client llm.Client, req llm.AnalysisRequest, outPath string) error {
	raw, err := client.Analyze(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	if outPath != "" {
		if err := os.WriteFile(outPath, raw, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
	}
	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "provider returned invalid JSON (%d bytes)\n", len(raw))
		return err
	}
	return writeJSON(cmd.OutOrStdout(), normalize.Normalize(parsed))
}
