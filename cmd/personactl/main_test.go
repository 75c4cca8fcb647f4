package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"persona-backend/internal/llm"
	"persona-backend/internal/questions"
	"persona-backend/internal/shared/config"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNormalizeFromStdin(t *testing.T) {
	out, err := execute(t, `{"overview":"Calm","traits":[{"name":"Openness","score":0.9}]}`, "normalize", "--threshold", "1")
	require.NoError(t, err)

	var got struct {
		Complete bool `json:"complete"`
		Report   struct {
			Overview string `json:"overview"`
			Traits   []struct {
				Score int `json:"score"`
			} `json:"traits"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.True(t, got.Complete)
	require.Equal(t, "Calm", got.Report.Overview)
	require.Equal(t, 9, got.Report.Traits[0].Score)
}

func TestNormalizeRejectsNonObject(t *testing.T) {
	_, err := execute(t, `["nope"]`, "normalize")
	require.Error(t, err)
}

func TestQuestionsCommand(t *testing.T) {
	out, err := execute(t, "", "questions")
	require.NoError(t, err)
	require.Contains(t, out, `"id": "q1"`)

	_, err = execute(t, "", "questions", "--variant", "deluxe")
	require.Error(t, err)
}

func TestResolveRequiresUser(t *testing.T) {
	_, err := execute(t, "", "resolve")
	require.ErrorContains(t, err, "--user")
}

type echoLLM struct{ got llm.AnalysisRequest }

func (e *echoLLM) Analyze(_ context.Context, req llm.AnalysisRequest) (json.RawMessage, error) {
	e.got = req
	return json.RawMessage(`{"overview":"Focused","traits":[{"name":"Conscientiousness","score":7}]}`), nil
}

func TestPromptBuildsRequestFromAnswers(t *testing.T) {
	bank, err := questions.Load()
	require.NoError(t, err)
	req, err := buildRequest([]byte("answers:\n  - questionId: q1\n    answer: Stay with a few people you know\n  - questionId: q2\n    answer: ''\n"), bank)
	require.NoError(t, err)
	require.Len(t, req.Responses, 1)
	require.Equal(t, "social", req.Responses[0].Category)

	_, err = buildRequest([]byte("answers:\n  - questionId: nope\n    answer: x\n"), bank)
	require.ErrorContains(t, err, "unknown question")

	client := &echoLLM{}
	cmd := newPromptCmd(func() config.Config { return config.Config{} })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	require.NoError(t, runPrompt(cmd, client, req, ""))
	require.Contains(t, out.String(), `"overview": "Focused"`)
	require.Equal(t, 1, client.got.ResponseCount)
}
