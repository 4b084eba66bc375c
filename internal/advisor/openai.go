package advisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v3"

	"atlas-advisor-backend/internal/apperr"
)

// PromptSpec is the YAML prompt definition for the live completer.
type PromptSpec struct {
	System string `yaml:"system"`
	Style  struct {
		Temperature float32 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
	} `yaml:"style"`
}

// LoadPromptSpec reads a PromptSpec from path.
func LoadPromptSpec(path string) (PromptSpec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return PromptSpec{}, err
	}
	var spec PromptSpec
	if err := yaml.Unmarshal(b, &spec); err != nil {
		return PromptSpec{}, fmt.Errorf("parse prompt %s: %w", path, err)
	}
	if strings.TrimSpace(spec.System) == "" {
		return PromptSpec{}, fmt.Errorf("prompt %s has no system text", path)
	}
	return spec, nil
}

// OpenAICompleter asks an OpenAI-compatible chat model to explain the
// ranked candidates to the user.
type OpenAICompleter struct {
	client *openai.Client
	model  string
	spec   PromptSpec
}

func NewOpenAICompleter(client *openai.Client, model string, spec PromptSpec) *OpenAICompleter {
	return &OpenAICompleter{client: client, model: model, spec: spec}
}

func (c *OpenAICompleter) Complete(ctx context.Context, p Prompt) (Completion, error) {
	temp := c.spec.Style.Temperature
	if temp <= 0 {
		temp = 0.3
	}
	maxTok := c.spec.Style.MaxTokens
	if maxTok <= 0 {
		maxTok = 300
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temp,
		MaxTokens:   maxTok,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt(p)},
			{Role: openai.ChatMessageRoleUser, Content: p.Message},
		},
	})
	if err != nil {
		return Completion{}, upstream(err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, &apperr.UpstreamError{Origin: apperr.OriginAI, Err: errors.New("no choices")}
	}
	model := resp.Model
	if model == "" {
		model = c.model
	}
	return Completion{
		Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
		TokensUsed: resp.Usage.TotalTokens,
		Model:      model,
	}, nil
}

// systemPrompt embeds the candidate list so the model only talks about
// templates the ranker picked.
func (c *OpenAICompleter) systemPrompt(p Prompt) string {
	var b strings.Builder
	b.WriteString(c.spec.System)
	b.WriteString("\n\nCandidate templates (best first):\n")
	for i, r := range p.Candidates {
		fmt.Fprintf(&b, "%d. %s [%s, score %.2f]: %s\n", i+1, r.App.Name, r.Confidence, r.Score, r.App.Description)
		if len(r.MatchedFeatures) > 0 {
			fmt.Fprintf(&b, "   matched: %s\n", strings.Join(r.MatchedFeatures, ", "))
		}
	}
	if p.Starter {
		b.WriteString("\nNone matched the request directly; suggest the first as a starting point and ask one clarifying question.\n")
	}
	if len(p.SelectedDatasets) > 0 {
		fmt.Fprintf(&b, "\nThe user has already selected these datasets: %s\n", strings.Join(p.SelectedDatasets, ", "))
	}
	return b.String()
}

// upstream tags provider status errors with their HTTP status. Transport
// and context errors pass through for the mapper to classify.
func upstream(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &apperr.UpstreamError{Origin: apperr.OriginAI, StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &apperr.UpstreamError{Origin: apperr.OriginAI, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return err
}
