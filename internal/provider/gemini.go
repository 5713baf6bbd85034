package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/prpm-dev/registry/internal/credits"
)

// modelAliases maps catalog model identifiers to the Gemini model that
// actually serves them. Identifiers already in Gemini's namespace pass
// through untouched.
var modelAliases = map[string]string{
	"gpt-4o-mini": "gemini-1.5-flash",
	"gpt-4o":      "gemini-1.5-pro",
	"gpt-4-turbo": "gemini-1.5-pro",
	"sonnet":      "gemini-1.5-pro",
	"opus":        "gemini-1.5-pro",
}

// Gemini is the production Provider backed by Google's generative AI API.
type Gemini struct {
	client *genai.Client
}

func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client}, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

// Generate runs a single prompt. systemPrompt may be empty (baseline runs
// inject nothing). Token usage comes from the response metadata; when the
// API reports none we count locally so settlement never bills from zero.
func (g *Gemini) Generate(ctx context.Context, systemPrompt, model, input string) (*Result, error) {
	name := model
	if alias, ok := modelAliases[model]; ok {
		name = alias
	}

	m := g.client.GenerativeModel(name)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	res, err := m.GenerateContent(ctx, genai.Text(input))
	if err != nil {
		return nil, &Error{Model: model, Err: err}
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return nil, &Error{Model: model, Err: fmt.Errorf("empty response")}
	}

	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	text := sb.String()

	tokens := 0
	if res.UsageMetadata != nil {
		tokens = int(res.UsageMetadata.TotalTokenCount)
	}
	if tokens == 0 {
		tokens = credits.CountTokens(input) + credits.CountTokens(text)
	}

	return &Result{Text: text, TokensUsed: tokens}, nil
}
