package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/common"
	"google.golang.org/genai"
)

// GeminiEngine is the Engine backed by a Gemini model. It asks for JSON
// output constrained by the expense schema.
type GeminiEngine struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGeminiEngine creates a Gemini client for model. An empty apiKey lets
// the SDK read GOOGLE_API_KEY or GEMINI_API_KEY from the environment.
func NewGeminiEngine(ctx context.Context, model, apiKey string) (*GeminiEngine, error) {
	if model == "" {
		return nil, fmt.Errorf("NewGeminiEngine: %w: model is required", common.ErrConfiguration)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiEngine: create genai client: %w", err)
	}

	return &GeminiEngine{
		client: client,
		model:  model,
		config: &genai.GenerateContentConfig{
			Temperature:      ptr[float32](0),
			ResponseMIMEType: "application/json",
			ResponseSchema:   expenseSchema(),
		},
	}, nil
}

// Model returns the configured model name.
func (e *GeminiEngine) Model() string {
	return e.model
}

// Generate sends prompt to the model and returns its text.
func (e *GeminiEngine) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, e.config)
	if err != nil {
		return "", fmt.Errorf("Generate: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return "", fmt.Errorf("Generate: empty response from model")
	}
	return rawText, nil
}

func expenseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			fieldDescription: {
				Type:        genai.TypeString,
				Nullable:    ptr(true),
				Description: "What the money was spent on",
			},
			fieldPrice: {
				Type:        genai.TypeNumber,
				Nullable:    ptr(true),
				Description: "Amount spent",
			},
			fieldCategory: {
				Type:     genai.TypeString,
				Nullable: ptr(true),
				Enum:     CategoryNames(),
			},
		},
		Required: []string{fieldDescription, fieldPrice, fieldCategory},
	}
}

func ptr[T any](v T) *T {
	return &v
}

// cleanModelJSON strips a markdown code fence around the reply. Anything else
// is left for the decoder to reject.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	return strings.TrimSpace(s)
}
