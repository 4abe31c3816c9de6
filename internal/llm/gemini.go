package llm

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	genai "google.golang.org/genai"
)

// geminiClient is a thin wrapper around the official genai client. The
// GEMINI_API_KEY environment variable is read by the genai client itself.
type geminiClient struct {
	cli   *genai.Client
	model string
}

func newGeminiClient(model string) (*geminiClient, error) {
	cli, err := genai.NewClient(context.Background(), &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	logrus.Infof("Using Gemini model: %s", model)
	return &geminiClient{cli: cli, model: model}, nil
}

func (gc *geminiClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := gc.cli.Models.GenerateContent(ctx, gc.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		},
	)
	if err != nil {
		return "", fmt.Errorf("calling Gemini GenerateContent API: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty Gemini response")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
