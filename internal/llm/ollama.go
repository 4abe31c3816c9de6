package llm

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	ollama "github.com/JexSrs/go-ollama"
	"github.com/sirupsen/logrus"
)

// ollamaClient talks to a local or remote Ollama instance through its
// Generate endpoint.
type ollamaClient struct {
	client *ollama.Ollama
	model  string
}

func newOllamaClient(host, model string) (*ollamaClient, error) {
	ollamaURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	logrus.Infof("Using Ollama client for host: %s", host)
	logrus.Infof("Using Ollama model: %s", model)
	return &ollamaClient{
		client: ollama.New(*ollamaURL),
		model:  model,
	}, nil
}

func (oc *ollamaClient) Complete(_ context.Context, system, prompt string) (string, error) {
	res, err := oc.client.Generate(
		oc.client.Generate.WithModel(oc.model),
		oc.client.Generate.WithSystem(system),
		oc.client.Generate.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("calling Ollama Generate API: %w", err)
	}
	if !res.Done {
		return "", fmt.Errorf("Ollama request did not complete (unexpected streaming behavior)")
	}
	if res.Response == "" {
		return "", fmt.Errorf("empty Ollama response marked as done")
	}
	// Models sometimes wrap the reply in ``` fences.
	return strings.TrimSpace(strings.Trim(res.Response, "```")), nil
}
