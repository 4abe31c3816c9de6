// Package llm provides the reasoning-service clients. The rest of the
// program talks to a Completer and never to a concrete backend; model output
// carries no structured-output guarantee and is parsed defensively by the
// callers.
package llm

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"repoinsight/config"
)

// Completer sends a prompt with a system role and returns the model's
// free-form text reply.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// New builds the configured backend wrapped with the per-call timeout and
// prompt-length clamp.
func New(cfg config.LLMConfig) (Completer, error) {
	var inner Completer
	var err error
	switch cfg.Provider {
	case "ollama":
		inner, err = newOllamaClient(cfg.Host, cfg.Model)
	case "gemini":
		inner, err = newGeminiClient(cfg.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return newBoundedCompleter(inner, cfg), nil
}

func logPromptSize(prompt string, max int) {
	logrus.Debugf("Sending prompt of %d characters to LLM (max: %d)", len(prompt), max)
}
