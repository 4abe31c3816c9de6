package llm

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"repoinsight/config"
)

// boundedCompleter clamps prompt length and applies a per-call timeout so a
// stalled model call cannot stall the whole run. Expiry surfaces as an
// ordinary error; callers treat it like any other completion failure.
type boundedCompleter struct {
	inner     Completer
	timeout   time.Duration
	maxPrompt int
}

func newBoundedCompleter(inner Completer, cfg config.LLMConfig) *boundedCompleter {
	return &boundedCompleter{
		inner:     inner,
		timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		maxPrompt: cfg.MaxPromptLength,
	}
}

func (b *boundedCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	logPromptSize(prompt, b.maxPrompt)
	if b.maxPrompt > 0 && len(prompt) > b.maxPrompt {
		logrus.Warnf("Prompt is being truncated from %d to %d characters.", len(prompt), b.maxPrompt)
		prompt = prompt[:b.maxPrompt]
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := b.inner.Complete(ctx, system, prompt)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		// The abandoned call finishes in the background; its result is
		// discarded via the buffered channel.
		return "", ctx.Err()
	}
}
