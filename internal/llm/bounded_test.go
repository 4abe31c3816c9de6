package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoinsight/config"
)

type fakeCompleter struct {
	reply      string
	err        error
	delay      time.Duration
	lastPrompt string
}

func (f *fakeCompleter) Complete(ctx context.Context, _, prompt string) (string, error) {
	f.lastPrompt = prompt
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func TestBoundedCompleterPassesThrough(t *testing.T) {
	inner := &fakeCompleter{reply: "ok"}
	b := newBoundedCompleter(inner, config.LLMConfig{TimeoutSeconds: 5, MaxPromptLength: 100})

	reply, err := b.Complete(context.Background(), "system", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, "prompt", inner.lastPrompt)
}

func TestBoundedCompleterClampsPrompt(t *testing.T) {
	inner := &fakeCompleter{reply: "ok"}
	b := newBoundedCompleter(inner, config.LLMConfig{TimeoutSeconds: 5, MaxPromptLength: 4})

	_, err := b.Complete(context.Background(), "system", "0123456789")
	require.NoError(t, err)
	assert.Equal(t, "0123", inner.lastPrompt)
}

func TestBoundedCompleterTimesOut(t *testing.T) {
	inner := &fakeCompleter{reply: "too late", delay: time.Second}
	b := newBoundedCompleter(inner, config.LLMConfig{MaxPromptLength: 100})
	b.timeout = 20 * time.Millisecond

	_, err := b.Complete(context.Background(), "system", "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBoundedCompleterPropagatesErrors(t *testing.T) {
	wantErr := errors.New("backend down")
	b := newBoundedCompleter(&fakeCompleter{err: wantErr}, config.LLMConfig{TimeoutSeconds: 5})

	_, err := b.Complete(context.Background(), "system", "prompt")
	assert.ErrorIs(t, err, wantErr)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "watson"})
	require.Error(t, err)
}
