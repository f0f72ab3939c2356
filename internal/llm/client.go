// Package llm adapts Genkit model generation to the conversation layer.
// It owns provider-qualified model naming, on-demand model registration for
// Ollama, and the translation between transcript messages and Genkit's
// message types.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/swasthai/swasth/internal/chat"
)

// Options fix the generation parameters applied to every model call.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Client implements chat.ModelClient on top of Genkit.
type Client struct {
	g        *genkit.Genkit
	plugin   *ollama.Ollama // nil unless the provider is ollama
	provider string
	opts     Options
	logger   *slog.Logger

	mu      sync.Mutex
	defined map[string]bool
}

// New creates a Client. plugin may be nil for providers whose models
// register themselves at init time.
func New(g *genkit.Genkit, plugin *ollama.Ollama, provider string, opts Options, logger *slog.Logger) *Client {
	return &Client{
		g:        g,
		plugin:   plugin,
		provider: provider,
		opts:     opts,
		logger:   logger.With("component", "llm"),
		defined:  make(map[string]bool),
	}
}

// Generate runs one model call. With a non-nil onChunk the call streams;
// an error returned by onChunk aborts generation and is propagated.
func (c *Client) Generate(ctx context.Context, model string, messages []chat.Message, onChunk func(ctx context.Context, text string) error) (string, error) {
	qualified := c.qualify(model)
	c.ensureModel(model)

	opts := []ai.GenerateOption{
		ai.WithMessages(toGenkitMessages(messages)...),
		ai.WithModelName(qualified),
		ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature:     c.opts.Temperature,
			MaxOutputTokens: c.opts.MaxTokens,
		}),
	}
	if onChunk != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			text := chunk.Text()
			if text == "" {
				return nil
			}
			return onChunk(ctx, text)
		}))
	}

	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generate with %s: %w", qualified, err)
	}
	return resp.Text(), nil
}

// qualify prefixes a bare model name with the provider. Names that already
// carry a provider prefix pass through unchanged.
func (c *Client) qualify(model string) string {
	if strings.Contains(model, "/") {
		return model
	}
	return c.provider + "/" + model
}

// ensureModel registers an Ollama model on first use. The plugin has no
// auto-discovery, so models selected at runtime must be defined before
// generation can reference them.
func (c *Client) ensureModel(model string) {
	if c.plugin == nil || strings.Contains(model, "/") {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.defined[model] {
		return
	}
	if genkit.LookupModel(c.g, c.qualify(model)) == nil {
		c.plugin.DefineModel(c.g, ollama.ModelDefinition{
			Name: model,
			Type: "chat",
		}, nil)
		c.logger.Debug("registered ollama model", "model", model)
	}
	c.defined[model] = true
}

// toGenkitMessages converts a transcript into Genkit messages.
func toGenkitMessages(messages []chat.Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleSystem:
			out = append(out, &ai.Message{
				Role:    ai.RoleSystem,
				Content: []*ai.Part{ai.NewTextPart(msg.Content)},
			})
		case chat.RoleAssistant:
			out = append(out, ai.NewModelMessage(ai.NewTextPart(msg.Content)))
		default:
			out = append(out, ai.NewUserMessage(ai.NewTextPart(msg.Content)))
		}
	}
	return out
}
