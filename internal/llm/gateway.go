package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/voiceagents/internal/config"
)

type gateway struct {
	providers  map[string]Provider
	primary    string
	fallback   string
	maxRetries int
	backoff    time.Duration
}

// NewGateway registers every provider with a configured key. It returns a
// nil Gateway when none is configured.
func NewGateway(cfg config.LLMConfig) Gateway {
	var providers []Provider
	if cfg.OpenAIKey != "" {
		providers = append(providers, NewOpenAIProvider(cfg.OpenAIKey))
	}
	if cfg.AnthropicKey != "" {
		providers = append(providers, NewAnthropicProvider(cfg.AnthropicKey))
	}
	if len(providers) == 0 {
		return nil
	}
	return newGateway(cfg, providers...)
}

func newGateway(cfg config.LLMConfig, providers ...Provider) *gateway {
	g := &gateway{
		providers:  make(map[string]Provider, len(providers)),
		primary:    cfg.DefaultProvider,
		fallback:   cfg.FallbackProvider,
		maxRetries: cfg.MaxRetries,
		backoff:    500 * time.Millisecond,
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	// a single configured provider is the primary whatever the default says
	if _, ok := g.providers[g.primary]; !ok && len(providers) == 1 {
		g.primary = providers[0].Name()
	}
	return g
}

// Complete tries the requested (or primary) provider, then the fallback. The
// fallback uses its own default model since model names are not portable.
func (g *gateway) Complete(ctx context.Context, req Request) (*Completion, error) {
	name := req.Provider
	if name == "" {
		name = g.primary
	}

	c, err := g.attempt(ctx, name, req)
	if err == nil || ctx.Err() != nil || g.fallback == "" || g.fallback == name {
		return c, err
	}

	slog.Warn("llm provider failed, trying fallback", "primary", name, "fallback", g.fallback, "error", err)
	req.Model = ""
	c, ferr := g.attempt(ctx, g.fallback, req)
	if ferr != nil {
		return nil, errors.Join(err, ferr)
	}
	return c, nil
}

func (g *gateway) attempt(ctx context.Context, name string, req Request) (*Completion, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}

	var lastErr error
	for i := 0; i <= g.maxRetries; i++ {
		if i > 0 {
			t := time.NewTimer(g.backoff << (i - 1))
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		c, err := p.Complete(ctx, req)
		if err == nil {
			callsTotal.WithLabelValues(name, "ok").Inc()
			record(c)
			return c, nil
		}
		callsTotal.WithLabelValues(name, "error").Inc()
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		slog.Debug("llm call failed", "provider", name, "attempt", i+1, "error", err)
	}
	return nil, fmt.Errorf("%s failed after %d attempts: %w", name, g.maxRetries+1, lastErr)
}
