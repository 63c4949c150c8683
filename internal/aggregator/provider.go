package aggregator

import (
	"context"
	"log/slog"
)

// Provider supplies candidate videos for one source tier.
type Provider interface {
	Name() string
	FetchCandidates(ctx context.Context) ([]VideoItem, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc struct {
	Label string
	Fn    func(ctx context.Context) ([]VideoItem, error)
}

// Name returns the provider label used in logs.
func (p ProviderFunc) Name() string { return p.Label }

// FetchCandidates calls the wrapped function.
func (p ProviderFunc) FetchCandidates(ctx context.Context) ([]VideoItem, error) {
	return p.Fn(ctx)
}

// Chain is an ordered list of providers tried in sequence.
type Chain []Provider

// Fetch returns the first non-empty candidate list. Provider errors are logged
// and treated as empty so the next tier is tried.
func (c Chain) Fetch(ctx context.Context) []VideoItem {
	for _, p := range c {
		videos, err := p.FetchCandidates(ctx)
		if err != nil {
			slog.Warn("aggregator: provider failed",
				slog.String("provider", p.Name()),
				slog.Any("error", err))
			continue
		}
		if len(videos) > 0 {
			slog.Debug("aggregator: provider served",
				slog.String("provider", p.Name()),
				slog.Int("count", len(videos)))
			return videos
		}
		slog.Debug("aggregator: provider empty", slog.String("provider", p.Name()))
	}
	return nil
}

// MockProvider serves the bundled catalog restricted to src.
func MockProvider(src Source) Provider {
	return ProviderFunc{
		Label: "mock-" + string(src),
		Fn: func(context.Context) ([]VideoItem, error) {
			return MockVideos(src), nil
		},
	}
}
