package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Pipeline tries providers in a fixed priority order. The order is set once
// at construction and never mutated; the first well-formed, non-empty result
// wins and no further providers are tried.
type Pipeline struct {
	providers []Provider
}

// NewPipeline creates a pipeline over an ordered provider chain.
func NewPipeline(providers ...Provider) (*Pipeline, error) {
	if len(providers) == 0 {
		return nil, errors.New("at least one extraction provider is required")
	}
	return &Pipeline{providers: providers}, nil
}

// Extract runs the chain. Per-provider transport and schema failures are
// absorbed and the next provider tried; only exhaustion escalates, as an
// ExhaustedError wrapping the last provider's failure.
func (p *Pipeline) Extract(ctx context.Context, req Request) (*Result, error) {
	if req.Text != "" && len(req.Files) > 0 {
		return nil, errors.New("extraction accepts text or file input, not both")
	}
	if req.Text == "" && len(req.Files) == 0 {
		return nil, errors.New("no input to extract")
	}
	if req.Today.IsZero() {
		req.Today = time.Now()
	}

	var last error
	for _, provider := range p.providers {
		res, err := provider.Extract(ctx, req)
		if err == nil {
			return res, nil
		}
		slog.Warn("Extraction provider failed, trying next",
			"provider", provider.Name(),
			"error", err,
		)
		last = fmt.Errorf("%s: %w", provider.Name(), err)
	}

	return nil, &ExhaustedError{Attempts: len(p.providers), Last: last}
}

// Close releases every provider in the chain.
func (p *Pipeline) Close() error {
	var first error
	for _, provider := range p.providers {
		if err := provider.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
