// Package embedding maps text to fixed-dimension vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrEmptyText is returned when asked to embed blank text.
	ErrEmptyText = errors.New("empty text")
	// ErrMalformed is returned when a model yields an empty or non-finite vector.
	ErrMalformed = errors.New("malformed embedding")
)

// Embedder converts free text into a vector. Implementations must be
// safe for concurrent use once prepared.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Preparer is implemented by embedders that fit themselves to the corpus
// of a run before embedding.
type Preparer interface {
	Prepare(ctx context.Context, corpus []string) error
}

// Prepare fits e to corpus when e needs it.
func Prepare(ctx context.Context, e Embedder, corpus []string) error {
	p, ok := e.(Preparer)
	if !ok {
		return nil
	}
	if err := p.Prepare(ctx, corpus); err != nil {
		return fmt.Errorf("prepare %s embedder: %w", e.Name(), err)
	}
	return nil
}

// CheckText rejects text that carries nothing to embed.
func CheckText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return nil
}

// CheckVector rejects empty vectors and vectors with NaN or Inf components.
// A zero-magnitude vector is well-formed.
func CheckVector(v []float64) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: no components", ErrMalformed)
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: component %d is %v", ErrMalformed, i, x)
		}
	}
	return nil
}

// IsZero reports whether v has zero magnitude.
func IsZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Provider names a supported embedding backend.
type Provider string

const (
	ProviderTFIDF  Provider = "tfidf"
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// Options selects and configures a backend.
type Options struct {
	Provider Provider
	OpenAI   OpenAIConfig
	Gemini   GeminiConfig
}

// New builds the embedder named by opts.Provider.
func New(ctx context.Context, opts Options) (Embedder, error) {
	switch opts.Provider {
	case ProviderTFIDF, "":
		return NewTFIDF(), nil
	case ProviderOpenAI:
		return NewOpenAI(opts.OpenAI)
	case ProviderGemini:
		return NewGemini(ctx, opts.Gemini)
	default:
		return nil, fmt.Errorf("unknown embedder %q", opts.Provider)
	}
}
