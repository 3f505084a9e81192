// Package refine picks the passage of each ranked section that best
// matches the query.
package refine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docrank/internal/document"
	"github.com/dgallion1/docrank/internal/embedding"
	"github.com/dgallion1/docrank/internal/rank"
)

// DefaultTargetTokens is the passage size used when none is configured.
const DefaultTargetTokens = 120

// Config controls refinement.
type Config struct {
	TargetTokens  int
	EmbedTimeout  time.Duration // per embedding call; zero means no limit
	MaxConcurrent int
}

// Passage is the refined text of one ranked section.
type Passage struct {
	Section document.Section
	Rank    int
	Text    string
}

// Refiner selects passages. It is safe for concurrent use.
type Refiner struct {
	embedder embedding.Embedder
	cfg      Config
	log      *slog.Logger
}

func New(e embedding.Embedder, cfg Config, log *slog.Logger) *Refiner {
	if cfg.TargetTokens <= 0 {
		cfg.TargetTokens = DefaultTargetTokens
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &Refiner{embedder: e, cfg: cfg, log: log}
}

// Refine returns one passage per result, in result order. Embedding
// failures fall back to the section's first passage; a deadline or a
// cancelled ctx aborts the whole call.
func (r *Refiner) Refine(ctx context.Context, queryVec []float64, results []document.RankedResult) ([]Passage, error) {
	passages := make([]Passage, len(results))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrent)
	for i, res := range results {
		g.Go(func() error {
			text, err := r.best(gctx, queryVec, res.Section)
			if err != nil {
				return fmt.Errorf("refine %s / %q: %w", res.Section.DocumentID, res.Section.Heading, err)
			}
			passages[i] = Passage{Section: res.Section, Rank: res.Rank, Text: text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return passages, nil
}

func (r *Refiner) best(ctx context.Context, queryVec []float64, s document.Section) (string, error) {
	parts := Split(s.Body, r.cfg.TargetTokens)
	if len(parts) == 0 {
		return "", nil
	}
	if len(parts) == 1 {
		return parts[0], nil
	}

	bestIdx, bestScore := 0, math.Inf(-1)
	for i, part := range parts {
		vec, err := r.embed(ctx, part)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return "", err
			}
			r.log.Warn("passage embedding failed, using first passage",
				"document", s.DocumentID, "section", s.Heading, "error", err)
			return parts[0], nil
		}
		if score := rank.Score(queryVec, vec); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	return parts[bestIdx], nil
}

func (r *Refiner) embed(ctx context.Context, text string) ([]float64, error) {
	if r.cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.EmbedTimeout)
		defer cancel()
	}
	return r.embedder.Embed(ctx, text)
}
