package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docrank/internal/document"
	"github.com/dgallion1/docrank/internal/structure"
)

// OutlineResult is the outline of one input, or the exclusion that
// prevented it.
type OutlineResult struct {
	Name      string
	Outline   structure.Outline
	Exclusion *document.Exclusion
}

// ExtractOutlines parses inputs with bounded concurrency and returns one
// result per input, in input order. Only ctx cancellation is fatal.
func ExtractOutlines(ctx context.Context, inputs []Input, opts Options, log *slog.Logger) ([]OutlineResult, error) {
	if log == nil {
		log = slog.Default()
	}
	limit := opts.MaxConcurrentExtract
	if limit <= 0 {
		limit = 5
	}
	extractor := structure.NewExtractor(opts.Structure)
	results := make([]OutlineResult, len(inputs))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, in := range inputs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i].Name = in.Name
			doc, err := parseInput(in, opts.Parser)
			if err != nil {
				exErr := &ExtractionError{DocumentID: in.Name, Err: err}
				log.WarnContext(ctx, "document excluded", "document", in.Name, "error", exErr)
				results[i].Exclusion = &document.Exclusion{
					DocumentID: in.Name,
					Stage:      document.StageExtract,
					Reason:     err.Error(),
				}
				return nil
			}
			results[i].Outline = extractor.Outline(*doc)
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
