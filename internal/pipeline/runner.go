package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docrank/internal/config"
	"github.com/dgallion1/docrank/internal/document"
	"github.com/dgallion1/docrank/internal/embedding"
	"github.com/dgallion1/docrank/internal/logger"
	"github.com/dgallion1/docrank/internal/parser"
	"github.com/dgallion1/docrank/internal/query"
	"github.com/dgallion1/docrank/internal/rank"
	"github.com/dgallion1/docrank/internal/refine"
	"github.com/dgallion1/docrank/internal/report"
	"github.com/dgallion1/docrank/internal/structure"
)

const (
	minDocuments = 3
	maxDocuments = 10
)

var (
	// ErrNoInputs is returned for a run with no documents.
	ErrNoInputs = fmt.Errorf("%w: no input documents", config.ErrInvalidConfig)
	// ErrQueryEmbedding is returned when the query cannot be embedded.
	ErrQueryEmbedding = errors.New("query embedding failed")
	// ErrEmbeddingTimeout is returned when any embedding call exceeds its deadline.
	ErrEmbeddingTimeout = errors.New("embedding timed out")
)

// ExtractionError is a document that could not be read or parsed.
type ExtractionError struct {
	DocumentID string
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.DocumentID, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingError is a section or query that could not be embedded.
type EmbeddingError struct {
	DocumentID string
	Heading    string
	Err        error
}

func (e *EmbeddingError) Error() string {
	if e.DocumentID == "" {
		return fmt.Sprintf("embed query: %v", e.Err)
	}
	return fmt.Sprintf("embed %s / %q: %v", e.DocumentID, e.Heading, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// Input is one document of a run. Open is called once.
type Input struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileInput reads a document from disk; its name is the base filename.
func FileInput(path string) Input {
	return Input{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// BytesInput serves a document from memory.
func BytesInput(name string, data []byte) Input {
	return Input{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// Observer receives progress from a run.
type Observer interface {
	SetStatus(status JobStatus, phase string)
	SetCounts(documents, sections int)
	AddExclusion(ex document.Exclusion)
}

// Options bound a Runner's work.
type Options struct {
	Parser               parser.Options
	Structure            structure.Config
	Refine               refine.Config
	EmbedTimeout         time.Duration
	MaxConcurrentExtract int
	MaxConcurrentEmbed   int
	Stats                *embedding.Stats
}

// OptionsFromConfig derives runner options from service config.
func OptionsFromConfig(cfg config.Config, stats *embedding.Stats) Options {
	return Options{
		Parser:               parser.Options{PDFFallbackPdftotext: cfg.PDFFallback},
		Structure:            cfg.StructureConfig(),
		Refine:               cfg.RefineConfig(),
		EmbedTimeout:         cfg.EmbedTimeout,
		MaxConcurrentExtract: cfg.MaxConcurrentExtract,
		MaxConcurrentEmbed:   cfg.MaxConcurrentEmbed,
		Stats:                stats,
	}
}

// Runner executes ranking runs and is safe for concurrent use. Runs on a
// corpus-fitted embedder hold a lock from Prepare until refinement ends.
type Runner struct {
	embedder  embedding.Embedder
	fitted    bool
	fitMu     sync.Mutex
	extractor *structure.Extractor
	refiner   *refine.Refiner
	opts      Options
	log       *slog.Logger
	now       func() time.Time
}

func NewRunner(e embedding.Embedder, opts Options, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxConcurrentExtract <= 0 {
		opts.MaxConcurrentExtract = 5
	}
	if opts.MaxConcurrentEmbed <= 0 {
		opts.MaxConcurrentEmbed = 8
	}
	if opts.Refine.EmbedTimeout == 0 {
		opts.Refine.EmbedTimeout = opts.EmbedTimeout
	}
	_, fitted := e.(embedding.Preparer)
	e = embedding.Instrument(e, opts.Stats)
	return &Runner{
		embedder:  e,
		fitted:    fitted,
		extractor: structure.NewExtractor(opts.Structure),
		refiner:   refine.New(e, opts.Refine, log),
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

// EmbedderName identifies the embedding model in reports.
func (r *Runner) EmbedderName() string { return r.embedder.Name() }

// Run ranks the sections of inputs against rc. The run ID is taken from
// ctx (see logger.WithRunID) or generated.
func (r *Runner) Run(ctx context.Context, rc config.RunConfig, inputs []Input) (*report.Report, error) {
	return r.RunObserved(ctx, rc, inputs, nil)
}

// RunObserved is Run with progress reported to obs, which may be nil.
func (r *Runner) RunObserved(ctx context.Context, rc config.RunConfig, inputs []Input, obs Observer) (*report.Report, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}
	if obs == nil {
		obs = nopObserver{}
	}
	runID := logger.RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logger.WithRunID(ctx, runID)
	}
	start := r.now()

	var warnings []string
	if n := len(inputs); n < minDocuments || n > maxDocuments {
		w := fmt.Sprintf("expected %d-%d documents, got %d", minDocuments, maxDocuments, n)
		r.log.WarnContext(ctx, "document count outside recommended range", "documents", n)
		warnings = append(warnings, w)
	}

	// Phase 1: extract and structure every document independently.
	obs.SetStatus(StatusExtracting, "extracting")
	sections, exclusions, err := r.extractAll(ctx, inputs)
	if err != nil {
		return nil, err
	}
	for _, ex := range exclusions {
		obs.AddExclusion(ex)
	}
	obs.SetCounts(len(inputs), len(sections))
	r.log.InfoContext(ctx, "documents structured", "documents", len(inputs), "sections", len(sections), "excluded", len(exclusions))

	q := query.Build(rc.Persona, rc.JobToBeDone)
	meta := report.Metadata{
		RunID:          runID,
		InputDocuments: inputNames(inputs),
		Persona:        rc.Persona.String(),
		JobToBeDone:    rc.JobToBeDone,
		Query:          q,
		TopK:           rc.TopK,
		Embedder:       r.embedder.Name(),
	}

	if len(sections) == 0 {
		warnings = append(warnings, "no sections extracted from any document")
		meta.ProcessingTimestamp = r.now().UTC()
		rep := report.Assemble(meta, nil, nil, exclusions, warnings)
		return &rep, nil
	}

	// Phase 2: embed the query, then every section.
	obs.SetStatus(StatusEmbedding, "embedding")
	if r.fitted {
		r.fitMu.Lock()
		defer r.fitMu.Unlock()
	}
	corpus := make([]string, 0, len(sections)+1)
	for _, s := range sections {
		corpus = append(corpus, s.Text())
	}
	corpus = append(corpus, q)
	if err := embedding.Prepare(ctx, r.embedder, corpus); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryEmbedding, err)
	}

	queryVec, err := r.embed(ctx, q)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: query: %w", ErrEmbeddingTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrQueryEmbedding, &EmbeddingError{Err: err})
	}
	if embedding.IsZero(queryVec) {
		return nil, fmt.Errorf("%w: query has no overlap with the document vocabulary", ErrQueryEmbedding)
	}

	candidates, embedExcl, err := r.embedSections(ctx, sections)
	if err != nil {
		return nil, err
	}
	for _, ex := range embedExcl {
		obs.AddExclusion(ex)
	}
	exclusions = append(exclusions, embedExcl...)

	// Phase 3: rank and refine.
	obs.SetStatus(StatusRanking, "ranking")
	ranked, err := rank.Rank(queryVec, candidates, rc.TopK)
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}

	obs.SetStatus(StatusRefining, "refining")
	passages, err := r.refiner.Refine(ctx, queryVec, ranked)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrEmbeddingTimeout, err)
		}
		return nil, fmt.Errorf("refine: %w", err)
	}

	meta.ProcessingTimestamp = r.now().UTC()
	rep := report.Assemble(meta, ranked, passages, exclusions, warnings)
	r.log.InfoContext(ctx, "run complete",
		"ranked", len(ranked), "excluded", len(exclusions), "duration_ms", r.now().Sub(start).Milliseconds())
	return &rep, nil
}

type docResult struct {
	sections   []document.Section
	exclusions []document.Exclusion
}

// extractAll parses and structures inputs with bounded concurrency.
// A failing document becomes an exclusion; only ctx cancellation is fatal.
func (r *Runner) extractAll(ctx context.Context, inputs []Input) ([]document.Section, []document.Exclusion, error) {
	results := make([]docResult, len(inputs))

	var g errgroup.Group
	g.SetLimit(r.opts.MaxConcurrentExtract)
	for i, in := range inputs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			doc, err := r.extract(in)
			if err != nil {
				exErr := &ExtractionError{DocumentID: in.Name, Err: err}
				r.log.WarnContext(ctx, "document excluded", "document", in.Name, "error", exErr)
				results[i].exclusions = []document.Exclusion{{
					DocumentID: in.Name,
					Stage:      document.StageExtract,
					Reason:     err.Error(),
				}}
				return nil
			}
			results[i].sections, results[i].exclusions = r.extractor.Extract(*doc, i)
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		sections   []document.Section
		exclusions []document.Exclusion
	)
	for _, res := range results {
		sections = append(sections, res.sections...)
		exclusions = append(exclusions, res.exclusions...)
	}
	return sections, exclusions, nil
}

func (r *Runner) extract(in Input) (*document.Document, error) {
	return parseInput(in, r.opts.Parser)
}

func parseInput(in Input, opts parser.Options) (*document.Document, error) {
	p, err := parser.ForFile(in.Name, opts)
	if err != nil {
		return nil, err
	}
	rc, err := in.Open()
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer rc.Close()

	doc, err := p.Parse(rc, in.Name)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return doc, nil
}

// embedSections embeds every section with bounded concurrency. Failed
// sections become exclusions; a deadline aborts the run.
func (r *Runner) embedSections(ctx context.Context, sections []document.Section) ([]rank.Candidate, []document.Exclusion, error) {
	vecs := make([][]float64, len(sections))
	failures := make([]error, len(sections))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.MaxConcurrentEmbed)
	for i, s := range sections {
		g.Go(func() error {
			vec, err := r.embed(gctx, s.Text())
			if err == nil {
				vecs[i] = vec
				return nil
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%w: %w", ErrEmbeddingTimeout, &EmbeddingError{DocumentID: s.DocumentID, Heading: s.Heading, Err: err})
			}
			failures[i] = &EmbeddingError{DocumentID: s.DocumentID, Heading: s.Heading, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		candidates []rank.Candidate
		exclusions []document.Exclusion
	)
	for i, s := range sections {
		if failures[i] != nil {
			r.log.WarnContext(ctx, "section excluded", "document", s.DocumentID, "section", s.Heading, "error", failures[i])
			exclusions = append(exclusions, document.Exclusion{
				DocumentID: s.DocumentID,
				Heading:    s.Heading,
				Stage:      document.StageEmbed,
				Reason:     errors.Unwrap(failures[i]).Error(),
			})
			continue
		}
		candidates = append(candidates, rank.Candidate{Section: s, Vector: vecs[i]})
	}
	return candidates, exclusions, nil
}

func (r *Runner) embed(ctx context.Context, text string) ([]float64, error) {
	if r.opts.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.EmbedTimeout)
		defer cancel()
	}
	return r.embedder.Embed(ctx, text)
}

func inputNames(inputs []Input) []string {
	names := make([]string, len(inputs))
	for i, in := range inputs {
		names[i] = in.Name
	}
	return names
}

type nopObserver struct{}

func (nopObserver) SetStatus(JobStatus, string)     {}
func (nopObserver) SetCounts(int, int)              {}
func (nopObserver) AddExclusion(document.Exclusion) {}
