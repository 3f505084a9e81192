// Command docrank ranks the sections of a document collection against a
// persona and a job to be done, writing persona_analysis.json. Without a
// run config it writes a heading outline per document instead.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/dgallion1/docrank/internal/config"
	"github.com/dgallion1/docrank/internal/embedding"
	"github.com/dgallion1/docrank/internal/logger"
	"github.com/dgallion1/docrank/internal/parser"
	"github.com/dgallion1/docrank/internal/pipeline"
	"github.com/dgallion1/docrank/internal/report"
)

const (
	defaultConfigName = "persona_config.json"
	outputName        = "persona_analysis.json"
)

func main() {
	var (
		inputDir   = flag.String("input", "./input", "directory containing the documents")
		outputDir  = flag.String("output", "./output", "directory to write "+outputName+" to")
		configPath = flag.String("config", "", "run config (JSON or YAML); defaults to <input>/"+defaultConfigName)
		topK       = flag.Int("top-k", 0, "number of sections to report; overrides the run config")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "docrank:", err)
		os.Exit(1)
	}
	log := logger.New(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *inputDir, *outputDir, *configPath, *topK); err != nil {
		log.Error("run failed", "error", err)
		os.Exit(1)
	}
}

// run ranks sections when a run config is present. Without -config and
// without <input>/persona_config.json it writes one outline per document.
func run(ctx context.Context, cfg config.Config, log *slog.Logger, inputDir, outputDir, configPath string, topK int) error {
	if configPath == "" {
		configPath = filepath.Join(inputDir, defaultConfigName)
		if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
			return runOutline(ctx, cfg, log, inputDir, outputDir)
		}
	}
	rc, err := config.LoadRunConfig(configPath)
	if err != nil {
		return err
	}
	if topK != 0 {
		rc.TopK = topK
	}
	rc = rc.WithDefaults(cfg.DefaultTopK)

	inputs, err := collectInputs(inputDir, rc.Documents)
	if err != nil {
		return err
	}

	e, err := embedding.New(ctx, cfg.EmbedderOptions())
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}
	if c, ok := e.(io.Closer); ok {
		defer c.Close()
	}

	stats := embedding.NewStats(cfg.StatsWindow)
	runner := pipeline.NewRunner(e, pipeline.OptionsFromConfig(cfg, stats), log)

	rep, err := runner.Run(ctx, rc, inputs)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	outPath := filepath.Join(outputDir, outputName)
	if err := writeReport(outPath, rep); err != nil {
		return err
	}

	s := stats.Snapshot()
	log.Info("report written",
		"run_id", rep.Metadata.RunID,
		"path", outPath,
		"sections", len(rep.ExtractedSections),
		"excluded", len(rep.Excluded),
		"embed_calls", s.Count,
		"embed_p95_ms", s.P95Ms,
	)
	return nil
}

// runOutline writes <stem>.json with the title and headings of every
// supported document in inputDir.
func runOutline(ctx context.Context, cfg config.Config, log *slog.Logger, inputDir, outputDir string) error {
	inputs, err := collectInputs(inputDir, nil)
	if err != nil {
		return err
	}
	log.Info("no run config found, extracting outlines", "documents", len(inputs))

	results, err := pipeline.ExtractOutlines(ctx, inputs, pipeline.OptionsFromConfig(cfg, nil), log)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	written := 0
	for _, res := range results {
		if res.Exclusion != nil {
			log.Warn("outline skipped", "document", res.Name, "reason", res.Exclusion.Reason)
			continue
		}
		stem := strings.TrimSuffix(res.Name, filepath.Ext(res.Name))
		outPath := filepath.Join(outputDir, stem+".json")
		if err := writeJSON(outPath, res.Outline); err != nil {
			return err
		}
		written++
		log.Info("outline written", "path", outPath, "headings", len(res.Outline.Outline))
	}
	if written == 0 {
		return fmt.Errorf("no outline could be extracted from %d documents", len(results))
	}
	return nil
}

// collectInputs resolves the documents of a run. A non-empty filter lists
// files by name; missing ones surface as extraction exclusions.
func collectInputs(dir string, filter []string) ([]pipeline.Input, error) {
	var names []string
	if len(filter) > 0 {
		names = filter
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read input dir: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !parser.IsSupportedExtension(entry.Name()) {
				continue
			}
			names = append(names, entry.Name())
		}
		sort.Strings(names)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no supported documents in %s", pipeline.ErrNoInputs, dir)
	}

	inputs := make([]pipeline.Input, 0, len(names))
	for _, name := range names {
		inputs = append(inputs, pipeline.FileInput(filepath.Join(dir, filepath.Base(name))))
	}
	return inputs, nil
}

func writeReport(path string, rep *report.Report) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close report: %w", cerr)
		}
	}()
	if err := report.Write(f, *rep); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
