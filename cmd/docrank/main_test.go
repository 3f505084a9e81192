package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docrank/internal/config"
	"github.com/dgallion1/docrank/internal/logger"
	"github.com/dgallion1/docrank/internal/pipeline"
	"github.com/dgallion1/docrank/internal/report"
	"github.com/dgallion1/docrank/internal/structure"
)

func testConfig() config.Config {
	return config.Config{
		Embedder:             "tfidf",
		EmbedTimeout:         5 * time.Second,
		StatsWindow:          time.Hour,
		RefineTokens:         120,
		DefaultTopK:          5,
		HeadingMinLen:        3,
		HeadingMaxLen:        150,
		MaxConcurrentExtract: 2,
		MaxConcurrentEmbed:   2,
	}
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestCollectInputs_SortsSupportedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "x")
	writeFile(t, dir, "a.md", "x")
	writeFile(t, dir, "persona_config.json", "{}")
	writeFile(t, dir, "image.png", "x")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755))

	inputs, err := collectInputs(dir, nil)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "a.md", inputs[0].Name)
	assert.Equal(t, "b.txt", inputs[1].Name)
}

func TestCollectInputs_FilterKeepsOrder(t *testing.T) {
	inputs, err := collectInputs(t.TempDir(), []string{"z.pdf", "a.pdf"})
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "z.pdf", inputs[0].Name)
	assert.Equal(t, "a.pdf", inputs[1].Name)
}

func TestCollectInputs_EmptyDir(t *testing.T) {
	_, err := collectInputs(t.TempDir(), nil)
	assert.ErrorIs(t, err, pipeline.ErrNoInputs)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRun_WritesReport(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFile(t, in, "persona_config.json", `{
  "persona": {"role": "Food Contractor"},
  "job_to_be_done": {"task": "Prepare a vegetarian buffet menu"},
  "documents": [{"filename": "dinner.txt"}, {"filename": "lunch.txt"}, {"filename": "missing.txt"}]
}`)
	writeFile(t, in, "dinner.txt", "Vegetarian Lasagna\nLayer pasta with spinach, ricotta and tomato sauce.\nBeef Stew\nBrown the beef and simmer for two hours.")
	writeFile(t, in, "lunch.txt", "Falafel Wraps\nA vegetarian buffet favourite with chickpeas and tahini.\nChicken Salad\nGrilled chicken over greens.")
	writeFile(t, in, "ignored.txt", "Not Listed\nThis file is not in the document filter.")

	require.NoError(t, run(context.Background(), testConfig(), logger.New(io.Discard, "error"), in, out, "", 2))

	data, err := os.ReadFile(filepath.Join(out, outputName))
	require.NoError(t, err)
	var rep report.Report
	require.NoError(t, json.Unmarshal(data, &rep))

	assert.Equal(t, []string{"dinner.txt", "lunch.txt", "missing.txt"}, rep.Metadata.InputDocuments)
	assert.Equal(t, 2, rep.Metadata.TopK)
	require.Len(t, rep.ExtractedSections, 2)
	for _, s := range rep.ExtractedSections {
		assert.Contains(t, []string{"Vegetarian Lasagna", "Falafel Wraps"}, s.SectionTitle)
	}
	require.Len(t, rep.Excluded, 1)
	assert.Equal(t, "missing.txt", rep.Excluded[0].Document)
	assert.Equal(t, "extract", rep.Excluded[0].Stage)
}

func TestRun_ExplicitConfigMissing(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, "notes.txt", "Summary\nSome text.")
	err := run(context.Background(), testConfig(), logger.New(io.Discard, "error"), in, t.TempDir(), filepath.Join(in, "nope.json"), 0)
	assert.Error(t, err)
}

func TestRun_OutlineWithoutConfig(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFile(t, in, "guide.txt", "Travel Guide\nAn overview of the region.\n1. Getting There\nTrains run hourly.\f2.1 By Air\nThe airport is small.\nNotes")
	writeFile(t, in, "plain.txt", "just some lowercase prose without any heading at all.")

	require.NoError(t, run(context.Background(), testConfig(), logger.New(io.Discard, "error"), in, out, "", 0))

	_, err := os.Stat(filepath.Join(out, outputName))
	assert.ErrorIs(t, err, os.ErrNotExist)

	var guide structure.Outline
	data, err := os.ReadFile(filepath.Join(out, "guide.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &guide))
	assert.Equal(t, "Travel Guide", guide.Title)
	assert.Equal(t, []structure.OutlineEntry{
		{Level: "H1", Text: "Travel Guide", Page: 1},
		{Level: "H1", Text: "1. Getting There", Page: 1},
		{Level: "H2", Text: "2.1 By Air", Page: 2},
		{Level: "H1", Text: "Notes", Page: 2},
	}, guide.Outline)

	var plain structure.Outline
	data, err = os.ReadFile(filepath.Join(out, "plain.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &plain))
	assert.Equal(t, "plain", plain.Title)
	assert.Empty(t, plain.Outline)
}

func TestRun_OutlineEmptyDir(t *testing.T) {
	err := run(context.Background(), testConfig(), logger.New(io.Discard, "error"), t.TempDir(), t.TempDir(), "", 0)
	assert.ErrorIs(t, err, pipeline.ErrNoInputs)
}
