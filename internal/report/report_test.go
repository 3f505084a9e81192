package report

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docrank/internal/document"
	"github.com/dgallion1/docrank/internal/refine"
)

func TestAssembleAndWrite(t *testing.T) {
	methods := document.Section{DocumentID: "a.pdf", Heading: "Methods", Body: "We used Y.", Page: 1}
	empty := document.Section{DocumentID: "b.pdf", Heading: "Page 2", Body: "...", Page: 2, Synthetic: true}
	meta := Metadata{
		RunID:               "run-1",
		InputDocuments:      []string{"a.pdf", "b.pdf"},
		Persona:             "Researcher",
		JobToBeDone:         "find methods",
		Query:               "Researcher find methods",
		TopK:                2,
		Embedder:            "tfidf",
		ProcessingTimestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	ranked := []document.RankedResult{
		{Section: methods, Score: 0.75, Rank: 1},
		{Section: empty, Score: math.Inf(-1), Rank: 2},
	}
	passages := []refine.Passage{{Section: methods, Rank: 1, Text: "We used Y."}}
	excl := []document.Exclusion{{DocumentID: "c.pdf", Stage: document.StageExtract, Reason: "corrupt"}}

	r := Assemble(meta, ranked, passages, excl, []string{"only 2 documents supplied"})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, r))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	sections := decoded["extracted_sections"].([]any)
	require.Len(t, sections, 2)
	first := sections[0].(map[string]any)
	assert.Equal(t, "Methods", first["section_title"])
	assert.Equal(t, float64(1), first["importance_rank"])
	assert.Equal(t, 0.75, first["score"])
	assert.Nil(t, sections[1].(map[string]any)["score"])

	sub := decoded["subsection_analysis"].([]any)
	require.Len(t, sub, 1)
	assert.Equal(t, "We used Y.", sub[0].(map[string]any)["refined_text"])

	ex := decoded["excluded"].([]any)[0].(map[string]any)
	assert.Equal(t, "extract", ex["stage"])
	_, hasTitle := ex["section_title"]
	assert.False(t, hasTitle)

	md := decoded["metadata"].(map[string]any)
	assert.Equal(t, "2025-01-02T03:04:05Z", md["processing_timestamp"])
	assert.Equal(t, "Researcher find methods", md["query"])
	assert.True(t, strings.Contains(buf.String(), "\n  \"metadata\""))
}

func TestAssemble_EmptyRunEncodesEmptyArrays(t *testing.T) {
	r := Assemble(Metadata{RunID: "x"}, nil, nil, nil, nil)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, r))
	out := buf.String()
	for _, key := range []string{"extracted_sections", "subsection_analysis", "excluded", "warnings", "input_documents"} {
		assert.Contains(t, out, "\""+key+"\": []")
	}
}

func TestScore_RoundTrip(t *testing.T) {
	var r Report
	data := `{"extracted_sections":[{"score":null},{"score":0.5}]}`
	require.NoError(t, json.Unmarshal([]byte(data), &r))
	assert.True(t, math.IsInf(float64(r.ExtractedSections[0].Score), -1))
	assert.Equal(t, Score(0.5), r.ExtractedSections[1].Score)
}
