// Package report assembles and writes the output of a ranking run.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/dgallion1/docrank/internal/document"
	"github.com/dgallion1/docrank/internal/refine"
)

// Metadata describes the run that produced a report.
type Metadata struct {
	RunID               string    `json:"run_id"`
	InputDocuments      []string  `json:"input_documents"`
	Persona             string    `json:"persona"`
	JobToBeDone         string    `json:"job_to_be_done"`
	Query               string    `json:"query"`
	TopK                int       `json:"top_k"`
	Embedder            string    `json:"embedder"`
	ProcessingTimestamp time.Time `json:"processing_timestamp"`
}

// Score is a similarity that encodes as null when undefined.
type Score float64

func (s Score) MarshalJSON() ([]byte, error) {
	f := float64(s)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func (s *Score) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Score(math.Inf(-1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = Score(f)
	return nil
}

// ExtractedSection is one ranked section.
type ExtractedSection struct {
	Document       string `json:"document"`
	SectionTitle   string `json:"section_title"`
	PageNumber     int    `json:"page_number"`
	ImportanceRank int    `json:"importance_rank"`
	Score          Score  `json:"score"`
}

// SubsectionAnalysis is the refined passage of a ranked section.
type SubsectionAnalysis struct {
	Document     string `json:"document"`
	SectionTitle string `json:"section_title"`
	RefinedText  string `json:"refined_text"`
	PageNumber   int    `json:"page_number"`
}

// Excluded records an input dropped from ranking.
type Excluded struct {
	Document     string `json:"document"`
	SectionTitle string `json:"section_title,omitempty"`
	Stage        string `json:"stage"`
	Reason       string `json:"reason"`
}

// Report is the output record of a run.
type Report struct {
	Metadata           Metadata             `json:"metadata"`
	ExtractedSections  []ExtractedSection   `json:"extracted_sections"`
	SubsectionAnalysis []SubsectionAnalysis `json:"subsection_analysis"`
	Excluded           []Excluded           `json:"excluded"`
	Warnings           []string             `json:"warnings"`
}

// Assemble builds a report. Slices are never nil so empty runs encode as [].
func Assemble(meta Metadata, ranked []document.RankedResult, passages []refine.Passage, exclusions []document.Exclusion, warnings []string) Report {
	r := Report{
		Metadata:           meta,
		ExtractedSections:  make([]ExtractedSection, 0, len(ranked)),
		SubsectionAnalysis: make([]SubsectionAnalysis, 0, len(passages)),
		Excluded:           make([]Excluded, 0, len(exclusions)),
		Warnings:           append([]string{}, warnings...),
	}
	if r.Metadata.InputDocuments == nil {
		r.Metadata.InputDocuments = []string{}
	}

	for _, res := range ranked {
		r.ExtractedSections = append(r.ExtractedSections, ExtractedSection{
			Document:       res.Section.DocumentID,
			SectionTitle:   res.Section.Heading,
			PageNumber:     res.Section.Page,
			ImportanceRank: res.Rank,
			Score:          Score(res.Score),
		})
	}
	for _, p := range passages {
		r.SubsectionAnalysis = append(r.SubsectionAnalysis, SubsectionAnalysis{
			Document:     p.Section.DocumentID,
			SectionTitle: p.Section.Heading,
			RefinedText:  p.Text,
			PageNumber:   p.Section.Page,
		})
	}
	for _, ex := range exclusions {
		r.Excluded = append(r.Excluded, Excluded{
			Document:     ex.DocumentID,
			SectionTitle: ex.Heading,
			Stage:        string(ex.Stage),
			Reason:       ex.Reason,
		})
	}
	return r
}

// Write encodes r as indented JSON.
func Write(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
