// Package document holds the data model shared by the ranking pipeline:
// loaded documents, their sections and the results derived from them.
package document

import "strings"

// Document is a loaded input file split into pages.
type Document struct {
	ID    string // Source filename
	Pages []Page
}

// Page is the raw text of a single page.
type Page struct {
	Number int // 1-based
	Text   string
}

// HasText reports whether any page carries non-whitespace text.
func (d Document) HasText() bool {
	for _, p := range d.Pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}

// Section is a heading-delimited unit of document text, the atomic unit of ranking.
type Section struct {
	Heading    string // Section heading, or "Page N" when synthetic
	Body       string // Never empty for a section that survives extraction
	DocumentID string
	Page       int
	DocIndex   int // Document order within the run
	Position   int // Section order within the document
	Synthetic  bool
}

// Text is what gets embedded for the section.
func (s Section) Text() string {
	if s.Synthetic || s.Heading == "" {
		return s.Body
	}
	return s.Heading + "\n" + s.Body
}

// RankedResult is a section with its similarity to the query.
type RankedResult struct {
	Section Section
	Score   float64 // -Inf when the section vector has zero magnitude
	Rank    int     // 1-based
}

// Stage names the pipeline step an exclusion happened in.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageStructure Stage = "structure"
	StageEmbed     Stage = "embed"
)

// Exclusion records an input dropped from the run and why.
type Exclusion struct {
	DocumentID string
	Heading    string // Empty for document-level exclusions
	Stage      Stage
	Reason     string
}
