// Package structure turns raw per-page text into heading-delimited sections.
package structure

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docrank/internal/document"
)

// Config bounds heading detection.
type Config struct {
	MinHeadingLen int
	MaxHeadingLen int
}

// DefaultConfig returns the standard heading length bounds.
func DefaultConfig() Config {
	return Config{MinHeadingLen: 3, MaxHeadingLen: 150}
}

// Extractor splits documents into sections. It holds no mutable state
// and is safe for concurrent use.
type Extractor struct {
	cfg Config
}

// NewExtractor creates an extractor. Zero bounds fall back to the defaults.
func NewExtractor(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.MinHeadingLen <= 0 {
		cfg.MinHeadingLen = def.MinHeadingLen
	}
	if cfg.MaxHeadingLen <= 0 {
		cfg.MaxHeadingLen = def.MaxHeadingLen
	}
	return &Extractor{cfg: cfg}
}

type openSection struct {
	heading string
	page    int
	body    []string
}

// Extract returns the document's sections in reading order. A document
// that yields no body text contributes no sections and one exclusion.
func (e *Extractor) Extract(doc document.Document, docIndex int) ([]document.Section, []document.Exclusion) {
	if !doc.HasText() {
		return nil, []document.Exclusion{{
			DocumentID: doc.ID,
			Stage:      document.StageStructure,
			Reason:     "document contains no extractable text",
		}}
	}

	var (
		sections []document.Section
		pending  *openSection // empty-bodied heading ending the previous page
	)
	emit := func(heading, body string, page int, synthetic bool) {
		sections = append(sections, document.Section{
			Heading:    heading,
			Body:       body,
			DocumentID: doc.ID,
			Page:       page,
			DocIndex:   docIndex,
			Position:   len(sections),
			Synthetic:  synthetic,
		})
	}
	// orphan places body text found before the first heading of a page.
	orphan := func(body string, page int) {
		if body == "" {
			return
		}
		if pending != nil {
			emit(pending.heading, body, page, false)
			return
		}
		emit(pageTitle(page), body, page, true)
	}

	for _, p := range doc.Pages {
		lines := nonBlankLines(p.Text)
		if len(lines) == 0 {
			continue
		}

		var (
			cur        *openSection
			orphans    []string
			sawHeading bool
		)
		for i, ln := range lines {
			next := ""
			if i+1 < len(lines) {
				next = lines[i+1].text
			}
			if Classify(ln.text, next, e.cfg) != LabelHeading {
				if cur == nil {
					orphans = appendBody(orphans, ln)
				} else {
					cur.body = appendBody(cur.body, ln)
				}
				continue
			}

			if !sawHeading {
				sawHeading = true
				orphan(strings.Join(orphans, "\n"), p.Number)
				pending = nil
			}
			if cur != nil && len(cur.body) > 0 {
				emit(cur.heading, strings.Join(cur.body, "\n"), cur.page, false)
			}
			cur = &openSection{heading: ln.text, page: p.Number}
		}

		if !sawHeading {
			orphan(strings.TrimSpace(p.Text), p.Number)
			pending = nil
			continue
		}
		if len(cur.body) > 0 {
			emit(cur.heading, strings.Join(cur.body, "\n"), cur.page, false)
		} else {
			pending = cur
		}
	}

	if len(sections) == 0 {
		return nil, []document.Exclusion{{
			DocumentID: doc.ID,
			Stage:      document.StageStructure,
			Reason:     "document contains headings but no body text",
		}}
	}
	return sections, nil
}

func pageTitle(n int) string {
	return fmt.Sprintf("Page %d", n)
}

type line struct {
	text       string
	afterBlank bool // a blank line precedes it on the page
}

func nonBlankLines(text string) []line {
	var (
		out   []line
		blank bool
	)
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l == "" {
			blank = true
			continue
		}
		out = append(out, line{text: l, afterBlank: blank})
		blank = false
	}
	return out
}

// appendBody adds ln to a body, keeping one empty line where a blank line
// separated it from the previous body line so paragraphs survive the join.
func appendBody(body []string, ln line) []string {
	if ln.afterBlank && len(body) > 0 {
		body = append(body, "")
	}
	return append(body, ln.text)
}
