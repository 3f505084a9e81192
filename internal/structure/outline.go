package structure

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dgallion1/docrank/internal/document"
)

// Outline is the heading skeleton of one document.
type Outline struct {
	Title   string         `json:"title"`
	Outline []OutlineEntry `json:"outline"`
}

// OutlineEntry is one detected heading.
type OutlineEntry struct {
	Level string `json:"level"`
	Text  string `json:"text"`
	Page  int    `json:"page"`
}

var numberedRe = regexp.MustCompile(`^\d+(?:\.\d+)*`)

// Outline lists every heading in reading order, including headings with
// no body text. The title is the first heading, or the filename stem when
// the document has none.
func (e *Extractor) Outline(doc document.Document) Outline {
	out := Outline{Outline: []OutlineEntry{}}
	for _, p := range doc.Pages {
		lines := nonBlankLines(p.Text)
		for i, ln := range lines {
			next := ""
			if i+1 < len(lines) {
				next = lines[i+1].text
			}
			if Classify(ln.text, next, e.cfg) != LabelHeading {
				continue
			}
			out.Outline = append(out.Outline, OutlineEntry{
				Level: headingLevel(ln.text),
				Text:  ln.text,
				Page:  p.Number,
			})
		}
	}

	if len(out.Outline) > 0 {
		out.Title = out.Outline[0].Text
	} else {
		out.Title = strings.TrimSuffix(doc.ID, filepath.Ext(doc.ID))
	}
	return out
}

// headingLevel maps outline numbering depth to H1..H3; unnumbered
// headings are H1.
func headingLevel(heading string) string {
	num := numberedRe.FindString(heading)
	if num == "" {
		return "H1"
	}
	switch depth := strings.Count(num, ".") + 1; {
	case depth == 2:
		return "H2"
	case depth >= 3:
		return "H3"
	}
	return "H1"
}
