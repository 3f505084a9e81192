package parser

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docrank/internal/document"
)

// ErrUnsupportedEncoding is returned for input that is not valid UTF-8.
var ErrUnsupportedEncoding = errors.New("unsupported encoding: input is not valid UTF-8")

// TextParser handles plain text files. Form feeds separate pages.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, ErrUnsupportedEncoding
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return &document.Document{ID: filename, Pages: splitPages(text)}, nil
}

// splitPages splits on form feeds, keeping page numbers aligned with the
// source even when a page is blank.
func splitPages(text string) []document.Page {
	var pages []document.Page
	for i, page := range strings.Split(text, "\f") {
		if strings.TrimSpace(page) == "" {
			continue
		}
		pages = append(pages, document.Page{Number: i + 1, Text: page})
	}
	return pages
}
