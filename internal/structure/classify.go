package structure

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Label is the classification of a single line.
type Label int

const (
	// LabelBody marks section body text.
	LabelBody Label = iota
	// LabelHeading marks a line that opens a new section.
	LabelHeading
)

func (l Label) String() string {
	if l == LabelHeading {
		return "heading"
	}
	return "body"
}

var (
	outlineRe  = regexp.MustCompile(`^(?:\d+(?:\.\d+)*\.?|[A-Z]\.|[IVXLC]+\.)\s+\p{Lu}`)
	keywordRe  = regexp.MustCompile(`^(?i:chapter|section|part|appendix)\s+[\p{L}\p{N}]+\b`)
	rejectedRe = regexp.MustCompile(`^(?i:page\b|figure\b|fig\.|table\b|www\.|https?:)`)
)

var minorWords = map[string]bool{
	"a": true, "an": true, "and": true, "as": true, "at": true, "but": true, "by": true,
	"for": true, "in": true, "of": true, "on": true, "or": true, "the": true, "to": true, "with": true,
}

// Classify labels a line as heading or body. next is the following
// non-blank line on the same page, or "" at the end of the page.
func Classify(line, next string, cfg Config) Label {
	line = strings.TrimSpace(line)
	n := utf8.RuneCountInString(line)
	if n < cfg.MinHeadingLen || n > cfg.MaxHeadingLen {
		return LabelBody
	}
	if !strings.ContainsFunc(line, unicode.IsLetter) || rejectedRe.MatchString(line) {
		return LabelBody
	}

	words := strings.Fields(line)
	switch {
	case isOutline(line, words),
		keywordRe.MatchString(line) && !endsSentence(line),
		isAllCaps(line),
		isTitleCase(line, words),
		isFormLabel(line, words),
		isLeadIn(line, words, next):
		return LabelHeading
	}
	return LabelBody
}

func isOutline(line string, words []string) bool {
	return outlineRe.MatchString(line) && len(words) <= 12 && !endsSentence(line)
}

func isAllCaps(line string) bool {
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 2
}

func isTitleCase(line string, words []string) bool {
	if len(words) > 12 || endsSentence(line) || strings.ContainsAny(line, ",;:") {
		return false
	}
	for i, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		switch {
		case unicode.IsUpper(r):
		case i > 0 && unicode.IsDigit(r):
		case i > 0 && minorWords[strings.ToLower(w)]:
		default:
			return false
		}
	}
	return true
}

func isFormLabel(line string, words []string) bool {
	return strings.HasSuffix(line, ":") && len(words) <= 8
}

// isLeadIn catches short lines introducing denser paragraph text.
func isLeadIn(line string, words []string, next string) bool {
	if len(words) > 6 || endsSentence(line) || strings.HasSuffix(line, ",") {
		return false
	}
	r, _ := utf8.DecodeRuneInString(line)
	if !unicode.IsUpper(r) {
		return false
	}
	return len(strings.Fields(next)) >= 2*len(words)
}

func endsSentence(line string) bool {
	return strings.HasSuffix(line, ".") || strings.HasSuffix(line, "!") || strings.HasSuffix(line, "?") || strings.HasSuffix(line, ";")
}
