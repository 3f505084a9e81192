// Package query turns a persona and a job-to-be-done into the text that
// sections are ranked against.
package query

import "strings"

// Persona describes who is reading. Any field may be empty.
type Persona struct {
	Role      string `json:"role" yaml:"role"`
	Expertise string `json:"expertise,omitempty" yaml:"expertise"`
	Focus     string `json:"focus,omitempty" yaml:"focus"`
}

// IsZero reports whether the persona carries no text.
func (p Persona) IsZero() bool {
	return strings.TrimSpace(p.Role+p.Expertise+p.Focus) == ""
}

// String renders the persona as one line for reports.
func (p Persona) String() string {
	return join(p.Role, p.Expertise, p.Focus)
}

// Build concatenates role, expertise, focus and job in that order,
// skipping empty parts and collapsing whitespace. It never truncates.
func Build(p Persona, job string) string {
	return join(p.Role, p.Expertise, p.Focus, job)
}

func join(parts ...string) string {
	var words []string
	for _, part := range parts {
		words = append(words, strings.Fields(part)...)
	}
	return strings.Join(words, " ")
}
