package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name    string
		persona Persona
		job     string
		want    string
	}{
		{"role and job", Persona{Role: "Researcher"}, "find methods", "Researcher find methods"},
		{"full persona", Persona{Role: "Analyst", Expertise: "finance", Focus: "risk"}, "summarise exposure", "Analyst finance risk summarise exposure"},
		{"skips empty parts", Persona{Role: "Chef", Focus: ""}, "plan a menu", "Chef plan a menu"},
		{"collapses whitespace", Persona{Role: "  Travel \t planner\n"}, "  plan  a\ntrip ", "Travel planner plan a trip"},
		{"job only", Persona{}, "plan a trip", "plan a trip"},
		{"empty", Persona{}, "  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Build(tt.persona, tt.job))
		})
	}
}

func TestBuild_Deterministic(t *testing.T) {
	p := Persona{Role: "HR professional", Expertise: "onboarding"}
	assert.Equal(t, Build(p, "create forms"), Build(p, "create forms"))
}

func TestBuild_NoTruncation(t *testing.T) {
	job := strings.Repeat("word ", 5000)
	got := Build(Persona{Role: "Reader"}, job)
	assert.Len(t, strings.Fields(got), 5001)
}

func TestPersona_IsZero(t *testing.T) {
	assert.True(t, Persona{}.IsZero())
	assert.True(t, Persona{Role: "  "}.IsZero())
	assert.False(t, Persona{Focus: "x"}.IsZero())
	assert.Equal(t, "Analyst finance", Persona{Role: "Analyst", Expertise: "finance"}.String())
}
