package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docrank/internal/query"
)

func TestParseRunConfig_JSONObjects(t *testing.T) {
	data := []byte(`{
  "challenge_info": {"challenge_id": "round_1b_002"},
  "documents": [{"filename": "a.pdf", "title": "A"}, {"filename": "b.pdf"}],
  "persona": {"role": "Travel Planner"},
  "job_to_be_done": {"task": "Plan a trip of 4 days"}
}`)

	rc, err := ParseRunConfig(data)
	require.NoError(t, err)
	assert.Equal(t, query.Persona{Role: "Travel Planner"}, rc.Persona)
	assert.Equal(t, "Plan a trip of 4 days", rc.JobToBeDone)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, rc.Documents)
	assert.Equal(t, 0, rc.TopK)
	assert.Equal(t, 5, rc.WithDefaults(5).TopK)
}

func TestParseRunConfig_YAMLStrings(t *testing.T) {
	data := []byte(`
persona: Researcher
job_to_be_done: find methods
top_k: 3
documents:
  - a.pdf
`)
	rc, err := ParseRunConfig(data)
	require.NoError(t, err)
	assert.Equal(t, "Researcher", rc.Persona.Role)
	assert.Equal(t, "find methods", rc.JobToBeDone)
	assert.Equal(t, 3, rc.WithDefaults(5).TopK)
	assert.Equal(t, []string{"a.pdf"}, rc.Documents)
	assert.NoError(t, rc.Validate())
}

func TestParseRunConfig_FullPersona(t *testing.T) {
	data := []byte(`persona: {role: Analyst, expertise: finance, focus: risk}
job_to_be_done: summarise`)
	rc, err := ParseRunConfig(data)
	require.NoError(t, err)
	assert.Equal(t, query.Persona{Role: "Analyst", Expertise: "finance", Focus: "risk"}, rc.Persona)
}

func TestParseRunConfig_Malformed(t *testing.T) {
	_, err := ParseRunConfig([]byte(`persona: [a, b]`))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParseRunConfig([]byte(`{not yaml`))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunConfig_Validate(t *testing.T) {
	ok := RunConfig{Persona: query.Persona{Role: "r"}, JobToBeDone: "j", TopK: 1}
	assert.NoError(t, ok.Validate())

	tests := map[string]RunConfig{
		"missing persona": {JobToBeDone: "j", TopK: 1},
		"blank job":       {Persona: query.Persona{Role: "r"}, JobToBeDone: "  ", TopK: 1},
		"zero k":          {Persona: query.Persona{Role: "r"}, JobToBeDone: "j"},
		"negative k":      {Persona: query.Persona{Role: "r"}, JobToBeDone: "j", TopK: -2},
	}
	for name, rc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, rc.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadRunConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"persona":"HR professional","job_to_be_done":"create forms","top_k":4}`), 0o644))

	rc, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "HR professional", rc.Persona.Role)
	assert.Equal(t, 4, rc.TopK)

	_, err = LoadRunConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
