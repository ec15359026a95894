package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "type": "object",
  "required": ["budget"],
  "properties": {
    "budget": {"type": "number", "minimum": 0},
    "timeline": {"type": "string", "enum": ["immediate", "near-term", "flexible"]}
  }
}`

func TestSchema_ValidateBytes(t *testing.T) {
	s := MustCompile(testSchema)

	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"valid", `{"budget": 5000, "timeline": "flexible"}`, false},
		{"missing required", `{"timeline": "flexible"}`, true},
		{"bad enum", `{"budget": 1, "timeline": "someday"}`, true},
		{"negative", `{"budget": -1}`, true},
		{"not json", `{`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ValidateBytes([]byte(tt.doc))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSchema_ValidateGo(t *testing.T) {
	s := MustCompile(testSchema)
	require.NoError(t, s.ValidateGo(map[string]interface{}{"budget": 4200.0}))
	assert.Error(t, s.ValidateGo(map[string]interface{}{"budget": "cheap"}))
}

func TestCompile_Malformed(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompile(`not a schema`) })
}
