package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkCount(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  int
		ok    bool
	}{
		{"digits", "3", 3, true},
		{"count times", "2X", 2, true},
		{"lowercase count times", "2x", 2, true},
		{"tally x", "XXX", 3, true},
		{"single x", "x", 1, true},
		{"check marks", "✔✔", 2, true},
		{"light check", "✓", 1, true},
		{"typed int", 4, 4, true},
		{"typed float", float64(2), 2, true},
		{"empty", "", 0, false},
		{"nil", nil, 0, false},
		{"noise", "??", 0, false},
		{"mixed noise", "2XX", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MarkCount(tt.input)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
