package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEquipe(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
		ok    bool
	}{
		{"int", 7, "VII", true},
		{"float", float64(3), "III", true},
		{"digit string", "7", "VII", true},
		{"ten", "10", "X", true},
		{"already roman", "IV", "IV", true},
		{"lowercase roman", "ix", "IX", true},
		{"labelled", "Equipe 2", "II", true},
		{"accented label", "Équipe 2", "II", true},
		{"team label", "TEAM 5", "V", true},
		{"out of range int", 11, "", false},
		{"zero", 0, "", false},
		{"free text", "Team A", "", false},
		{"nil", nil, "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Equipe(tt.input)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUAP(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
		ok    bool
	}{
		{"int", 42, "42", true},
		{"float", float64(7), "7", true},
		{"digits", "042", "042", true},
		{"prefixed", "UAP042", "042", true},
		{"prefixed with space", "UAP 4", "4", true},
		{"decimal point stripped", "0.4", "04", true},
		{"lowercase prefix", "uap12", "12", true},
		{"too long", "1234", "", false},
		{"no digits", "UAP", "", false},
		{"zero", 0, "", false},
		{"thousand", 1000, "", false},
		{"nil", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := UAP(tt.input)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  any
		ok    bool
	}{
		{"int string", "12", 12, true},
		{"comma decimal", "12,5", 12.5, true},
		{"thousands space", "1 234,5", 1234.5, true},
		{"integral float", float64(3), 3, true},
		{"negative", "-4", -4, true},
		{"text", "abc", nil, false},
		{"mixed", "12a", nil, false},
		{"nil", nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Number(tt.input)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
