// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantID string
		wantOK bool
	}{
		{"url form", "https://openalex.org/W123456789", "W123456789", true},
		{"bare form", "W123456789", "W123456789", true},
		{"api url", "https://api.openalex.org/works/W42", "W42", true},
		{"multiple ids keeps first", "W1 W2", "W1", true},
		{"surrounding noise", "  id=W77;  ", "W77", true},
		{"empty", "", "", false},
		{"no match", "https://doi.org/10.1145/1234", "", false},
		{"letter without digits", "W", "", false},
		{"other entity letter", "A5023888391", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, got)
		})
	}
}

func TestNormalize_URLAndBareAgree(t *testing.T) {
	a, _ := Normalize("https://openalex.org/W123456789")
	b, _ := Normalize("W123456789")
	assert.Equal(t, "W123456789", a)
	assert.Equal(t, a, b)
}

func TestParseReferences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"python style", "['https://openalex.org/W1', 'https://openalex.org/W2']", []string{"W1", "W2"}},
		{"json style", `["W3", "W4"]`, []string{"W3", "W4"}},
		{"mixed quotes and spacing", "[ 'W5' ,\"W6\"\n]", []string{"W5", "W6"}},
		{"trailing comma", "['W7',]", []string{"W7"}},
		{"drops non identifiers", "['W8', 'https://doi.org/10.1/x', '']", []string{"W8"}},
		{"escaped quote", `['it\'s W9']`, []string{"W9"}},
		{"order preserved", "['W3', 'W1', 'W2']", []string{"W3", "W1", "W2"}},
		{"skips None", "['W1', None]", []string{"W1"}},
		{"skips scalars", "[None, 'W2', 3, -1.5, null, True]", []string{"W2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReferences(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReferences_EmptyInputs(t *testing.T) {
	for _, input := range []string{"", "   ", "[]", "[ ]", "[None]", "[1, 2]"} {
		t.Run(input, func(t *testing.T) {
			got, err := ParseReferences(input)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestParseReferences_Malformed(t *testing.T) {
	for _, input := range []string{
		"{broken",
		"['W1'",
		"['W1' 'W2']",
		"[,]",
		"[W1, W2]",
		"['unterminated]",
		"['W1', Nonesuch]",
	} {
		t.Run(input, func(t *testing.T) {
			got, err := ParseReferences(input)
			assert.ErrorIs(t, err, ErrMalformedList)
			assert.Empty(t, got)
		})
	}
}
