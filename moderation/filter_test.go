package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const mask = '*'

// The dictionary uses specific words to avoid partial collisions (e.g., "he" inside "The")
func TestFilter_Mask(t *testing.T) {
	req := require.New(t)
	filter, err := NewFilter([]string{"badger", "snake", "mushroom"}, mask)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Simple word and space preservation",
			input:    "The badger is here",
			expected: "The ****** is here",
			words:    []string{"badger"},
		},
		{
			name:     "Multiple occurrences",
			input:    "badger badger badger",
			expected: "****** ****** ******",
			words:    []string{"badger", "badger", "badger"},
		},
		{
			name:     "Leet speak and internal punctuation",
			input:    "Look at B.4.d.g.€r !",
			expected: "Look at ********** !",
			words:    []string{"badger"},
		},
		{
			name:     "Uppercase and noise",
			input:    "S-N-A-K-E is a B.A.D.G.E.R",
			expected: "********* is a ***********",
			words:    []string{"snake", "badger"},
		},
		{
			name:     "Accents are kept",
			input:    "Un été avec un badger",
			expected: "Un été avec un ******",
			words:    []string{"badger"},
		},
		{
			name:     "Trailing punctuation is kept",
			input:    "I love badger!",
			expected: "I love ******!",
			words:    []string{"badger"},
		},
		{
			name:     "Nothing to mask",
			input:    "Flash Chat is amazing",
			expected: "Flash Chat is amazing",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, words := filter.Mask(tt.input)
			require.Equal(t, tt.expected, content)
			require.Equal(t, tt.words, words)
		})
	}
}

func TestFilter_Ignores_Words_Made_Of_Noise(t *testing.T) {
	req := require.New(t)
	filter, err := NewFilter([]string{"...", ",,,", "", "badger"}, mask)
	req.NoError(err)

	content, words := filter.Mask("Hello ... badger")
	req.Equal("Hello ... ******", content)
	req.Equal([]string{"badger"}, words)
}

func TestFilter_Without_Words_Lets_Everything_Through(t *testing.T) {
	req := require.New(t)
	filter, err := NewFilter(nil, mask)
	req.NoError(err)

	content, words := filter.Mask("badger")
	req.Equal("badger", content)
	req.Nil(words)
}
