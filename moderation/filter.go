// Package moderation masks forbidden words in message bodies before they
// reach the log.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Filter finds forbidden words with an Aho-Corasick automaton.
//
// Matching runs on a folded copy of the text: lower case, leet characters
// mapped back to letters, punctuation and spaces dropped. "B.4.d.g.€r" thus
// matches "badger". Masking is applied to the input runes.
type Filter struct {
	machine *goahocorasick.Machine
	mask    rune
}

// NewFilter builds a filter for the given words. Words that fold to nothing
// are ignored; with no word left the filter lets everything through.
func NewFilter(words []string, mask rune) (*Filter, error) {
	var patterns [][]rune
	for _, w := range words {
		if folded := foldRunes([]rune(w)); len(folded) > 0 {
			patterns = append(patterns, folded)
		}
	}
	f := &Filter{mask: mask}
	if len(patterns) == 0 {
		return f, nil
	}
	f.machine = new(goahocorasick.Machine)
	if err := f.machine.Build(patterns); err != nil {
		return nil, err
	}
	return f, nil
}

// Mask returns text with every forbidden word replaced by the mask rune,
// plus the words found, in order.
func (f *Filter) Mask(text string) (string, []string) {
	if f.machine == nil || text == "" {
		return text, nil
	}
	runes := []rune(text)
	folded, positions := fold(runes)
	if len(folded) == 0 {
		return text, nil
	}

	var found []string
	for _, term := range f.machine.MultiPatternSearch(folded, false) {
		end := term.Pos + len(term.Word)
		if term.Pos < 0 || end > len(positions) {
			continue
		}
		for i := positions[term.Pos]; i <= positions[end-1]; i++ {
			runes[i] = f.mask
		}
		found = append(found, string(term.Word))
	}
	if len(found) == 0 {
		return text, nil
	}
	return string(runes), found
}

// fold returns the folded runes and, for each of them, its index in the input.
func fold(input []rune) ([]rune, []int) {
	out := make([]rune, 0, len(input))
	positions := make([]int, 0, len(input))
	for i, r := range input {
		if c, ok := foldRune(r); ok {
			out = append(out, c)
			positions = append(positions, i)
		}
	}
	return out, positions
}

func foldRunes(input []rune) []rune {
	out, _ := fold(input)
	return out
}

func foldRune(r rune) (rune, bool) {
	switch r {
	case '4', '@':
		r = 'a'
	case '3', '€':
		r = 'e'
	case '1', '!', '|':
		r = 'i'
	case '0':
		r = 'o'
	case '5', '$':
		r = 's'
	}
	if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
		return 0, false
	}
	return unicode.ToLower(r), true
}
