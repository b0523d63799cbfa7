package tutor

import (
	"fmt"
	"unicode"
)

const (
	defaultChunkSize  = 20000
	chunkBeforeMatch  = 2000
	chunkAfterMatch   = 15000
	notFoundChunkSize = 15000
)

// ExtractRelevantChunk trims a large document down to the part worth
// sending to the model. With a focus topic it returns a window around the
// first case-insensitive match.
func ExtractRelevantChunk(fullText, focusTopic string) string {
	text := []rune(fullText)
	focus := []rune(focusTopic)
	if len(trimSpace(focus)) == 0 {
		return string(text[:min(len(text), defaultChunkSize)])
	}

	idx := indexFold(text, focus)
	if idx < 0 {
		return "NOTE: 'Focus Topic' not found in text. Showing Introduction.\n\n" +
			string(text[:min(len(text), notFoundChunkSize)])
	}

	start := max(0, idx-chunkBeforeMatch)
	end := min(len(text), idx+chunkAfterMatch)
	return fmt.Sprintf("...Context found for '%s'...\n", focusTopic) + string(text[start:end])
}

// indexFold is a rune-wise case-insensitive index, so the result can be
// used directly on the original text.
func indexFold(text, sub []rune) int {
	if len(sub) > len(text) {
		return -1
	}
outer:
	for i := 0; i+len(sub) <= len(text); i++ {
		for j, r := range sub {
			if unicode.ToLower(text[i+j]) != unicode.ToLower(r) {
				continue outer
			}
		}
		return i
	}
	return -1
}

func trimSpace(r []rune) []rune {
	for len(r) > 0 && unicode.IsSpace(r[0]) {
		r = r[1:]
	}
	for len(r) > 0 && unicode.IsSpace(r[len(r)-1]) {
		r = r[:len(r)-1]
	}
	return r
}
