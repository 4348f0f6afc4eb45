// Package chunking splits transcript text into bounded, overlapping chunks
// that break on sentence and paragraph boundaries where possible.
package chunking

import (
	"sort"
	"strings"
	"unicode"

	"github.com/nijaru/yt-chat/errors"
	"github.com/nijaru/yt-chat/models"
)

// Chunk splits text into chunks of at most maxChunkChars runes. Every chunk
// after the first starts with the trailing overlapChars runes of the chunk
// before it. Sentences are never broken unless a single sentence exceeds the
// budget, in which case it is cut at the last word boundary that fits, or at
// the rune limit when a single word is longer than the budget.
func Chunk(text string, maxChunkChars, overlapChars int) ([]models.TranscriptChunk, error) {
	const op = "chunking.Chunk"

	if strings.TrimSpace(text) == "" {
		return nil, errors.InvalidInput(op, nil, "Transcript text is empty")
	}
	if maxChunkChars <= 0 {
		return nil, errors.InvalidInput(op, nil, "Chunk size must be greater than 0")
	}
	if overlapChars < 0 || overlapChars >= maxChunkChars {
		return nil, errors.InvalidInput(op, nil, "Chunk overlap must be between 0 and chunk size")
	}

	runes := []rune(text)
	ends := unitEnds(runes)

	var chunks []models.TranscriptChunk
	pos := 0
	for pos < len(runes) {
		overlap := 0
		if n := len(chunks); n > 0 {
			prev := chunks[n-1]
			overlap = min(overlapChars, prev.EndOffset-prev.StartOffset)
		}

		end := nextCut(runes, ends, pos, maxChunkChars-overlap)
		start := pos - overlap
		chunks = append(chunks, models.TranscriptChunk{
			Index:       len(chunks),
			Text:        string(runes[start:end]),
			StartOffset: start,
			EndOffset:   end,
		})
		pos = end
	}

	return chunks, nil
}

// Reconstruct concatenates chunks with their overlap prefixes removed.
func Reconstruct(chunks []models.TranscriptChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i == 0 {
			b.WriteString(c.Text)
			continue
		}
		skip := chunks[i-1].EndOffset - c.StartOffset
		b.WriteString(string([]rune(c.Text)[skip:]))
	}
	return b.String()
}

// nextCut returns the end of the chunk whose new text starts at pos and may
// hold up to budget runes.
func nextCut(runes []rune, ends []int, pos, budget int) int {
	limit := pos + budget
	if limit >= len(runes) {
		return len(runes)
	}
	// Trailing whitespace stays with the last chunk.
	if !hasText(runes[limit:]) {
		return len(runes)
	}

	// Largest sentence or paragraph end that fits.
	if i := sort.SearchInts(ends, limit+1) - 1; i >= 0 && ends[i] > pos {
		return ends[i]
	}

	// Last word boundary that fits and leaves a non-blank piece.
	for c := limit; c > pos; c-- {
		if unicode.IsSpace(runes[c-1]) && !unicode.IsSpace(runes[c]) {
			if hasText(runes[pos:c]) {
				return c
			}
			break
		}
	}

	// Hard cut. A blank run longer than the budget is carried to the next
	// word so no chunk is whitespace only.
	c := limit
	if !hasText(runes[pos:c]) {
		for c < len(runes) && unicode.IsSpace(runes[c]) {
			c++
		}
		if c < len(runes) {
			c++
		}
	}
	return c
}

// unitEnds returns the rune positions where sentences and paragraphs end,
// including their trailing whitespace. The last entry is always len(runes).
func unitEnds(runes []rune) []int {
	var ends []int
	i := 0
	for i < len(runes) {
		if !unicode.IsSpace(runes[i]) {
			i++
			continue
		}

		ws := i
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
		if i == len(runes) || ws == 0 {
			continue
		}
		if endsSentence(runes[:ws]) || isParagraphBreak(runes[ws:i]) {
			ends = append(ends, i)
		}
	}
	return append(ends, len(runes))
}

func endsSentence(prefix []rune) bool {
	j := len(prefix) - 1
	for j >= 0 && strings.ContainsRune(`"')]”’`, prefix[j]) {
		j--
	}
	return j >= 0 && strings.ContainsRune(".!?…。！？", prefix[j])
}

func isParagraphBreak(ws []rune) bool {
	newlines := 0
	for _, r := range ws {
		if r == '\n' {
			newlines++
		}
	}
	return newlines >= 2
}

func hasText(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}
