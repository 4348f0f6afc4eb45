// Package relevance picks the transcript chunks most likely to answer a
// question using keyword overlap. It is a lexical heuristic, not semantic
// search.
package relevance

import (
	"sort"
	"strings"
	"unicode"

	"github.com/nijaru/yt-chat/errors"
	"github.com/nijaru/yt-chat/models"
)

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a about above after again against all am an and any are as at
		be because been before being below between both but by
		can could did do does doing down during each few for from further
		had has have having he her here hers herself him himself his how
		i if in into is it its itself just me more most my myself
		no nor not now of off on once only or other our ours ourselves out over own
		same she should so some such than that the their theirs them themselves then
		there these they this those through to too under until up very
		was we were what when where which while who whom why will with would
		you your yours yourself yourselves
		tell explain describe video talk talks say says said mention mentioned`) {
		stopWords[w] = struct{}{}
	}
}

// Terms lowercases the question, splits it on anything that is not a letter
// or digit, and drops stop words and duplicates.
func Terms(question string) []string {
	fields := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

// Score counts the terms that occur in text, case-insensitively.
func Score(terms []string, text string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			score++
		}
	}
	return score
}

// SelectContext returns min(topK, len(chunks)) chunks in their original
// order. Chunks are ranked by score, ties going to the lower index. When no
// chunk matches any term, the first topK chunks are returned.
func SelectContext(question string, chunks []models.TranscriptChunk, topK int) ([]models.TranscriptChunk, error) {
	const op = "relevance.SelectContext"

	if len(chunks) == 0 {
		return nil, errors.InvalidInput(op, nil, "No transcript chunks to search")
	}
	if topK <= 0 {
		return nil, errors.InvalidInput(op, nil, "Context size must be greater than 0")
	}

	k := min(topK, len(chunks))
	terms := Terms(question)

	type ranked struct {
		pos   int
		score int
	}
	ranks := make([]ranked, len(chunks))
	matched := false
	for i, c := range chunks {
		ranks[i] = ranked{pos: i, score: Score(terms, c.Text)}
		if ranks[i].score > 0 {
			matched = true
		}
	}

	if !matched {
		return append([]models.TranscriptChunk(nil), chunks[:k]...), nil
	}

	sort.SliceStable(ranks, func(a, b int) bool {
		ra, rb := ranks[a], ranks[b]
		if ra.score != rb.score {
			return ra.score > rb.score
		}
		return chunks[ra.pos].Index < chunks[rb.pos].Index
	})

	picked := ranks[:k]
	sort.Slice(picked, func(a, b int) bool { return picked[a].pos < picked[b].pos })

	selected := make([]models.TranscriptChunk, 0, k)
	for _, r := range picked {
		selected = append(selected, chunks[r.pos])
	}
	return selected, nil
}
