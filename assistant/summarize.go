package assistant

import (
	"context"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-chat/errors"
	"github.com/nijaru/yt-chat/models"
)

// summaryAccumulator carries the fold state across chunks: the partial
// summaries produced so far and the number of model calls spent.
type summaryAccumulator struct {
	partials []string
	calls    int
}

func (a summaryAccumulator) add(partial string) summaryAccumulator {
	partials := make([]string, len(a.partials), len(a.partials)+1)
	copy(partials, a.partials)
	return summaryAccumulator{
		partials: append(partials, partial),
		calls:    a.calls + 1,
	}
}

// summarize produces the final summary for a transcript. Short transcripts
// take one call on the whole text; longer ones are folded chunk by chunk
// and the partials merged.
func (s *Service) summarize(ctx context.Context, text string, chunks []models.TranscriptChunk) (string, error) {
	const op = "Assistant.summarize"

	if s.config.SinglePassChars > 0 && utf8.RuneCountInString(text) <= s.config.SinglePassChars {
		summary, err := s.generate(ctx, buildSummaryPrompt(text))
		if err != nil {
			return "", errors.ModelError(op, err, "Failed to generate summary")
		}
		return summary, nil
	}

	acc, err := s.foldChunks(ctx, chunks)
	if err != nil {
		return "", err
	}

	summary, calls, err := s.mergePartials(ctx, acc.partials)
	if err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"chunks":      len(chunks),
		"model_calls": acc.calls + calls,
	}).Debug("Hierarchical summary complete")

	return summary, nil
}

func (s *Service) foldChunks(ctx context.Context, chunks []models.TranscriptChunk) (summaryAccumulator, error) {
	const op = "Assistant.foldChunks"

	acc := summaryAccumulator{}
	for i, chunk := range chunks {
		partial, err := s.generate(ctx, buildChunkPrompt(i, len(chunks), chunk.Text))
		if err != nil {
			return acc, errors.ModelError(op, err, "Failed to summarize transcript chunk")
		}
		acc = acc.add(partial)
	}
	return acc, nil
}

// mergePartials reduces partial summaries in batches that fit the single
// pass budget until one final call can take them all. If batching stops
// shrinking the list, the final call takes everything that is left.
func (s *Service) mergePartials(ctx context.Context, partials []string) (string, int, error) {
	const op = "Assistant.mergePartials"

	calls := 0
	for len(partials) > 1 {
		batches := batchPartials(partials, s.config.SinglePassChars)
		if len(batches) == 1 || len(batches) == len(partials) {
			break
		}

		next := make([]string, 0, len(batches))
		for _, batch := range batches {
			if len(batch) == 1 {
				next = append(next, batch[0])
				continue
			}
			combined, err := s.generate(ctx, buildCombinePrompt(batch))
			if err != nil {
				return "", calls, errors.ModelError(op, err, "Failed to combine partial summaries")
			}
			calls++
			next = append(next, combined)
		}
		partials = next
	}

	summary, err := s.generate(ctx, buildFinalMergePrompt(partials))
	if err != nil {
		return "", calls, errors.ModelError(op, err, "Failed to merge summaries")
	}
	return summary, calls + 1, nil
}

// batchPartials groups consecutive partials so each group's total rune
// count stays within limit. A partial larger than limit gets its own group.
// A non-positive limit puts everything in one group.
func batchPartials(partials []string, limit int) [][]string {
	if limit <= 0 {
		return [][]string{partials}
	}

	var (
		batches [][]string
		current []string
		size    int
	)
	for _, p := range partials {
		n := utf8.RuneCountInString(p)
		if len(current) > 0 && size+n > limit {
			batches = append(batches, current)
			current, size = nil, 0
		}
		current = append(current, p)
		size += n
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
