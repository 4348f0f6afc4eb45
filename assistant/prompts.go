package assistant

import (
	"fmt"
	"strings"

	"github.com/nijaru/yt-chat/models"
)

// NotCoveredAnswer is the reply the model is told to give when the
// context does not contain the answer.
const NotCoveredAnswer = "This topic is not covered in the video."

const summaryFormat = `Return format:

Title
Key Points (5)
Important Timestamps
Core Insight`

const summaryPrompt = `You are an AI research assistant.
Create a structured YouTube summary.
%s

Transcript:
%s
`

const chunkPrompt = `You are summarizing part %d of %d of a YouTube transcript.
Write concise notes covering every distinct point, name, number and timestamp mentioned in this part.
Do not add anything that is not in the text.

Transcript part:
%s
`

const combinePrompt = `Combine the following partial notes from consecutive parts of one YouTube transcript into a single set of notes.
Keep every distinct point, name, number and timestamp. Remove repetition.

%s
`

const finalMergePrompt = `You are an AI research assistant.
The notes below were taken from consecutive parts of one YouTube transcript.
Create a structured YouTube summary from them.
%s

Notes:
%s
`

const qaPrompt = `Answer ONLY using the provided transcript context.

If the answer is not present, reply exactly:
"%s"

Context:
%s

Question:
%s
`

const translatePrompt = `Translate the content below into %s.
Keep the formatting identical.

%s
`

func buildSummaryPrompt(transcript string) string {
	return fmt.Sprintf(summaryPrompt, summaryFormat, transcript)
}

func buildChunkPrompt(index, total int, text string) string {
	return fmt.Sprintf(chunkPrompt, index+1, total, text)
}

func buildCombinePrompt(partials []string) string {
	return fmt.Sprintf(combinePrompt, joinPartials(partials))
}

func buildFinalMergePrompt(partials []string) string {
	return fmt.Sprintf(finalMergePrompt, summaryFormat, joinPartials(partials))
}

func buildQAPrompt(context []models.TranscriptChunk, question string) string {
	parts := make([]string, len(context))
	for i, c := range context {
		parts[i] = strings.TrimSpace(c.Text)
	}
	return fmt.Sprintf(qaPrompt, NotCoveredAnswer, strings.Join(parts, "\n\n"), question)
}

func buildTranslatePrompt(language, text string) string {
	return fmt.Sprintf(translatePrompt, language, text)
}

func joinPartials(partials []string) string {
	var b strings.Builder
	for i, p := range partials {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Part %d:\n%s", i+1, strings.TrimSpace(p))
	}
	return b.String()
}
