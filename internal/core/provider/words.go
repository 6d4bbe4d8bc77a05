package provider

import (
	"strings"

	"github.com/polyscribe/polyscribe/internal/core/transcript"
)

// Word is one provider-reported word with timing, before coalescing.
type Word struct {
	Text    string
	Start   float64
	End     float64
	Speaker string
}

// SegmentsFromWords normalizes word-level provider output. With "word"
// granularity every word becomes its own segment; otherwise words coalesce
// into sentence-like segments, closing a segment whenever terminal
// punctuation is seen.
func SegmentsFromWords(words []Word, granularity string) []transcript.Segment {
	if len(words) == 0 {
		return nil
	}

	if granularity == "word" {
		segments := make([]transcript.Segment, 0, len(words))
		for i, w := range words {
			segments = append(segments, transcript.Segment{
				ID:      i + 1,
				Start:   w.Start,
				End:     w.End,
				Text:    strings.TrimSpace(w.Text),
				Speaker: w.Speaker,
			})
		}
		return segments
	}

	var segments []transcript.Segment
	var chunk []Word
	flush := func() {
		if len(chunk) == 0 {
			return
		}
		parts := make([]string, 0, len(chunk))
		for _, w := range chunk {
			parts = append(parts, strings.TrimSpace(w.Text))
		}
		segments = append(segments, transcript.Segment{
			ID:      len(segments) + 1,
			Start:   chunk[0].Start,
			End:     chunk[len(chunk)-1].End,
			Text:    strings.TrimSpace(strings.Join(parts, " ")),
			Speaker: chunk[0].Speaker,
		})
		chunk = chunk[:0]
	}

	for _, w := range words {
		chunk = append(chunk, w)
		if endsSentence(w.Text) {
			flush()
		}
	}
	flush()
	return segments
}

func endsSentence(token string) bool {
	token = strings.TrimSpace(token)
	return strings.HasSuffix(token, ".") ||
		strings.HasSuffix(token, "?") ||
		strings.HasSuffix(token, "!")
}

// SingleSegment collapses a whole response into one zero-duration segment
// when the provider returned neither segments nor usable timing.
func SingleSegment(text string) []transcript.Segment {
	normalized := strings.TrimSpace(text)
	if normalized == "" {
		normalized = "[empty transcript]"
	}
	return []transcript.Segment{{ID: 1, Start: 0, End: 0, Text: normalized}}
}
