package contextprofile

import (
	"strings"

	"chatctx/internal/keywords"
	"chatctx/internal/state"
)

const (
	// DefaultSimilarityThreshold is the keyword similarity at which consecutive
	// same-sender messages are merged.
	DefaultSimilarityThreshold = 0.7
	// protectedTail is the number of trailing messages never merged.
	protectedTail = 3
)

// Compress merges runs of consecutive same-sender messages whose keywords overlap by at
// least similarityThreshold. Merged text is the newline-joined concatenation of the run
// and keeps the sender and timestamp of the run's first message, so nothing is lost.
// The last three messages are always copied through, and histories of three messages or
// fewer are returned as an unchanged copy. A non-positive threshold means
// DefaultSimilarityThreshold.
func Compress(messages []state.Message, similarityThreshold float64) []state.Message {
	out, _ := compress(messages, similarityThreshold, keywords.Extract)
	return out
}

// CompressWithStats is Compress plus the number of messages folded into earlier ones.
func CompressWithStats(messages []state.Message, similarityThreshold float64) ([]state.Message, int) {
	return compress(messages, similarityThreshold, keywords.Extract)
}

func compress(messages []state.Message, threshold float64, extract keywordFunc) ([]state.Message, int) {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if len(messages) <= protectedTail {
		return cloneMessages(messages), 0
	}

	protectedStart := len(messages) - protectedTail
	out := make([]state.Message, 0, len(messages))
	merged := 0

	for i := 0; i < len(messages); {
		msg := messages[i]
		if i >= protectedStart {
			out = append(out, msg)
			i++
			continue
		}

		parts := []string{msg.Text}
		current := extract(msg.Text)
		j := i + 1
		for ; j < protectedStart && messages[j].Sender == msg.Sender; j++ {
			next := extract(messages[j].Text)
			if similarity(current, next) < threshold {
				break
			}
			parts = append(parts, messages[j].Text)
			current = extract(strings.Join(parts, "\n"))
		}

		if j > i+1 {
			msg.Text = strings.Join(parts, "\n")
			merged += j - i - 1
		}
		out = append(out, msg)
		i = j
	}
	return out, merged
}

func similarity(current, next []string) float64 {
	denom := max(len(current), len(next), 1)
	return float64(keywords.Overlap(current, next)) / float64(denom)
}
