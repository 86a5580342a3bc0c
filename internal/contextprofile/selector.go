package contextprofile

import (
	"sort"
	"strings"

	"chatctx/internal/keywords"
	"chatctx/internal/state"
)

const (
	// DefaultMaxMessages is the selection cap used by Prepare's first tier.
	DefaultMaxMessages = 12
	// maxTailMessages bounds the always-kept recent tail.
	maxTailMessages = 5
)

type keywordFunc func(string) []string

// SelectionStats describes what a selection pass kept.
type SelectionStats struct {
	Input    int
	Kept     int
	Tail     int
	Middle   int
	Resorted bool
}

// Optimize reduces messages to at most maxMessages entries. It always keeps the first
// message and the last min(5, maxMessages/2) messages, then fills the remaining slots
// with the highest-scoring middle messages. Histories that already fit are returned as
// an unchanged copy. A non-positive maxMessages means DefaultMaxMessages.
func Optimize(messages []state.Message, maxMessages int) []state.Message {
	out, _ := optimize(messages, maxMessages, keywords.Extract)
	return out
}

// OptimizeWithStats is Optimize plus a description of the selection.
func OptimizeWithStats(messages []state.Message, maxMessages int) ([]state.Message, SelectionStats) {
	return optimize(messages, maxMessages, keywords.Extract)
}

func optimize(messages []state.Message, maxMessages int, extract keywordFunc) ([]state.Message, SelectionStats) {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	stats := SelectionStats{Input: len(messages)}
	if len(messages) <= maxMessages {
		stats.Kept = len(messages)
		return cloneMessages(messages), stats
	}

	first := messages[0]
	lastCount := min(maxTailMessages, maxMessages/2)
	tail := messages[len(messages)-lastCount:]
	stats.Tail = lastCount

	slots := maxMessages - lastCount - 1
	if slots <= 0 {
		out := make([]state.Message, 0, 1+lastCount)
		out = append(out, first)
		out = append(out, tail...)
		stats.Kept = len(out)
		return out, stats
	}

	middle := messages[1 : len(messages)-lastCount]
	conversationKeywords := extract(joinTexts(messages))
	recent := recentKeywords(tail, extract)

	scored := make([]ScoredMessage, len(middle))
	for i, msg := range middle {
		kw := extract(msg.Text)
		scored[i] = ScoredMessage{
			Message:  msg,
			Keywords: kw,
			Score:    ScoreWithKeywords(msg, kw, conversationKeywords, recent),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > slots {
		scored = scored[:slots]
	}
	stats.Middle = len(scored)

	out := make([]state.Message, 0, 1+len(scored)+lastCount)
	out = append(out, first)
	for _, sm := range scored {
		out = append(out, sm.Message)
	}
	out = append(out, tail...)

	if allTimestamped(out) {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Timestamp.Before(*out[j].Timestamp)
		})
		stats.Resorted = true
	}
	stats.Kept = len(out)
	return out, stats
}

// allTimestamped reports whether every message carries a timestamp. Mixed histories
// keep their assembled order.
func allTimestamped(messages []state.Message) bool {
	for _, msg := range messages {
		if !msg.HasTimestamp() {
			return false
		}
	}
	return len(messages) > 0
}

func joinTexts(messages []state.Message) string {
	texts := make([]string, len(messages))
	for i, msg := range messages {
		texts[i] = msg.Text
	}
	return strings.Join(texts, " ")
}

func cloneMessages(messages []state.Message) []state.Message {
	if messages == nil {
		return nil
	}
	out := make([]state.Message, len(messages))
	copy(out, messages)
	return out
}
