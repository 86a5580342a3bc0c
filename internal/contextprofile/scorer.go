package contextprofile

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"chatctx/internal/keywords"
	"chatctx/internal/state"
)

// Scoring weights. Only their direction and relative size matter to callers.
const (
	lengthDivisor       = 50.0
	lengthCap           = 5.0
	questionBonus       = 3.0
	digitBonus          = 2.0
	bulletBonus         = 2.0
	emphasisBonus       = 1.5
	topicOverlapWeight  = 1.5
	recentOverlapWeight = 0.5
)

var numberedItem = regexp.MustCompile(`\d\.`)

// ScoredMessage is a message decorated with its relevance score and keywords for the
// duration of one selection pass.
type ScoredMessage struct {
	state.Message
	Score    float64
	Keywords []string
}

// Score rates how informative msg is given the conversation-wide keywords and a window
// of recent messages. The result is always finite and >= 0.
func Score(msg state.Message, conversationKeywords []string, recent []state.Message) float64 {
	return ScoreWithKeywords(msg, keywords.Extract(msg.Text), conversationKeywords, recentKeywords(recent, keywords.Extract))
}

func recentKeywords(recent []state.Message, extract keywordFunc) [][]string {
	out := make([][]string, len(recent))
	for i, msg := range recent {
		out[i] = extract(msg.Text)
	}
	return out
}

// ScoreWithKeywords is Score with msg's keywords and the keywords of each recent message
// already extracted. Selection uses it to extract every message once per pass.
func ScoreWithKeywords(msg state.Message, msgKeywords, conversationKeywords []string, recent [][]string) float64 {
	text := msg.Text
	score := math.Min(float64(utf8.RuneCountInString(text))/lengthDivisor, lengthCap)

	if msg.Sender == state.SenderUser && strings.Contains(text, "?") {
		score += questionBonus
	}

	if msg.Sender == state.SenderAssistant {
		if strings.IndexFunc(text, unicode.IsDigit) >= 0 {
			score += digitBonus
		}
		if strings.ContainsAny(text, "•-") || numberedItem.MatchString(text) {
			score += bulletBonus
		}
		if strings.Contains(text, "**") || strings.Contains(text, "__") {
			score += emphasisBonus
		}
	}

	score += topicOverlapWeight * float64(keywords.Overlap(conversationKeywords, msgKeywords))

	for _, kw := range recent {
		score += recentOverlapWeight * float64(keywords.Overlap(msgKeywords, kw))
	}
	return score
}
