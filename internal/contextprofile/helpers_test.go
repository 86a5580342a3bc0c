package contextprofile

import (
	"fmt"
	"strings"
	"time"

	"chatctx/internal/state"
)

func user(text string) state.Message {
	return state.Message{Text: text, Sender: state.SenderUser}
}

func assistant(text string) state.Message {
	return state.Message{Text: text, Sender: state.SenderAssistant}
}

// alternating builds n messages starting with a user turn; text(i) supplies the body.
func alternating(n int, text func(i int) string) []state.Message {
	msgs := make([]state.Message, n)
	for i := range msgs {
		if i%2 == 0 {
			msgs[i] = user(text(i))
		} else {
			msgs[i] = assistant(text(i))
		}
	}
	return msgs
}

// growing gives message i a keyword-free body whose length, and so score, grows with i.
func growing(i int) string {
	return strings.TrimSpace(strings.Repeat("ab ", i+1))
}

// distinct gives message i a 100-character body with a keyword no other message shares.
func distinct(i int) string {
	return strings.TrimSpace(strings.Repeat(fmt.Sprintf("t%02dw ", i), 20)) + " "
}

func withTimestamps(msgs []state.Message, skip ...int) []state.Message {
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	skipped := make(map[int]bool)
	for _, i := range skip {
		skipped[i] = true
	}
	out := make([]state.Message, len(msgs))
	for i, msg := range msgs {
		if !skipped[i] {
			ts := base.Add(time.Duration(i) * time.Minute)
			msg.Timestamp = &ts
		}
		out[i] = msg
	}
	return out
}

func texts(msgs []state.Message) []string {
	out := make([]string, len(msgs))
	for i, msg := range msgs {
		out[i] = msg.Text
	}
	return out
}
