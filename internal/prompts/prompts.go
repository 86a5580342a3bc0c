package prompts

import (
	_ "embed"
	"strings"
)

//go:embed system_chatctx.txt
var baseSystemPrompt string

// HistoryHeader introduces the conversation digest inside an assembled prompt.
const HistoryHeader = "## Conversation so far"

// Base returns the built-in system prompt.
func Base() string {
	return strings.TrimSpace(baseSystemPrompt)
}

// Combine joins the built-in prompt with an optional user-provided prompt.
func Combine(user string) string {
	base := Base()
	trimmed := strings.TrimSpace(user)
	if trimmed == "" {
		return base
	}
	return base + "\n\n" + trimmed
}

// Assemble appends a conversation digest to system under HistoryHeader. An empty
// system prompt falls back to Base; an empty digest leaves the prompt unchanged.
func Assemble(system, digest string) string {
	system = strings.TrimSpace(system)
	if system == "" {
		system = Base()
	}
	digest = strings.TrimSpace(digest)
	if digest == "" {
		return system
	}
	return system + "\n\n" + HistoryHeader + "\n\n" + digest
}
