package contextprofile

import (
	"strings"
	"unicode/utf8"

	"chatctx/internal/keywords"
	"chatctx/internal/state"
)

const (
	// DefaultMaxTokens is the token budget used when none is given.
	DefaultMaxTokens = 2000
	// DefaultTightMaxMessages is the selection cap of the second tier.
	DefaultTightMaxMessages = 8
	// DefaultFallbackTail is how many trailing messages the skeleton tier keeps.
	DefaultFallbackTail = 3

	charsPerToken = 4
)

// Tier names the shrinking stage that produced a digest.
type Tier int

const (
	// TierFull is selection at the normal cap followed by compression.
	TierFull Tier = iota + 1
	// TierTight is selection at the tighter cap.
	TierTight
	// TierSkeleton is the first message plus the last few, returned regardless of size.
	TierSkeleton
)

func (t Tier) String() string {
	switch t {
	case TierFull:
		return "full"
	case TierTight:
		return "tight"
	case TierSkeleton:
		return "skeleton"
	default:
		return "none"
	}
}

// Options tunes the pipeline. Zero values take the package defaults.
type Options struct {
	MaxMessages         int
	TightMaxMessages    int
	FallbackTail        int
	SimilarityThreshold float64
	MaxTokens           int
	MinKeywordLength    int
	UserLabel           string
	AssistantLabel      string
}

// Result is a formatted digest and how it was obtained.
type Result struct {
	Text            string
	Tier            Tier
	EstimatedTokens int
	Messages        []state.Message
	InputMessages   int
	Merged          int
	// Selection describes the selection pass of the returned tier; it is zero for the
	// skeleton tier.
	Selection SelectionStats
}

// Optimizer runs select, compress and format under a token budget. It holds no
// mutable state and may be shared between goroutines.
type Optimizer struct {
	opts    Options
	extract keywordFunc
}

// NewOptimizer fills unset options with defaults.
func NewOptimizer(opts Options) *Optimizer {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = DefaultMaxMessages
	}
	if opts.TightMaxMessages <= 0 {
		opts.TightMaxMessages = DefaultTightMaxMessages
	}
	if opts.FallbackTail <= 0 {
		opts.FallbackTail = DefaultFallbackTail
	}
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.MinKeywordLength <= 0 {
		opts.MinKeywordLength = keywords.DefaultMinLength
	}
	if strings.TrimSpace(opts.UserLabel) == "" {
		opts.UserLabel = "Client"
	}
	if strings.TrimSpace(opts.AssistantLabel) == "" {
		opts.AssistantLabel = "Assistant"
	}
	minLength := opts.MinKeywordLength
	return &Optimizer{
		opts: opts,
		extract: func(text string) []string {
			return keywords.ExtractMin(text, minLength)
		},
	}
}

// Options returns the effective options.
func (o *Optimizer) Options() Options {
	return o.opts
}

// Prepare shrinks messages into a digest of at most opts.MaxTokens estimated tokens,
// degrading through three tiers. The skeleton tier is returned even when it is still
// over budget.
func (o *Optimizer) Prepare(messages []state.Message) Result {
	res := Result{InputMessages: len(messages), Tier: TierFull}
	if len(messages) == 0 {
		return res
	}

	selected, stats := optimize(messages, o.opts.MaxMessages, o.extract)
	compressed, merged := compress(selected, o.opts.SimilarityThreshold, o.extract)
	if o.fill(&res, compressed) {
		res.Merged = merged
		res.Selection = stats
		return res
	}

	res.Tier = TierTight
	tight, stats := optimize(messages, o.opts.TightMaxMessages, o.extract)
	if o.fill(&res, tight) {
		res.Selection = stats
		return res
	}

	res.Tier = TierSkeleton
	o.fill(&res, skeleton(messages, o.opts.FallbackTail))
	return res
}

// fill renders msgs into res and reports whether the result fits the budget.
func (o *Optimizer) fill(res *Result, msgs []state.Message) bool {
	res.Messages = msgs
	res.Text = o.Format(msgs)
	res.EstimatedTokens = EstimateTokens(res.Text)
	return res.EstimatedTokens <= o.opts.MaxTokens
}

// Format renders messages as "<Label>: <text>" blocks separated by blank lines.
func (o *Optimizer) Format(messages []state.Message) string {
	return formatWith(messages, o.opts.UserLabel, o.opts.AssistantLabel)
}

// skeleton keeps the first message and the last tail messages without duplicating the
// first one on short histories.
func skeleton(messages []state.Message, tail int) []state.Message {
	if len(messages) <= tail+1 {
		return cloneMessages(messages)
	}
	out := make([]state.Message, 0, tail+1)
	out = append(out, messages[0])
	out = append(out, messages[len(messages)-tail:]...)
	return out
}

var defaultOptimizer = NewOptimizer(Options{})

// Prepare runs the default pipeline under maxTokens. A non-positive maxTokens means
// DefaultMaxTokens.
func Prepare(messages []state.Message, maxTokens int) string {
	if maxTokens <= 0 || maxTokens == DefaultMaxTokens {
		return defaultOptimizer.Prepare(messages).Text
	}
	return NewOptimizer(Options{MaxTokens: maxTokens}).Prepare(messages).Text
}

// Format renders messages with the default "Client" and "Assistant" labels.
func Format(messages []state.Message) string {
	return defaultOptimizer.Format(messages)
}

func formatWith(messages []state.Message, userLabel, assistantLabel string) string {
	blocks := make([]string, len(messages))
	for i, msg := range messages {
		label := userLabel
		if msg.Sender == state.SenderAssistant {
			label = assistantLabel
		}
		blocks[i] = label + ": " + msg.Text
	}
	return strings.Join(blocks, "\n\n")
}

// EstimateTokens approximates a token count as ceil(characters/4).
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + charsPerToken - 1) / charsPerToken
}
