package contextprofile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"chatctx/internal/config"
	"chatctx/internal/state"
)

// ErrUnknownProfile is returned by New for unrecognized profile names.
var ErrUnknownProfile = errors.New("unknown context profile")

// Prepared encapsulates the digest a profile produced for a conversation.
type Prepared struct {
	Messages []state.Message
	Digest   string
	Tier     Tier
	Mutated  bool
}

// Profile turns a conversation into the history block spliced into a prompt.
type Profile interface {
	Prepare(ctx context.Context, conv *state.Conversation) (Prepared, error)
}

// ConfigReloadable is implemented by profiles that accept new settings at runtime.
type ConfigReloadable interface {
	ReloadConfig(cfg config.Config) error
}

// CompactionEventEmitter is implemented by profiles that record compaction events.
type CompactionEventEmitter interface {
	SetCompactionCallback(callback func(eventType string, data any) error)
	GetCompactionHistory() []CompactionEvent
}

// Dependencies bundles the resources profiles may require.
type Dependencies struct {
	Logger *log.Logger
	Config config.Config
	// Store is optional; without it events are only kept in memory.
	Store *EventStore
}

// New selects the requested profile by name.
func New(name string, deps Dependencies) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "default":
		return newDefaultProfile(deps.Config), nil
	case "", "relevance":
		return newRelevanceProfile(deps), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
}

// defaultProfile formats the whole history without selection or compression.
type defaultProfile struct {
	userLabel      string
	assistantLabel string
}

func newDefaultProfile(cfg config.Config) *defaultProfile {
	opts := NewOptimizer(optionsFromConfig(cfg)).Options()
	return &defaultProfile{userLabel: opts.UserLabel, assistantLabel: opts.AssistantLabel}
}

func (p *defaultProfile) Prepare(_ context.Context, conv *state.Conversation) (Prepared, error) {
	messages := conv.Messages()
	return Prepared{
		Messages: messages,
		Digest:   formatWith(messages, p.userLabel, p.assistantLabel),
		Tier:     TierFull,
	}, nil
}

func optionsFromConfig(cfg config.Config) Options {
	return Options{
		MaxMessages:         cfg.MaxMessages,
		TightMaxMessages:    cfg.TightMaxMessages,
		FallbackTail:        cfg.FallbackTail,
		SimilarityThreshold: cfg.SimilarityThreshold,
		MaxTokens:           cfg.TokenBudget(),
		MinKeywordLength:    cfg.MinKeywordLength,
		UserLabel:           cfg.UserLabel,
		AssistantLabel:      cfg.AssistantLabel,
	}
}
