package contextprofile

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"chatctx/internal/config"
	"chatctx/internal/logging"
	"chatctx/internal/state"
)

// relevanceProfile runs the select/compress/budget pipeline and records one
// CompactionEvent per Prepare.
type relevanceProfile struct {
	logger             *logging.StructuredLogger
	store              *EventStore
	mu                 sync.RWMutex
	optimizer          *Optimizer
	compactionHistory  []CompactionEvent
	compactionCallback func(eventType string, data any) error
}

func newRelevanceProfile(deps Dependencies) *relevanceProfile {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	p := &relevanceProfile{
		logger:    logging.NewStructuredLogger(logger, "relevance", deps.Config.LogJSON),
		store:     deps.Store,
		optimizer: NewOptimizer(optionsFromConfig(deps.Config)),
	}

	if p.store != nil {
		history, err := p.store.LoadCompactionEvents(context.Background(), "", maxEventHistory)
		if err != nil {
			p.logger.WithComponent("event_store").Warn("failed to load compaction history", map[string]any{"err": err})
		}
		// stored newest first, kept oldest first
		for i := len(history) - 1; i >= 0; i-- {
			p.compactionHistory = append(p.compactionHistory, history[i])
		}
	}
	return p
}

func (p *relevanceProfile) currentOptimizer() *Optimizer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.optimizer
}

func (p *relevanceProfile) Prepare(ctx context.Context, conv *state.Conversation) (Prepared, error) {
	if conv == nil {
		return Prepared{}, fmt.Errorf("prepare: conversation is nil")
	}
	messages := conv.Messages()
	opt := p.currentOptimizer()
	convLog := p.logger.WithConversation(conv.Key())

	p.emitCompactionEvent("compaction_start", map[string]any{
		"messages": len(messages),
		"chars":    totalChars(messages),
	})

	start := time.Now()
	res := opt.Prepare(messages)
	duration := time.Since(start)

	event := CompactionEvent{
		Timestamp:       start,
		Conversation:    conv.Key(),
		Fingerprint:     Fingerprint(messages),
		Tier:            res.Tier.String(),
		MessagesBefore:  len(messages),
		MessagesAfter:   len(res.Messages),
		MessagesMerged:  res.Merged,
		CharsBefore:     totalChars(messages),
		CharsAfter:      utf8.RuneCountInString(res.Text),
		EstimatedTokens: res.EstimatedTokens,
		TokenBudget:     opt.Options().MaxTokens,
		DurationMs:      duration.Milliseconds(),
	}
	p.addCompactionEvent(ctx, event)
	p.emitCompactionEvent("compaction_complete", event)

	fields := map[string]any{
		"tier":     event.Tier,
		"before":   event.MessagesBefore,
		"after":    event.MessagesAfter,
		"merged":   event.MessagesMerged,
		"tokens":   event.EstimatedTokens,
		"budget":   event.TokenBudget,
		"duration": duration,
	}
	if res.Tier != TierSkeleton {
		convLog.Debug("selection", map[string]any{
			"input":    res.Selection.Input,
			"kept":     res.Selection.Kept,
			"tail":     res.Selection.Tail,
			"middle":   res.Selection.Middle,
			"resorted": res.Selection.Resorted,
		})
	}
	if res.Tier == TierSkeleton && res.EstimatedTokens > event.TokenBudget {
		convLog.Warn("history still over budget after skeleton fallback", fields)
	} else {
		convLog.Info("prepared history", fields)
	}

	return Prepared{
		Messages: res.Messages,
		Digest:   res.Text,
		Tier:     res.Tier,
		Mutated:  len(res.Messages) != len(messages) || res.Merged > 0,
	}, nil
}

// ReloadConfig swaps the pipeline options. The event store location cannot change.
func (p *relevanceProfile) ReloadConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if p.store != nil && cfg.EventStorePath != "" && cfg.EventStorePath != p.store.Path() {
		return fmt.Errorf("changing event_store_path requires restart")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.optimizer = NewOptimizer(optionsFromConfig(cfg))
	return nil
}

// SetCompactionCallback implements CompactionEventEmitter.
func (p *relevanceProfile) SetCompactionCallback(callback func(eventType string, data any) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.compactionCallback = callback
}

// GetCompactionHistory implements CompactionEventEmitter.
func (p *relevanceProfile) GetCompactionHistory() []CompactionEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	history := make([]CompactionEvent, len(p.compactionHistory))
	copy(history, p.compactionHistory)
	return history
}

func (p *relevanceProfile) addCompactionEvent(ctx context.Context, event CompactionEvent) {
	p.mu.Lock()
	p.compactionHistory = append(p.compactionHistory, event)
	if len(p.compactionHistory) > maxEventHistory {
		p.compactionHistory = p.compactionHistory[len(p.compactionHistory)-maxEventHistory:]
	}
	p.mu.Unlock()

	if p.store == nil {
		return
	}
	if err := p.store.SaveCompactionEvent(ctx, event); err != nil {
		p.logger.WithComponent("event_store").WithConversation(event.Conversation).Error("failed to save compaction event", map[string]any{"err": err})
	}
}

func (p *relevanceProfile) emitCompactionEvent(eventType string, data any) {
	p.mu.RLock()
	callback := p.compactionCallback
	p.mu.RUnlock()
	if callback != nil {
		if err := callback(eventType, data); err != nil {
			p.logger.Error("compaction event emission failed", map[string]any{"err": err, "event": eventType})
		}
	}
}
