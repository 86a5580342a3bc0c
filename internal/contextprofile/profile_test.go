package contextprofile

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"chatctx/internal/config"
	"chatctx/internal/logging"
	"chatctx/internal/state"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("CHATCTX_CONFIG_DIR", t.TempDir())
	return config.Default()
}

func openTestStore(t *testing.T) *EventStore {
	t.Helper()
	store, err := OpenEventStore(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("OpenEventStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func quietDeps(cfg config.Config, store *EventStore) Dependencies {
	return Dependencies{Logger: log.New(io.Discard, "", 0), Config: cfg, Store: store}
}

func TestNewUnknownProfile(t *testing.T) {
	_, err := New("summarizer", Dependencies{Config: config.Default()})
	if !errors.Is(err, ErrUnknownProfile) {
		t.Fatalf("expected ErrUnknownProfile, got %v", err)
	}
}

func TestDefaultProfileFormatsEverything(t *testing.T) {
	cfg := testConfig(t)
	cfg.UserLabel = "Customer"
	profile, err := New("default", quietDeps(cfg, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	msgs := alternating(20, distinct)
	prepared, err := profile.Prepare(context.Background(), state.NewConversation("c1", msgs))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(prepared.Messages) != 20 || prepared.Mutated {
		t.Errorf("default profile must keep every message, got %d", len(prepared.Messages))
	}
	if prepared.Digest != formatWith(msgs, "Customer", "Assistant") {
		t.Error("unexpected digest from default profile")
	}
}

func TestRelevanceProfileMatchesPrepare(t *testing.T) {
	cfg := testConfig(t)
	store := openTestStore(t)
	cfg.EventStorePath = store.Path()

	profile, err := New("relevance", quietDeps(cfg, store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	msgs := alternating(20, distinct)
	prepared, err := profile.Prepare(context.Background(), state.NewConversation("wedding", msgs))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if prepared.Digest != Prepare(msgs, 2000) {
		t.Error("relevance profile digest differs from Prepare")
	}
	if !prepared.Mutated || prepared.Tier != TierFull {
		t.Errorf("mutated=%v tier=%v", prepared.Mutated, prepared.Tier)
	}

	events, err := store.LoadCompactionEvents(context.Background(), "wedding", 0)
	if err != nil {
		t.Fatalf("LoadCompactionEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(events))
	}
	e := events[0]
	if e.Fingerprint != Fingerprint(msgs) || e.Tier != "full" || e.MessagesBefore != 20 || e.MessagesAfter != 12 {
		t.Errorf("unexpected event %+v", e)
	}
	if e.TokenBudget != 2000 || e.CharsAfter != len(prepared.Digest) {
		t.Errorf("unexpected budget accounting %+v", e)
	}

	other, err := store.LoadCompactionEvents(context.Background(), "other", 0)
	if err != nil || len(other) != 0 {
		t.Errorf("filter by conversation: %d events, err %v", len(other), err)
	}
}

func TestRelevanceProfileReloadsHistory(t *testing.T) {
	cfg := testConfig(t)
	store := openTestStore(t)
	ctx := context.Background()

	first, _ := New("relevance", quietDeps(cfg, store))
	for _, key := range []string{"a", "b", "c"} {
		if _, err := first.Prepare(ctx, state.NewConversation(key, alternating(4, distinct))); err != nil {
			t.Fatalf("Prepare(%s): %v", key, err)
		}
	}

	second, _ := New("relevance", quietDeps(cfg, store))
	history := second.(CompactionEventEmitter).GetCompactionHistory()
	if len(history) != 3 {
		t.Fatalf("expected 3 reloaded events, got %d", len(history))
	}
	if history[0].Conversation != "a" || history[2].Conversation != "c" {
		t.Errorf("history must be oldest first: %s..%s", history[0].Conversation, history[2].Conversation)
	}
}

func TestRelevanceProfileCallback(t *testing.T) {
	profile, _ := New("relevance", quietDeps(testConfig(t), nil))
	emitter := profile.(CompactionEventEmitter)

	var (
		mu    sync.Mutex
		types []string
		last  any
	)
	emitter.SetCompactionCallback(func(eventType string, data any) error {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, eventType)
		last = data
		return errors.New("listener failed")
	})

	if _, err := profile.Prepare(context.Background(), state.NewConversation("cb", alternating(3, distinct))); err != nil {
		t.Fatalf("Prepare must not fail on callback errors: %v", err)
	}
	if len(types) != 2 || types[0] != "compaction_start" || types[1] != "compaction_complete" {
		t.Fatalf("unexpected events %v", types)
	}
	event, ok := last.(CompactionEvent)
	if !ok || event.Conversation != "cb" {
		t.Errorf("compaction_complete payload = %#v", last)
	}
	if len(emitter.GetCompactionHistory()) != 1 {
		t.Error("expected one event in memory")
	}
}

func TestRelevanceProfileReloadConfig(t *testing.T) {
	cfg := testConfig(t)
	profile, _ := New("relevance", quietDeps(cfg, nil))
	reloadable := profile.(ConfigReloadable)

	msgs := alternating(20, distinct)
	conv := state.NewConversation("reload", msgs)

	tight := cfg
	tight.MaxTokens = 10
	if err := reloadable.ReloadConfig(tight); err != nil {
		t.Fatalf("ReloadConfig: %v", err)
	}
	prepared, err := profile.Prepare(context.Background(), conv)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if prepared.Tier != TierSkeleton || len(prepared.Messages) != 4 {
		t.Errorf("tier=%v messages=%d, want skeleton", prepared.Tier, len(prepared.Messages))
	}

	invalid := cfg
	invalid.SimilarityThreshold = 2
	if err := reloadable.ReloadConfig(invalid); err == nil {
		t.Error("expected invalid config to be rejected")
	}
}

func TestReloadConfigRejectsStoreMove(t *testing.T) {
	cfg := testConfig(t)
	store := openTestStore(t)
	cfg.EventStorePath = store.Path()
	profile, _ := New("relevance", quietDeps(cfg, store))

	moved := cfg
	moved.EventStorePath = filepath.Join(t.TempDir(), "elsewhere.db")
	if err := profile.(ConfigReloadable).ReloadConfig(moved); err == nil {
		t.Error("expected an error when the event store path changes")
	}
}

func TestRelevanceProfileNilConversation(t *testing.T) {
	profile, _ := New("", quietDeps(testConfig(t), nil))
	if _, err := profile.Prepare(context.Background(), nil); err == nil {
		t.Error("expected error for nil conversation")
	}
}

func TestOpenEventStoreRequiresPath(t *testing.T) {
	if _, err := OpenEventStore(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestFingerprintDistinguishesSenders(t *testing.T) {
	a := Fingerprint([]state.Message{user("hello")})
	b := Fingerprint([]state.Message{assistant("hello")})
	if a == b || len(a) != 32 {
		t.Errorf("fingerprints %q and %q", a, b)
	}
	if Fingerprint([]state.Message{user("hello")}) != a {
		t.Error("fingerprint must be deterministic")
	}
}

func TestRelevanceProfileLogsSelectionInDevMode(t *testing.T) {
	devMode := logging.DevMode
	logging.DevMode = true
	t.Cleanup(func() { logging.DevMode = devMode })

	var buf bytes.Buffer
	profile, _ := New("relevance", Dependencies{Logger: log.New(&buf, "", 0), Config: testConfig(t)})
	if _, err := profile.Prepare(context.Background(), state.NewConversation("sel", alternating(20, distinct))); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	want := "[relevance] [conv:sel] selection | input=20 kept=12 middle=6 resorted=false tail=5"
	if !strings.Contains(buf.String(), want) {
		t.Errorf("missing selection line %q in:\n%s", want, buf.String())
	}
}

func TestRelevanceProfileSurvivesStoreFailure(t *testing.T) {
	cfg := testConfig(t)
	store := openTestStore(t)
	var buf bytes.Buffer
	profile, _ := New("relevance", Dependencies{Logger: log.New(&buf, "", 0), Config: cfg, Store: store})
	store.Close()

	msgs := alternating(4, distinct)
	prepared, err := profile.Prepare(context.Background(), state.NewConversation("closed", msgs))
	if err != nil {
		t.Fatalf("Prepare must not fail when the store does: %v", err)
	}
	if prepared.Digest != Format(msgs) {
		t.Error("unexpected digest")
	}
	if !strings.Contains(buf.String(), "[event_store] [conv:closed] failed to save compaction event") {
		t.Errorf("expected a store error line, got:\n%s", buf.String())
	}
}
