package contextprofile

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"

	"chatctx/internal/state"
)

// maxEventHistory bounds both the in-memory history and LoadCompactionEvents.
const maxEventHistory = 50

// CompactionEvent records one Prepare call.
type CompactionEvent struct {
	Timestamp       time.Time `json:"timestamp"`
	Conversation    string    `json:"conversation"`
	Fingerprint     string    `json:"fingerprint"`
	Tier            string    `json:"tier"`
	MessagesBefore  int       `json:"messages_before"`
	MessagesAfter   int       `json:"messages_after"`
	MessagesMerged  int       `json:"messages_merged"`
	CharsBefore     int       `json:"chars_before"`
	CharsAfter      int       `json:"chars_after"`
	EstimatedTokens int       `json:"estimated_tokens"`
	TokenBudget     int       `json:"token_budget"`
	DurationMs      int64     `json:"duration_ms"`
}

// EventStore persists compaction events in sqlite.
type EventStore struct {
	db   *sql.DB
	path string
}

// OpenEventStore opens or creates the sqlite database at path.
func OpenEventStore(path string) (*EventStore, error) {
	if path == "" {
		return nil, errors.New("event store path must be set")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prepare event store dir: %w", err)
	}
	if info, err := os.Stat(path); err == nil && info.Size() == 0 {
		// a zero-byte file is what an interrupted first run leaves behind
		os.Remove(path)
		os.Remove(path + "-wal")
		os.Remove(path + "-shm")
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), `
CREATE TABLE IF NOT EXISTS compaction_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TIMESTAMP NOT NULL,
	conversation TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	tier TEXT NOT NULL,
	messages_before INTEGER NOT NULL,
	messages_after INTEGER NOT NULL,
	messages_merged INTEGER NOT NULL,
	chars_before INTEGER NOT NULL,
	chars_after INTEGER NOT NULL,
	estimated_tokens INTEGER NOT NULL,
	token_budget INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL
)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init compaction_events schema: %w", err)
	}
	return &EventStore{db: db, path: path}, nil
}

// SaveCompactionEvent persists a compaction event.
func (s *EventStore) SaveCompactionEvent(ctx context.Context, event CompactionEvent) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO compaction_events (timestamp, conversation, fingerprint, tier, messages_before, messages_after,
	messages_merged, chars_before, chars_after, estimated_tokens, token_budget, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Timestamp, event.Conversation, event.Fingerprint, event.Tier, event.MessagesBefore, event.MessagesAfter,
		event.MessagesMerged, event.CharsBefore, event.CharsAfter, event.EstimatedTokens, event.TokenBudget, event.DurationMs)
	return err
}

// LoadCompactionEvents returns the newest events first, at most limit of them
// (maxEventHistory when limit <= 0). An empty conversation matches all conversations.
func (s *EventStore) LoadCompactionEvents(ctx context.Context, conversation string, limit int) ([]CompactionEvent, error) {
	if limit <= 0 || limit > maxEventHistory {
		limit = maxEventHistory
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT timestamp, conversation, fingerprint, tier, messages_before, messages_after,
	messages_merged, chars_before, chars_after, estimated_tokens, token_budget, duration_ms
FROM compaction_events
WHERE ? = '' OR conversation = ?
ORDER BY timestamp DESC, id DESC
LIMIT ?`, conversation, conversation, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []CompactionEvent
	for rows.Next() {
		var e CompactionEvent
		if err := rows.Scan(&e.Timestamp, &e.Conversation, &e.Fingerprint, &e.Tier, &e.MessagesBefore, &e.MessagesAfter,
			&e.MessagesMerged, &e.CharsBefore, &e.CharsAfter, &e.EstimatedTokens, &e.TokenBudget, &e.DurationMs); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Path returns the database location.
func (s *EventStore) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *EventStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Fingerprint hashes the sender and text of every message, so two events with the same
// fingerprint were computed from identical histories.
func Fingerprint(messages []state.Message) string {
	h := blake3.New()
	for _, msg := range messages {
		h.Write([]byte(msg.Sender))
		h.Write([]byte{0})
		h.Write([]byte(msg.Text))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func totalChars(messages []state.Message) int {
	total := 0
	for _, msg := range messages {
		total += utf8.RuneCountInString(msg.Text)
	}
	return total
}
