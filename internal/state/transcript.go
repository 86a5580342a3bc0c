package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format names a transcript encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONC Format = "jsonc"
	FormatYAML  Format = "yaml"
)

// FormatForPath picks the transcript encoding from a file extension, defaulting to JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".jsonc":
		return FormatJSONC
	default:
		return FormatJSON
	}
}

// TranscriptError wraps a failure to read or decode a transcript.
type TranscriptError struct {
	Path string
	Err  error
}

func (e *TranscriptError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("transcript: %v", e.Err)
	}
	return fmt.Sprintf("transcript %s: %v", e.Path, e.Err)
}

// Unwrap allows errors.Is/As to reach the underlying cause.
func (e *TranscriptError) Unwrap() error {
	return e.Err
}

// LoadOptions tunes how transcripts are turned into messages.
type LoadOptions struct {
	// StripMarkup converts HTML message bodies to plain text.
	StripMarkup bool
}

// rawMessage mirrors the on-disk schema. Timestamps stay strings so JSON and YAML
// share one parser.
type rawMessage struct {
	Text      string `json:"text" yaml:"text"`
	Sender    string `json:"sender" yaml:"sender"`
	Role      string `json:"role,omitempty" yaml:"role,omitempty"`
	Timestamp string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

type rawTranscript struct {
	Key      string       `json:"key" yaml:"key"`
	Messages []rawMessage `json:"messages" yaml:"messages"`
}

// LoadTranscript reads a transcript file and returns it as a conversation keyed by the
// transcript key, or by the file name when the transcript has none.
func LoadTranscript(path string, opts LoadOptions) (*Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &TranscriptError{Path: path, Err: err}
	}
	key, messages, err := DecodeTranscript(data, FormatForPath(path), opts)
	if err != nil {
		return nil, &TranscriptError{Path: path, Err: err}
	}
	if key == "" {
		key = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return NewConversation(key, messages), nil
}

// ReadTranscript decodes a transcript from a stream, e.g. stdin.
func ReadTranscript(r io.Reader, format Format, opts LoadOptions) (*Conversation, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &TranscriptError{Err: err}
	}
	key, messages, err := DecodeTranscript(data, format, opts)
	if err != nil {
		return nil, &TranscriptError{Err: err}
	}
	if key == "" {
		key = "stdin"
	}
	return NewConversation(key, messages), nil
}

// DecodeTranscript parses either an object with a "messages" list or a bare list of
// messages. Messages with blank text are dropped.
func DecodeTranscript(data []byte, format Format, opts LoadOptions) (string, []Message, error) {
	var doc rawTranscript
	switch format {
	case FormatYAML:
		if err := decodeYAML(data, &doc); err != nil {
			return "", nil, err
		}
	case FormatJSONC:
		if err := decodeJSON(jsonc.ToJSON(data), &doc); err != nil {
			return "", nil, err
		}
	default:
		if err := decodeJSON(data, &doc); err != nil {
			return "", nil, err
		}
	}

	messages := make([]Message, 0, len(doc.Messages))
	for i, raw := range doc.Messages {
		msg, keep, err := raw.toMessage(opts)
		if err != nil {
			return "", nil, fmt.Errorf("message %d: %w", i, err)
		}
		if keep {
			messages = append(messages, msg)
		}
	}
	if len(messages) == 0 {
		return "", nil, ErrEmptyTranscript
	}
	return doc.Key, messages, nil
}

func decodeJSON(data []byte, doc *rawTranscript) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ErrEmptyTranscript
	}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc.Messages); err != nil {
			return fmt.Errorf("parse json: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(trimmed, doc); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	return nil
}

func decodeYAML(data []byte, doc *rawTranscript) error {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if len(node.Content) == 0 {
		return ErrEmptyTranscript
	}
	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		if err := root.Decode(&doc.Messages); err != nil {
			return fmt.Errorf("parse yaml: %w", err)
		}
		return nil
	}
	if err := root.Decode(doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func (r rawMessage) toMessage(opts LoadOptions) (Message, bool, error) {
	senderName := r.Sender
	if senderName == "" {
		senderName = r.Role
	}
	sender, err := ParseSender(senderName)
	if err != nil {
		return Message{}, false, err
	}
	text := r.Text
	if opts.StripMarkup {
		text = StripMarkup(text)
	}
	if strings.TrimSpace(text) == "" {
		return Message{}, false, nil
	}
	msg := Message{Text: text, Sender: sender}
	if ts := strings.TrimSpace(r.Timestamp); ts != "" {
		parsed, err := parseTimestamp(ts)
		if err != nil {
			return Message{}, false, err
		}
		msg.Timestamp = &parsed
	}
	return msg, true, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized timestamp " + value)
}
