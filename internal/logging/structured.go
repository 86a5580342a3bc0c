package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp    string                 `json:"ts"`
	Level        string                 `json:"level"`
	Component    string                 `json:"component,omitempty"`
	Conversation string                 `json:"conversation,omitempty"`
	Message      string                 `json:"msg"`
	Fields       map[string]interface{} `json:"fields,omitempty"`
}

// StructuredLogger wraps a standard logger with structured logging
type StructuredLogger struct {
	logger       *log.Logger
	component    string
	conversation string
	jsonMode     bool
}

// NewStructuredLogger creates a new structured logger. A nil logger falls back to the
// shared Logger.
func NewStructuredLogger(logger *log.Logger, component string, jsonMode bool) *StructuredLogger {
	if logger == nil {
		logger = Logger
	}
	return &StructuredLogger{
		logger:    logger,
		component: component,
		jsonMode:  jsonMode,
	}
}

// WithConversation returns a logger tagged with a conversation key
func (s *StructuredLogger) WithConversation(key string) *StructuredLogger {
	return &StructuredLogger{
		logger:       s.logger,
		component:    s.component,
		conversation: key,
		jsonMode:     s.jsonMode,
	}
}

// WithComponent returns a logger with component context
func (s *StructuredLogger) WithComponent(component string) *StructuredLogger {
	return &StructuredLogger{
		logger:       s.logger,
		component:    component,
		conversation: s.conversation,
		jsonMode:     s.jsonMode,
	}
}

func (s *StructuredLogger) log(level string, msg string, fields map[string]interface{}) {
	entry := LogEntry{
		Timestamp:    time.Now().Format(time.RFC3339),
		Level:        level,
		Component:    s.component,
		Conversation: s.conversation,
		Message:      msg,
		Fields:       fields,
	}

	if s.jsonMode {
		data, _ := json.Marshal(entry)
		s.logger.Println(string(data))
		return
	}

	var b strings.Builder
	if s.component != "" {
		fmt.Fprintf(&b, "[%s] ", s.component)
	}
	if s.conversation != "" {
		fmt.Fprintf(&b, "[conv:%s] ", s.conversation)
	}
	b.WriteString(msg)
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	s.logger.Println(b.String())
}

// Info logs an info message
func (s *StructuredLogger) Info(msg string, fields ...map[string]interface{}) {
	s.log("INFO", msg, mergeFields(fields...))
}

// Error logs an error message
func (s *StructuredLogger) Error(msg string, fields ...map[string]interface{}) {
	s.log("ERROR", msg, mergeFields(fields...))
}

// Debug logs a debug message, only in dev mode
func (s *StructuredLogger) Debug(msg string, fields ...map[string]interface{}) {
	if !DevMode {
		return
	}
	s.log("DEBUG", msg, mergeFields(fields...))
}

// Warn logs a warning message
func (s *StructuredLogger) Warn(msg string, fields ...map[string]interface{}) {
	s.log("WARN", msg, mergeFields(fields...))
}

func mergeFields(fields ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for _, m := range fields {
		for k, v := range m {
			result[k] = v
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
