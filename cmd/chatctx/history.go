package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// maxHistoryEntries bounds the entries handed to the prompt; the file keeps everything.
const maxHistoryEntries = 500

// inputHistory is the REPL's line history, appended to a file as lines are entered.
type inputHistory struct {
	path    string
	entries []string
	chars   int
	mu      sync.Mutex
}

func loadInputHistory(path string) *inputHistory {
	h := &inputHistory{path: path}
	if path == "" {
		return h
	}
	f, err := os.Open(path)
	if err != nil {
		return h
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		h.push(scanner.Text())
	}
	return h
}

func (h *inputHistory) push(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	h.entries = append(h.entries, line)
	h.chars += len(line)
	if over := len(h.entries) - maxHistoryEntries; over > 0 {
		for _, dropped := range h.entries[:over] {
			h.chars -= len(dropped)
		}
		h.entries = h.entries[over:]
	}
	return true
}

// Entries returns a copy, oldest first.
func (h *inputHistory) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	cpy := make([]string, len(h.entries))
	copy(cpy, h.entries)
	return cpy
}

// Add records line and appends it to the history file. Write errors are ignored.
func (h *inputHistory) Add(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.push(line) || h.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = fmt.Fprintln(f, strings.TrimSpace(line))
}

func (h *inputHistory) Stats() (count, chars int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries), h.chars
}
