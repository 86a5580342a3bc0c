package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"chatctx/internal/config"
	"chatctx/internal/contextprofile"
	"chatctx/internal/logging"
	"chatctx/internal/prompts"
	"chatctx/internal/state"
)

var commandSuggestions = []prompt.Suggest{
	{Text: "/help", Description: "show this text"},
	{Text: "/digest", Description: "print the history digest"},
	{Text: "/prompt", Description: "print the digest inside the system prompt"},
	{Text: "/stats", Description: "show the last compaction and input history size"},
	{Text: "/budget", Description: "set the token budget (/budget 1500)"},
	{Text: "/clear", Description: "drop every message"},
	{Text: "/quit", Description: "exit the program"},
	{Text: "/exit", Description: "exit the program"},
}

// session is one REPL conversation fed line by line.
type session struct {
	conv    *state.Conversation
	profile contextprofile.Profile
	cfg     config.Config
	history *inputHistory
	out     io.Writer
}

func newReplCmd(a *app) *cobra.Command {
	var (
		key     string
		profile string
	)
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Build a conversation interactively and inspect its digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func() error {
				p, err := a.profile(profile, a.cfg)
				if err != nil {
					return err
				}
				s := newSession(state.NewConversation(key, nil), p, a.cfg, loadInputHistory(a.cfg.HistoryPath), a.out)
				ctx := cmd.Context()
				if ctx == nil {
					ctx = context.Background()
				}
				if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
					return s.runPrompt(ctx)
				}
				return s.runLines(ctx, a.in)
			})
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", "repl", "Conversation key recorded with compaction events")
	cmd.Flags().StringVar(&profile, "profile", "", "Context profile: default or relevance")
	return cmd
}

func newSession(conv *state.Conversation, profile contextprofile.Profile, cfg config.Config, history *inputHistory, out io.Writer) *session {
	s := &session{conv: conv, profile: profile, cfg: cfg, history: history, out: out}
	if emitter, ok := profile.(contextprofile.CompactionEventEmitter); ok {
		emitter.SetCompactionCallback(s.onCompaction)
	}
	return s
}

// onCompaction traces profile events in dev mode.
func (s *session) onCompaction(eventType string, data any) error {
	switch ev := data.(type) {
	case contextprofile.CompactionEvent:
		logging.DevLog("%s conv=%s tier=%s messages=%d->%d tokens=%d/%d",
			eventType, ev.Conversation, ev.Tier, ev.MessagesBefore, ev.MessagesAfter, ev.EstimatedTokens, ev.TokenBudget)
	default:
		logging.DevLog("%s conv=%s %v", eventType, s.conv.Key(), data)
	}
	return nil
}

type promptExit struct{}

func (s *session) runPrompt(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var exitRequested atomic.Bool

	fmt.Fprintln(s.out, "Type messages as 'user: ...' or 'assistant: ...'; /help lists commands.")

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(promptExit); ok {
				err = nil
				return
			}
			panic(r)
		}
	}()

	executor := func(in string) {
		if exitRequested.Load() {
			return
		}
		line := strings.TrimSpace(in)
		if line == "" {
			return
		}
		s.history.Add(line)
		if s.handleLine(ctx, line) {
			exitRequested.Store(true)
			cancel()
			panic(promptExit{})
		}
	}

	p := prompt.New(
		executor,
		commandCompleter,
		prompt.OptionHistory(s.history.Entries()),
		prompt.OptionTitle("chatctx"),
		prompt.OptionLivePrefix(func() (string, bool) {
			return fmt.Sprintf("[%s %d] > ", s.conv.Key(), s.conv.Len()), true
		}),
		prompt.OptionAddKeyBind(prompt.KeyBind{
			Key: prompt.ControlD,
			Fn: func(buf *prompt.Buffer) {
				if buf.Text() == "" {
					exitRequested.Store(true)
					cancel()
					panic(promptExit{})
				}
			},
		}),
		prompt.OptionSetExitCheckerOnInput(func(string, bool) bool {
			return exitRequested.Load() || ctx.Err() != nil
		}),
	)
	p.Run()
	return nil
}

func commandCompleter(doc prompt.Document) []prompt.Suggest {
	prefix := strings.TrimLeft(doc.TextBeforeCursor(), " \t")
	if !strings.HasPrefix(prefix, "/") {
		return nil
	}
	return prompt.FilterHasPrefix(commandSuggestions, doc.GetWordBeforeCursor(), true)
}

// runLines drives the session from a non-terminal reader such as a pipe.
func (s *session) runLines(ctx context.Context, in io.Reader) error {
	reader := bufio.NewReader(in)
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := reader.ReadString('\n')
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			s.history.Add(trimmed)
			if s.handleLine(ctx, trimmed) {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
	}
}

// handleLine applies one input line and reports whether the session should end.
func (s *session) handleLine(ctx context.Context, line string) bool {
	if strings.HasPrefix(line, "/") {
		return s.handleCommand(ctx, line)
	}
	msg := parseMessageLine(line)
	s.conv.Append(msg)
	fmt.Fprintf(s.out, "+%s (%d messages)\n", msg.Sender, s.conv.Len())
	return false
}

// parseMessageLine reads "user: text" or "assistant: text"; anything else is a user message.
func parseMessageLine(line string) state.Message {
	if prefix, rest, ok := strings.Cut(line, ":"); ok {
		if sender, err := state.ParseSender(prefix); err == nil && strings.TrimSpace(rest) != "" {
			return state.Message{Text: strings.TrimSpace(rest), Sender: sender}
		}
	}
	return state.Message{Text: line, Sender: state.SenderUser}
}

func (s *session) handleCommand(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/help":
		for _, sug := range commandSuggestions {
			fmt.Fprintf(s.out, "  %-8s %s\n", sug.Text, sug.Description)
		}
	case "/clear":
		s.conv.Clear()
		fmt.Fprintln(s.out, "conversation cleared")
	case "/digest", "/prompt":
		prepared, err := s.profile.Prepare(ctx, s.conv)
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			return false
		}
		text := prepared.Digest
		if fields[0] == "/prompt" {
			text = prompts.Assemble(prompts.Combine(s.cfg.SystemPrompt), text)
		}
		fmt.Fprintln(s.out, text)
		fmt.Fprintf(s.out, "-- tier %s, %d of %d messages, ~%d tokens\n",
			prepared.Tier, len(prepared.Messages), s.conv.Len(), contextprofile.EstimateTokens(prepared.Digest))
	case "/budget":
		s.setBudget(fields[1:])
	case "/stats":
		s.printStats()
	default:
		fmt.Fprintf(s.out, "unknown command %s (try /help)\n", fields[0])
	}
	return false
}

func (s *session) setBudget(args []string) {
	if len(args) != 1 {
		fmt.Fprintf(s.out, "budget is %d tokens\n", s.cfg.TokenBudget())
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		fmt.Fprintf(s.out, "invalid budget %q\n", args[0])
		return
	}
	reloadable, ok := s.profile.(contextprofile.ConfigReloadable)
	if !ok {
		fmt.Fprintln(s.out, "this profile has no token budget")
		return
	}
	cfg := s.cfg
	cfg.MaxTokens = n
	cfg.ContextBudgetPercent = 0
	if err := reloadable.ReloadConfig(cfg); err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	s.cfg = cfg
	fmt.Fprintf(s.out, "budget set to %d tokens\n", n)
}

func (s *session) printStats() {
	count, chars := s.history.Stats()
	fmt.Fprintf(s.out, "conversation %s: %d messages, started %s ago, last change %s ago; input history: %d lines, %d chars\n",
		s.conv.Key(), s.conv.Len(),
		time.Since(s.conv.CreatedAt()).Round(time.Second), time.Since(s.conv.UpdatedAt()).Round(time.Second),
		count, chars)
	emitter, ok := s.profile.(contextprofile.CompactionEventEmitter)
	if !ok {
		return
	}
	history := emitter.GetCompactionHistory()
	if len(history) == 0 {
		fmt.Fprintln(s.out, "no compaction yet")
		return
	}
	last := history[len(history)-1]
	fmt.Fprintf(s.out, "last compaction: tier %s, %d→%d messages, %d merged, %d/%d tokens\n",
		last.Tier, last.MessagesBefore, last.MessagesAfter, last.MessagesMerged, last.EstimatedTokens, last.TokenBudget)
}
