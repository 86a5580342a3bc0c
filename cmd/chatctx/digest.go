package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"chatctx/internal/prompts"
	"chatctx/internal/state"
)

type digestOptions struct {
	maxTokens int
	profile   string
	format    string
	render    bool
	prompt    bool
	html      bool
}

func newDigestCmd(a *app) *cobra.Command {
	var opts digestOptions
	cmd := &cobra.Command{
		Use:   "digest <transcript>",
		Short: "Print the history digest of a transcript (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func() error {
				return runDigest(cmd.Context(), a, args[0], opts)
			})
		},
	}
	f := cmd.Flags()
	f.IntVarP(&opts.maxTokens, "max-tokens", "t", 0, "Token budget (default from config)")
	f.StringVar(&opts.profile, "profile", "", "Context profile: default or relevance")
	f.StringVar(&opts.format, "format", "", "Transcript format for stdin: json, jsonc or yaml")
	f.BoolVar(&opts.render, "render", false, "Render the digest as markdown when stdout is a terminal")
	f.BoolVar(&opts.prompt, "prompt", false, "Wrap the digest in the configured system prompt")
	f.BoolVar(&opts.html, "html", false, "Strip HTML markup from message text")
	return cmd
}

func runDigest(ctx context.Context, a *app, path string, opts digestOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	conv, err := loadConversation(a.in, path, opts)
	if err != nil {
		return err
	}

	cfg := a.cfg
	if opts.maxTokens > 0 {
		cfg.MaxTokens = opts.maxTokens
		cfg.ContextBudgetPercent = 0
	}
	profile, err := a.profile(opts.profile, cfg)
	if err != nil {
		return err
	}
	prepared, err := profile.Prepare(ctx, conv)
	if err != nil {
		return fmt.Errorf("prepare %s: %w", conv.Key(), err)
	}

	text := prepared.Digest
	if opts.prompt {
		text = prompts.Assemble(prompts.Combine(cfg.SystemPrompt), text)
	}
	if opts.render {
		text = renderMarkdown(text, a.out)
	}
	fmt.Fprintln(a.out, text)
	return nil
}

func loadConversation(in io.Reader, path string, opts digestOptions) (*state.Conversation, error) {
	loadOpts := state.LoadOptions{StripMarkup: opts.html}
	if path != "-" {
		return state.LoadTranscript(path, loadOpts)
	}
	format := state.FormatJSON
	if opts.format != "" {
		format = state.FormatForPath("stdin." + strings.ToLower(opts.format))
	}
	return state.ReadTranscript(in, format, loadOpts)
}

// renderMarkdown styles text with glamour when out is a terminal and returns it
// unchanged otherwise.
func renderMarkdown(text string, out io.Writer) string {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return text
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(0),
	)
	if err != nil {
		return text
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}
