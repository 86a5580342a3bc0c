package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"chatctx/internal/contextprofile"
	"chatctx/internal/prompts"
	"chatctx/internal/state"
)

func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("CHATCTX_CONFIG_DIR", t.TempDir())
	t.Setenv("CHATCTX_CONFIG_PATH", "")
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(strings.NewReader(stdin), &out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func loadShop(t *testing.T) []state.Message {
	t.Helper()
	conv, err := state.LoadTranscript("testdata/shop.json", state.LoadOptions{})
	if err != nil {
		t.Fatalf("LoadTranscript: %v", err)
	}
	return conv.Messages()
}

func TestDigestMatchesPrepare(t *testing.T) {
	isolateConfig(t)
	got, err := execute(t, "", "digest", "testdata/shop.json")
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if want := contextprofile.Prepare(loadShop(t), 2000) + "\n"; got != want {
		t.Errorf("digest output = %q, want %q", got, want)
	}
}

func TestDigestMaxTokensFallsBackToSkeleton(t *testing.T) {
	isolateConfig(t)
	got, err := execute(t, "", "digest", "testdata/shop.json", "--max-tokens", "5")
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	msgs := loadShop(t)
	want := contextprofile.Format([]state.Message{msgs[0], msgs[3], msgs[4], msgs[5]}) + "\n"
	if got != want {
		t.Errorf("digest output = %q, want %q", got, want)
	}
}

func TestDigestPromptFlag(t *testing.T) {
	isolateConfig(t)
	got, err := execute(t, "", "digest", "testdata/shop.json", "--prompt")
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if !strings.HasPrefix(got, prompts.Base()) || !strings.Contains(got, prompts.HistoryHeader) {
		t.Errorf("expected the digest wrapped in the system prompt, got %q", got)
	}
}

func TestDigestStdin(t *testing.T) {
	isolateConfig(t)
	input := `[{"text": "Hello", "sender": "user"}, {"text": "Hi there", "sender": "bot"}]`
	got, err := execute(t, input, "digest", "-")
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if got != "Client: Hello\n\nAssistant: Hi there\n" {
		t.Errorf("digest output = %q", got)
	}
}

func TestDigestErrors(t *testing.T) {
	isolateConfig(t)

	_, err := execute(t, "", "digest", "testdata/shop.json", "--profile", "nope")
	if !errors.Is(err, contextprofile.ErrUnknownProfile) {
		t.Errorf("expected ErrUnknownProfile, got %v", err)
	}

	_, err = execute(t, "", "digest", "testdata/missing.json")
	var terr *state.TranscriptError
	if !errors.As(err, &terr) || terr.Path != "testdata/missing.json" {
		t.Errorf("expected TranscriptError, got %v", err)
	}

	if _, err := execute(t, "", "digest"); err == nil {
		t.Error("expected an argument error")
	}
}

func TestStatsListsDigestEvents(t *testing.T) {
	isolateConfig(t)

	got, err := execute(t, "", "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(got, "no compaction events") {
		t.Errorf("expected an empty listing, got %q", got)
	}

	if _, err := execute(t, "", "digest", "testdata/shop.json"); err != nil {
		t.Fatalf("digest: %v", err)
	}
	got, err = execute(t, "", "stats", "--conversation", "shop-rental")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(got, "shop-rental") || !strings.Contains(got, "full") || !strings.Contains(got, "6→6") {
		t.Errorf("unexpected stats output %q", got)
	}
}

func TestVersion(t *testing.T) {
	got, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if got != "chatctx version dev\n" {
		t.Errorf("version output = %q", got)
	}
}
