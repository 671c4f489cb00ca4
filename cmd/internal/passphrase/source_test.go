package passphrase

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const testEnv = "VOTELEDGER_TEST_PASS"

// scripted replaces the terminal with a fixed list of typed answers.
func scripted(src *Source, answers ...string) *bytes.Buffer {
	prompts := &bytes.Buffer{}
	src.prompts = prompts
	src.isTerminal = func() bool { return true }
	src.readSecret = func() ([]byte, error) {
		if len(answers) == 0 {
			return nil, errors.New("no input")
		}
		next := answers[0]
		answers = answers[1:]
		return []byte(next), nil
	}
	return prompts
}

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv(testEnv, "s3cret")
	src := ForUnlock(testEnv, "/keys/alice.json")
	scripted(src, "typed")
	got, err := src.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "s3cret" {
		t.Fatalf("passphrase = %q", got)
	}
	t.Setenv(testEnv, "changed")
	if again, _ := src.Get(); again != "s3cret" {
		t.Fatalf("expected cached passphrase, got %q", again)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv(testEnv, "   ")
	if _, err := ForUnlock(testEnv, "k.json").Get(); err == nil {
		t.Fatalf("expected blank passphrase to be rejected")
	}
}

func TestUnlockPromptNamesKeystore(t *testing.T) {
	src := ForUnlock("", "/keys/alice.json")
	prompts := scripted(src, "hunter2")
	got, err := src.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "hunter2" {
		t.Fatalf("passphrase = %q", got)
	}
	if !strings.Contains(prompts.String(), "Passphrase for alice.json") {
		t.Fatalf("unexpected prompt %q", prompts.String())
	}
	if strings.Contains(prompts.String(), "Repeat") {
		t.Fatalf("unlock should not ask for confirmation")
	}
}

func TestCreateRequiresConfirmation(t *testing.T) {
	src := ForCreate("", "new.json")
	prompts := scripted(src, "first", "first")
	if got, err := src.Get(); err != nil || got != "first" {
		t.Fatalf("get = %q, %v", got, err)
	}
	if !strings.Contains(prompts.String(), "New passphrase for new.json") || !strings.Contains(prompts.String(), "Repeat passphrase") {
		t.Fatalf("unexpected prompts %q", prompts.String())
	}

	mismatched := ForCreate("", "new.json")
	scripted(mismatched, "first", "second")
	if _, err := mismatched.Get(); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}

	blank := ForCreate("", "new.json")
	scripted(blank, "  ", "  ")
	if _, err := blank.Get(); err == nil {
		t.Fatalf("expected blank passphrase to be rejected")
	}
}

func TestNoTerminalPointsAtEnvironment(t *testing.T) {
	src := ForUnlock(testEnv, "alice.json")
	src.isTerminal = func() bool { return false }
	_, err := src.Get()
	if err == nil || !strings.Contains(err.Error(), testEnv) || !strings.Contains(err.Error(), "alice.json") {
		t.Fatalf("unexpected error %v", err)
	}
}
