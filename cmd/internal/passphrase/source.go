// Package passphrase resolves keystore passphrases for the CLI.
package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ErrMismatch is returned when the confirmation of a new passphrase differs.
var ErrMismatch = errors.New("passphrases do not match")

// Source resolves the passphrase of one keystore file once, from an
// environment variable or an interactive prompt.
type Source struct {
	envVar  string
	keyPath string
	confirm bool

	isTerminal func() bool
	readSecret func() ([]byte, error)
	prompts    io.Writer

	once  sync.Once
	value string
	err   error
}

func newSource(envVar, keyPath string, confirm bool) *Source {
	fd := int(os.Stdin.Fd())
	return &Source{
		envVar:     strings.TrimSpace(envVar),
		keyPath:    keyPath,
		confirm:    confirm,
		isTerminal: func() bool { return term.IsTerminal(fd) },
		readSecret: func() ([]byte, error) { return term.ReadPassword(fd) },
		prompts:    os.Stderr,
	}
}

// ForUnlock returns the source for decrypting the keystore at keyPath.
func ForUnlock(envVar, keyPath string) *Source {
	return newSource(envVar, keyPath, false)
}

// ForCreate returns the source for encrypting a new keystore at keyPath. An
// interactive passphrase must be typed twice.
func ForCreate(envVar, keyPath string) *Source {
	return newSource(envVar, keyPath, true)
}

// Get returns the cached passphrase or resolves it on first use. A set
// environment variable wins over the terminal. Blank passphrases are
// rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		s.value, s.err = s.resolve()
	})
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := os.LookupEnv(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but empty", s.envVar)
			}
			return value, nil
		}
	}
	if !s.isTerminal() {
		if s.envVar != "" {
			return "", fmt.Errorf("passphrase for %s required; set %s or run interactively", s.keyName(), s.envVar)
		}
		return "", fmt.Errorf("passphrase for %s required and no terminal available", s.keyName())
	}

	label := "Passphrase for " + s.keyName()
	if s.confirm {
		label = "New passphrase for " + s.keyName()
	}
	value, err := s.ask(label)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(value) == "" {
		return "", errors.New("keystore passphrase cannot be empty")
	}
	if s.confirm {
		again, err := s.ask("Repeat passphrase")
		if err != nil {
			return "", err
		}
		if again != value {
			return "", ErrMismatch
		}
	}
	return value, nil
}

func (s *Source) ask(label string) (string, error) {
	fmt.Fprintf(s.prompts, "%s: ", label)
	secret, err := s.readSecret()
	fmt.Fprintln(s.prompts)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(secret), nil
}

func (s *Source) keyName() string {
	if s.keyPath == "" {
		return "keystore"
	}
	return filepath.Base(s.keyPath)
}
