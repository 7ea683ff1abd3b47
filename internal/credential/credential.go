// Package credential obtains the API key needed for remote queries.
//
// The key lives in a plain, unencrypted file. Treat it as a convenience cache,
// not a secret store.
package credential

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/matsift/internal/errors"
)

// KeyStore persists a single key.
type KeyStore interface {
	// Read returns the stored key and whether one exists.
	Read() (string, bool, error)
	// Write replaces the stored key.
	Write(key string) error
}

// Prompter asks the operator for a candidate key.
type Prompter interface {
	Prompt(ctx context.Context, message string) (string, error)
}

// Prober checks a key against the remote service with a cheap known-good request.
type Prober interface {
	ProbeConnectivity(ctx context.Context, key string) error
}

// Provider implements stored-or-interactive key acquisition.
type Provider struct {
	Store    KeyStore
	Prompter Prompter
	Prober   Prober
	// Out receives operator-facing messages. Nil discards them.
	Out io.Writer
	// MaxAttempts bounds the prompt loop. 0 retries forever.
	MaxAttempts int
	Logger      *zap.Logger
}

// Obtain returns the stored key without re-validating it. With no stored key
// it prompts, probes, and persists the first candidate the service accepts;
// rejected candidates are reported and the operator is asked again.
func (p *Provider) Obtain(ctx context.Context) (string, error) {
	key, ok, err := p.Store.Read()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to read stored key: %w", err))
	}
	if ok {
		return key, nil
	}

	p.say("\nIt seems you do not have an API key saved.\n")
	for attempt := 1; p.MaxAttempts <= 0 || attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", errors.NewCancelled("credential entry")
		}

		candidate, err := p.Prompter.Prompt(ctx, "\nPlease input your API key: ")
		if err != nil {
			return "", errors.NewInternal(fmt.Errorf("failed to read key: %w", err))
		}
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			p.say("An empty key is not valid.\n")
			continue
		}

		p.say(fmt.Sprintf("Testing your given API key: %s\n", candidate))
		if err := p.Prober.ProbeConnectivity(ctx, candidate); err != nil {
			p.logger().Debug("key probe failed", zap.Int("attempt", attempt), zap.Error(err))
			p.say(fmt.Sprintf("API key %s was invalid.\n", candidate))
			continue
		}

		p.say("API key is valid. Saving API key.\n")
		if err := p.Store.Write(candidate); err != nil {
			return "", errors.NewInternal(fmt.Errorf("failed to save key: %w", err))
		}
		return candidate, nil
	}

	return "", errors.NewCredentialInvalid(fmt.Errorf("no valid key after %d attempts", p.MaxAttempts))
}

func (p *Provider) say(msg string) {
	if p.Out != nil {
		fmt.Fprint(p.Out, msg)
	}
}

func (p *Provider) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// FileKeyStore keeps the key verbatim in a single file.
type FileKeyStore struct {
	Path string
}

// Read returns the file content with surrounding whitespace removed, so a
// hand-edited file ending in a newline still yields a usable key. A blank
// file counts as no key.
func (s *FileKeyStore) Read() (string, bool, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", false, nil
	}
	return key, true, nil
}

// Write replaces the file with key, creating parent directories as needed.
func (s *FileKeyStore) Write(key string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0700); err != nil {
		return err
	}
	return os.WriteFile(s.Path, []byte(key), 0600)
}

// MemKeyStore is an in-memory KeyStore.
type MemKeyStore struct {
	Key    string
	Stored bool
	Writes int
}

// Read returns the held key.
func (s *MemKeyStore) Read() (string, bool, error) {
	return s.Key, s.Stored, nil
}

// Write replaces the held key.
func (s *MemKeyStore) Write(key string) error {
	s.Key = key
	s.Stored = true
	s.Writes++
	return nil
}

// LinePrompter prompts on W and reads one line per call from R.
type LinePrompter struct {
	W io.Writer
	r *bufio.Reader
}

// NewLinePrompter wraps r for line-at-a-time reads.
func NewLinePrompter(r io.Reader, w io.Writer) *LinePrompter {
	return &LinePrompter{W: w, r: bufio.NewReader(r)}
}

// Prompt writes message and returns the next input line.
// It does not honor ctx while blocked on input.
func (p *LinePrompter) Prompt(_ context.Context, message string) (string, error) {
	if p.W != nil {
		fmt.Fprint(p.W, message)
	}
	line, err := p.r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// NoPrompter fails every prompt. Used where no operator is attached.
type NoPrompter struct{}

// Prompt always fails.
func (NoPrompter) Prompt(context.Context, string) (string, error) {
	return "", fmt.Errorf("no API key saved and no terminal to ask for one; run `matsift key set` first")
}
