package credential

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/matsift/internal/errors"
)

// scriptedPrompter returns queued answers, then io.EOF.
type scriptedPrompter struct {
	answers []string
	calls   int
}

func (p *scriptedPrompter) Prompt(context.Context, string) (string, error) {
	if p.calls >= len(p.answers) {
		return "", io.EOF
	}
	a := p.answers[p.calls]
	p.calls++
	return a, nil
}

// allowProber accepts only the listed keys.
type allowProber struct {
	valid  map[string]bool
	probed []string
}

func (p *allowProber) ProbeConnectivity(_ context.Context, key string) error {
	p.probed = append(p.probed, key)
	if p.valid[key] {
		return nil
	}
	return fmt.Errorf("401 Unauthorized")
}

func TestObtain_StoredKeyReturnedWithoutProbe(t *testing.T) {
	store := &MemKeyStore{Key: "stored-key\n", Stored: true}
	prober := &allowProber{}
	prompter := &scriptedPrompter{}

	p := &Provider{Store: store, Prompter: prompter, Prober: prober}
	key, err := p.Obtain(context.Background())
	require.NoError(t, err)
	require.Equal(t, "stored-key\n", key)
	require.Empty(t, prober.probed)
	require.Zero(t, prompter.calls)
	require.Zero(t, store.Writes)
}

func TestObtain_FirstCandidateValid(t *testing.T) {
	store := &MemKeyStore{}
	prober := &allowProber{valid: map[string]bool{"good": true}}
	var out bytes.Buffer

	p := &Provider{Store: store, Prompter: &scriptedPrompter{answers: []string{" good "}}, Prober: prober, Out: &out}
	key, err := p.Obtain(context.Background())
	require.NoError(t, err)
	require.Equal(t, "good", key)
	require.Equal(t, "good", store.Key)
	require.Equal(t, 1, store.Writes)
	require.Contains(t, out.String(), "API key is valid")
}

func TestObtain_RetriesUntilValid(t *testing.T) {
	dir := t.TempDir()
	store := &FileKeyStore{Path: filepath.Join(dir, "apikey.txt")}
	prober := &allowProber{valid: map[string]bool{"third": true}}
	var out bytes.Buffer

	p := &Provider{
		Store:    store,
		Prompter: &scriptedPrompter{answers: []string{"first", "second", "third"}},
		Prober:   prober,
		Out:      &out,
	}
	key, err := p.Obtain(context.Background())
	require.NoError(t, err)
	require.Equal(t, "third", key)
	require.Equal(t, []string{"first", "second", "third"}, prober.probed)

	data, err := os.ReadFile(store.Path)
	require.NoError(t, err)
	require.Equal(t, "third", string(data))

	require.Equal(t, 1, strings.Count(out.String(), "API key first was invalid."))
	require.Equal(t, 1, strings.Count(out.String(), "API key second was invalid."))
}

func TestObtain_EmptyInputReprompts(t *testing.T) {
	prober := &allowProber{valid: map[string]bool{"k": true}}
	p := &Provider{Store: &MemKeyStore{}, Prompter: &scriptedPrompter{answers: []string{"", "  ", "k"}}, Prober: prober}

	key, err := p.Obtain(context.Background())
	require.NoError(t, err)
	require.Equal(t, "k", key)
	require.Equal(t, []string{"k"}, prober.probed)
}

func TestObtain_MaxAttempts(t *testing.T) {
	store := &MemKeyStore{}
	p := &Provider{
		Store:       store,
		Prompter:    &scriptedPrompter{answers: []string{"a", "b", "c"}},
		Prober:      &allowProber{},
		MaxAttempts: 2,
	}
	_, err := p.Obtain(context.Background())
	require.True(t, errors.Is(err, errors.ErrCredentialInvalid), "got %v", err)
	require.False(t, store.Stored)
}

func TestObtain_PrompterFailureIsTerminal(t *testing.T) {
	store := &MemKeyStore{}
	p := &Provider{Store: store, Prompter: NoPrompter{}, Prober: &allowProber{}}

	_, err := p.Obtain(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrInternal))
	require.False(t, store.Stored)
}

func TestObtain_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &Provider{Store: &MemKeyStore{}, Prompter: &scriptedPrompter{answers: []string{"x"}}, Prober: &allowProber{}}
	_, err := p.Obtain(ctx)
	require.True(t, errors.Is(err, errors.ErrCancelled))
}

func TestFileKeyStore(t *testing.T) {
	s := &FileKeyStore{Path: filepath.Join(t.TempDir(), "nested", "apikey.txt")}

	_, ok, err := s.Read()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Write("abc123"))
	key, ok, err := s.Read()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc123", key)

	require.NoError(t, s.Write("def456"))
	key, _, err = s.Read()
	require.NoError(t, err)
	require.Equal(t, "def456", key)
}

func TestFileKeyStore_TrimsHandWrittenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apikey.txt")
	s := &FileKeyStore{Path: path}

	require.NoError(t, os.WriteFile(path, []byte("  abc123\r\n"), 0600))
	key, ok, err := s.Read()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc123", key)

	require.NoError(t, os.WriteFile(path, []byte("\n"), 0600))
	_, ok, err = s.Read()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestObtain_StoredKeyWithNewlineUsable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apikey.txt")
	require.NoError(t, os.WriteFile(path, []byte("abc123\n"), 0600))

	p := &Provider{Store: &FileKeyStore{Path: path}, Prompter: NoPrompter{}}
	key, err := p.Obtain(context.Background())
	require.NoError(t, err)
	require.Equal(t, "abc123", key)
}

func TestLinePrompter(t *testing.T) {
	var out bytes.Buffer
	p := NewLinePrompter(strings.NewReader("first\r\nsecond\nlast"), &out)

	for _, want := range []string{"first", "second", "last"} {
		got, err := p.Prompt(context.Background(), "> ")
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := p.Prompt(context.Background(), "> ")
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, "> > > > ", out.String())
}
