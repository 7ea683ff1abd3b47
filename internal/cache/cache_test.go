package cache

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/matsift/internal/errors"
	"github.com/hpungsan/matsift/internal/record"
)

func threeRecords() record.ResultSet {
	return record.ResultSet{
		{MaterialID: "mp-1", PrettyFormula: "CsSnI3", SpacegroupNum: 221, BandGap: 0.44, NSites: 5, EnergyAboveHull: 0, NElements: 3},
		{MaterialID: "mp-2", PrettyFormula: "BaBiO3", SpacegroupNum: 12, BandGap: 1.02, NSites: 20, EnergyAboveHull: 0.013, NElements: 3},
		{MaterialID: "mp-3", PrettyFormula: "KSbO3", SpacegroupNum: 148, BandGap: 2.5, NSites: 30, EnergyAboveHull: 0.2, NElements: 3},
	}
}

// stores runs a test against both Store implementations.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"file": NewFileStore(filepath.Join(t.TempDir(), "cache")),
		"mem":  NewMemStore(),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for kind, s := range stores(t) {
		t.Run(kind, func(t *testing.T) {
			exists, err := s.Exists("Test")
			require.NoError(t, err)
			require.False(t, exists)

			rs := threeRecords()
			require.NoError(t, s.Save("Test", rs))

			exists, err = s.Exists("Test")
			require.NoError(t, err)
			require.True(t, exists)

			got, err := s.Load("Test")
			require.NoError(t, err)
			if diff := cmp.Diff(rs, got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	for kind, s := range stores(t) {
		t.Run(kind, func(t *testing.T) {
			require.NoError(t, s.Save("Test", threeRecords()))
			require.NoError(t, s.Save("Test", threeRecords()[:1]))

			got, err := s.Load("Test")
			require.NoError(t, err)
			require.Len(t, got, 1)

			entries, err := s.List()
			require.NoError(t, err)
			require.Len(t, entries, 1)
			require.Equal(t, "Test", entries[0].Name)
		})
	}
}

func TestStore_EmptyResultSet(t *testing.T) {
	for kind, s := range stores(t) {
		t.Run(kind, func(t *testing.T) {
			require.NoError(t, s.Save("Empty", nil))
			exists, err := s.Exists("Empty")
			require.NoError(t, err)
			require.True(t, exists)

			got, err := s.Load("Empty")
			require.NoError(t, err)
			require.Empty(t, got)
		})
	}
}

func TestStore_LoadMissing(t *testing.T) {
	for kind, s := range stores(t) {
		t.Run(kind, func(t *testing.T) {
			_, err := s.Load("Nope")
			require.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)
		})
	}
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)

	require.NoError(t, s.Save("ReducedSearch", threeRecords()))

	path := filepath.Join(dir, "ReducedSearch.json")
	require.Equal(t, path, s.Path("ReducedSearch"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	// No temp files left behind.
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "["))
	require.Contains(t, string(data), `"spacegroup.number": 221`)
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)

	cases := map[string]string{
		"truncated":   `[{"material_id": "mp-1"`,
		"wrong shape": `{"results": []}`,
		"bad record":  `[{"material_id": "mp-1"}]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(s.Path(name), []byte(body), 0600))

			exists, err := s.Exists(name)
			require.NoError(t, err)
			require.True(t, exists)

			_, err = s.Load(name)
			require.True(t, errors.Is(err, errors.ErrCacheCorrupt), "got %v", err)
		})
	}
}

func TestFileStore_RejectsSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	dir := t.TempDir()
	s := NewFileStore(dir)

	outside := filepath.Join(t.TempDir(), "elsewhere.json")
	require.NoError(t, os.WriteFile(outside, []byte(`[]`), 0600))
	require.NoError(t, os.Symlink(outside, s.Path("Linked")))

	_, err := s.Load("Linked")
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)

	err = s.Save("Linked", threeRecords())
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)

	data, err := os.ReadFile(outside)
	require.NoError(t, err)
	require.Equal(t, `[]`, string(data))
}

func TestFileStore_ListMissingDir(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "absent"))
	entries, err := s.List()
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestFileStore_ListIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	require.NoError(t, s.Save("b", nil))
	require.NoError(t, s.Save("a", nil))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0700))

	entries, err := s.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "a", entries[0].Name)
	require.Equal(t, "b", entries[1].Name)
}

func TestMemStore_CorruptEntry(t *testing.T) {
	s := NewMemStore()
	s.Put("Test", []byte(`not json`))

	_, err := s.Load("Test")
	require.True(t, errors.Is(err, errors.ErrCacheCorrupt))
}

func TestStore_AliasedNamesNeverShareEntry(t *testing.T) {
	aliases := []string{"Sn/Bi", "Sn..Bi", "-Sn-Bi-", " Sn-Bi", `Sn\Bi`, ""}

	for kind, s := range stores(t) {
		t.Run(kind, func(t *testing.T) {
			require.NoError(t, s.Save("Sn-Bi", threeRecords()))

			for _, name := range aliases {
				exists, err := s.Exists(name)
				require.True(t, errors.Is(err, errors.ErrInvalidRequest), "Exists(%q): got %v", name, err)
				require.False(t, exists)

				_, err = s.Load(name)
				require.True(t, errors.Is(err, errors.ErrInvalidRequest), "Load(%q): got %v", name, err)

				err = s.Save(name, nil)
				require.True(t, errors.Is(err, errors.ErrInvalidRequest), "Save(%q): got %v", name, err)
			}

			rs, err := s.Load("Sn-Bi")
			require.NoError(t, err)
			require.Len(t, rs, 3)

			entries, err := s.List()
			require.NoError(t, err)
			require.Len(t, entries, 1)
		})
	}
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"ReducedSearch", "Sn-Bi", "spaced name", "v1.2"} {
		require.NoError(t, ValidateName(name), name)
	}
	for _, name := range []string{"", "unnamed/", "../x", "a--b", ".hidden", "tab\tname"} {
		require.Error(t, ValidateName(name), name)
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ReducedSearch", "ReducedSearch"},
		{"../etc/passwd", "etc-passwd"},
		{`a\b`, "a-b"},
		{"with\x00null", "withnull"},
		{"  spaced name ", "spaced name"},
		{"..", "unnamed"},
		{"", "unnamed"},
		{".hidden", "hidden"},
	}
	for _, tt := range tests {
		if got := SanitizeForFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeForFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
