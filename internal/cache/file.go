package cache

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hpungsan/matsift/internal/errors"
	"github.com/hpungsan/matsift/internal/record"
)

const fileExt = ".json"

// FileStore keeps each search in <dir>/<name>.json.
// It assumes a single process; concurrent runs against one name race.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir. The directory is created on first Save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the cache directory.
func (s *FileStore) Dir() string { return s.dir }

// Path returns the file that holds results for name.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, SanitizeForFilename(name)+fileExt)
}

// Exists reports whether a cache file for name is present.
func (s *FileStore) Exists(name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	info, err := os.Lstat(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.NewInternal(fmt.Errorf("failed to stat cache file: %w", err))
	}
	if info.IsDir() {
		return false, errors.NewInternal(fmt.Errorf("cache path %s is a directory", s.Path(name)))
	}
	return true, nil
}

// Load reads and parses the cache file for name.
func (s *FileStore) Load(name string) (record.ResultSet, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	f, err := openFileNoFollowRead(s.Path(name))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) || errors.Is(err, errors.ErrInvalidRequest) {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open cache file: %w", err))
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read cache file: %w", err))
	}

	rs, err := record.Decode(data)
	if err != nil {
		return nil, errors.NewCacheCorrupt(name, err)
	}
	return rs, nil
}

// Save writes rs for name through a temp file and rename, replacing any prior file.
func (s *FileStore) Save(name string, rs record.ResultSet) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	data, err := record.Encode(rs)
	if err != nil {
		return errors.NewInternal(err)
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create cache directory: %w", err))
	}

	target := s.Path(name)

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := target + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create cache file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return errors.NewInternal(err)
	}
	if _, err := file.Write([]byte("\n")); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close cache file: %w", err))
	}
	file = nil

	// os.Rename would replace a symlink rather than follow it, but a symlink
	// here means someone else is managing the path.
	if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("cache path is a symlink")
	}

	if err := os.Rename(tempPath, target); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to finalize cache file: %w", err))
	}

	success = true
	return nil
}

// List returns every cache file in the directory, sorted by name.
func (s *FileStore) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to read cache directory: %w", err))
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !de.Type().IsRegular() {
			continue
		}
		fileName := de.Name()
		if !strings.HasSuffix(fileName, fileExt) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:      strings.TrimSuffix(fileName, fileExt),
			Path:      filepath.Join(s.dir, fileName),
			SizeBytes: info.Size(),
			UpdatedAt: info.ModTime().UTC(),
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

var _ Store = (*FileStore)(nil)
