package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// DefaultAPIEndpoint is the Materials Project REST root used when none is configured.
const DefaultAPIEndpoint = "https://legacy.materialsproject.org/rest/v2"

// Config holds application configuration.
type Config struct {
	// CacheDir holds one <search name>.json file per search.
	// Relative paths resolve against the base directory. Empty means <baseDir>/cache.
	CacheDir string `json:"cache_dir,omitempty"`

	// CredentialFile is the plain-text file holding the API key.
	// It is NOT a secure secret store. Empty means <baseDir>/apikey.txt.
	CredentialFile string `json:"credential_file,omitempty"`

	// APIEndpoint is the REST root of the materials database.
	APIEndpoint string `json:"api_endpoint,omitempty"`

	// ChunkSize is the server-side batch size for queries. It only affects speed.
	ChunkSize int `json:"chunk_size,omitempty"`

	// MaxSites and NumElements are the structural constraints of every search.
	MaxSites    int `json:"max_sites,omitempty"`
	NumElements int `json:"num_elements,omitempty"`

	// TaskCount is the parallelism hint passed to the classification stage.
	TaskCount int `json:"task_count,omitempty"`

	// CredentialMaxAttempts bounds interactive key entry. 0 means retry forever.
	CredentialMaxAttempts int `json:"credential_max_attempts,omitempty"`

	// ClassifyCommand and AnalyzeCommand are external programs (argv form) run
	// after retrieval. Empty means the stage only logs that it is not configured.
	ClassifyCommand []string `json:"classify_command,omitempty"`
	AnalyzeCommand  []string `json:"analyze_command,omitempty"`

	// DBMaxOpenConns limits open connections to the run-history database.
	// 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits idle connections. 0 means use sql.DB default.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		APIEndpoint: DefaultAPIEndpoint,
		ChunkSize:   10000,
		MaxSites:    30,
		NumElements: 3,
		TaskCount:   1024,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.matsift.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.matsift) and repo (.matsift) directories.
// Repo config is found by walking upward from startDir to find the nearest .matsift/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .matsift/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".matsift", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ResolveCacheDir returns the absolute cache directory for baseDir.
func (c *Config) ResolveCacheDir(baseDir string) string {
	return resolveUnder(baseDir, c.CacheDir, "cache")
}

// ResolveCredentialFile returns the absolute credential file path for baseDir.
func (c *Config) ResolveCredentialFile(baseDir string) string {
	return resolveUnder(baseDir, c.CredentialFile, "apikey.txt")
}

func resolveUnder(baseDir, p, fallback string) string {
	if p == "" {
		return filepath.Join(baseDir, fallback)
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated,
// except commands, which are replaced whole.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		CacheDir:              pickString(overlay.CacheDir, base.CacheDir),
		CredentialFile:        pickString(overlay.CredentialFile, base.CredentialFile),
		APIEndpoint:           pickString(overlay.APIEndpoint, base.APIEndpoint),
		ChunkSize:             pickInt(overlay.ChunkSize, base.ChunkSize),
		MaxSites:              pickInt(overlay.MaxSites, base.MaxSites),
		NumElements:           pickInt(overlay.NumElements, base.NumElements),
		TaskCount:             pickInt(overlay.TaskCount, base.TaskCount),
		CredentialMaxAttempts: pickInt(overlay.CredentialMaxAttempts, base.CredentialMaxAttempts),
		DBMaxOpenConns:        pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:        pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
	}

	result.ClassifyCommand = base.ClassifyCommand
	if len(overlay.ClassifyCommand) > 0 {
		result.ClassifyCommand = overlay.ClassifyCommand
	}
	result.AnalyzeCommand = base.AnalyzeCommand
	if len(overlay.AnalyzeCommand) > 0 {
		result.AnalyzeCommand = overlay.AnalyzeCommand
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
