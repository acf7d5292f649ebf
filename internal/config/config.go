package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverLocal    = "local"
)

// configNames are tried in order inside a config directory.
var configNames = []string{"config.json", "config.yaml", "config.yml"}

// Config holds application configuration.
type Config struct {
	// StorageDriver selects the persistence backend: "sqlite" (default), "postgres", or "local".
	StorageDriver string `json:"storage_driver,omitempty" yaml:"storage_driver,omitempty"`

	// PostgresDSN is the connection string used when StorageDriver is "postgres".
	PostgresDSN string `json:"postgres_dsn,omitempty" yaml:"postgres_dsn,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use the driver default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" yaml:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections (sqlite only).
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" yaml:"db_max_idle_conns,omitempty"`

	// Bind and Port are the web UI listen address.
	Bind string `json:"bind,omitempty" yaml:"bind,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`

	// GenerationURL is the base URL of the generation endpoint.
	// Empty means the endpoint served by this process.
	GenerationURL string `json:"generation_url,omitempty" yaml:"generation_url,omitempty"`

	// AnonKey is the bearer token sent to (and required by) the generation endpoint.
	AnonKey string `json:"anon_key,omitempty" yaml:"anon_key,omitempty"`

	// Model is the chat model used by the served generation endpoint.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// ModelAPIKey authenticates against the model provider. Usually set via GEMINI_API_KEY.
	ModelAPIKey string `json:"model_api_key,omitempty" yaml:"model_api_key,omitempty"`

	// SessionSecret signs anonymous owner cookies. Generated and saved on first run if empty.
	SessionSecret string `json:"session_secret,omitempty" yaml:"session_secret,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`

	// AllowedPaths lists extra directories export/import may read or write.
	// Only absolute paths are honored. <base>/exports is always allowed.
	AllowedPaths []string `json:"allowed_paths,omitempty" yaml:"allowed_paths,omitempty"`

	// AllowUnsafePaths lifts the directory restriction on export/import paths.
	// Symlinks are still rejected.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty" yaml:"allow_unsafe_paths,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		StorageDriver: DriverSQLite,
		Bind:          "127.0.0.1",
		Port:          8787,
		AnonKey:       "playbook-anon",
		Model:         "gemini-2.5-flash",
		LogLevel:      "info",
	}
}

// Validate checks values that can't be defaulted.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverSQLite, DriverLocal:
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return errors.New("postgres_dsn is required when storage_driver is postgres")
		}
	default:
		return fmt.Errorf("unknown storage_driver %q (want sqlite, postgres, or local)", c.StorageDriver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}

// GenerationBaseURL returns the configured endpoint or this server's own address.
func (c *Config) GenerationBaseURL() string {
	if c.GenerationURL != "" {
		return strings.TrimRight(c.GenerationURL, "/")
	}
	host := c.Bind
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Port)
}

// Load loads configuration from baseDir/config.{json,yaml,yml}.
// Returns default config if no file exists.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.playbook.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(findConfigFile(baseDir))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// LoadWithRepo loads configuration from both global (~/.playbook) and repo (.playbook) directories.
// Repo config is found by walking upward from startDir.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(findConfigFile(globalDir))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .playbook config file.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		if path := findConfigFile(filepath.Join(dir, ".playbook")); path != "" {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ApplyEnv overrides config values from environment variables.
// getenv is os.Getenv in production.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	setString("PLAYBOOK_STORAGE_DRIVER", &cfg.StorageDriver)
	setString("PLAYBOOK_POSTGRES_DSN", &cfg.PostgresDSN)
	setString("PLAYBOOK_BIND", &cfg.Bind)
	setString("PLAYBOOK_GENERATION_URL", &cfg.GenerationURL)
	setString("PLAYBOOK_ANON_KEY", &cfg.AnonKey)
	setString("PLAYBOOK_MODEL", &cfg.Model)
	setString("GEMINI_API_KEY", &cfg.ModelAPIKey)
	setString("PLAYBOOK_MODEL_API_KEY", &cfg.ModelAPIKey)
	setString("PLAYBOOK_SESSION_SECRET", &cfg.SessionSecret)
	setString("PLAYBOOK_LOG_LEVEL", &cfg.LogLevel)

	if portStr := strings.TrimSpace(getenv("PLAYBOOK_PORT")); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid PLAYBOOK_PORT: %w", err)
		}
		cfg.Port = port
	}

	return nil
}

// Save writes cfg as JSON to baseDir/config.json with owner-only permissions.
func Save(baseDir string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(baseDir, "config.json"), data, 0600)
}

// findConfigFile returns the first existing config file in dir, or "".
func findConfigFile(dir string) string {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the path is empty or the file doesn't exist (not defaults).
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
	switch filepath.Ext(configPath) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.StorageDriver = pick(overlay.StorageDriver, base.StorageDriver)
	result.PostgresDSN = pick(overlay.PostgresDSN, base.PostgresDSN)
	result.DBMaxOpenConns = pick(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pick(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.Bind = pick(overlay.Bind, base.Bind)
	result.Port = pick(overlay.Port, base.Port)
	result.GenerationURL = pick(overlay.GenerationURL, base.GenerationURL)
	result.AnonKey = pick(overlay.AnonKey, base.AnonKey)
	result.Model = pick(overlay.Model, base.Model)
	result.ModelAPIKey = pick(overlay.ModelAPIKey, base.ModelAPIKey)
	result.SessionSecret = pick(overlay.SessionSecret, base.SessionSecret)
	result.LogLevel = pick(overlay.LogLevel, base.LogLevel)
	result.AllowUnsafePaths = overlay.AllowUnsafePaths || base.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)

	return result
}

func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, list := range [][]string{a, b} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s != "" && !seen[s] {
				seen[s] = true
				result = append(result, s)
			}
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
