// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < --config file < env < flags
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	amerrors "github.com/appenmapper/appenmapper/pkg/errors"
	"github.com/appenmapper/appenmapper/pkg/logging"
	"github.com/appenmapper/appenmapper/pkg/mapping"
	"github.com/appenmapper/appenmapper/pkg/storage/s3"
	"github.com/appenmapper/appenmapper/pkg/telemetry"
	"github.com/appenmapper/appenmapper/pkg/writer"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "APPENMAPPER_"

// Config holds all appenmapper configuration.
type Config struct {
	Version int `yaml:"version"`

	Mapping   MappingConfig    `yaml:"mapping"`
	Server    ServerConfig     `yaml:"server"`
	Auth      AuthConfig       `yaml:"auth"`
	Export    ExportConfig     `yaml:"export"`
	Storage   StorageConfig    `yaml:"storage"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Logging   logging.Config   `yaml:"logging"`
}

// MappingConfig selects the join column and the column table.
type MappingConfig struct {
	KeyColumn string         `yaml:"key_column"`
	Pairs     []mapping.Pair `yaml:"pairs"`
}

// ServerConfig for the HTTP server.
type ServerConfig struct {
	Port          int           `yaml:"port"`
	Host          string        `yaml:"host"`
	MaxUploadSize string        `yaml:"max_upload_size"` // e.g., "50MB"
	PreviewRows   int           `yaml:"preview_rows"`
	RunTTL        time.Duration `yaml:"run_ttl"` // how long results stay downloadable
}

// AuthConfig holds the single login accepted by the web UI.
type AuthConfig struct {
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// ExportConfig controls the updated target file.
type ExportConfig struct {
	FileName  string `yaml:"file_name"`
	SheetName string `yaml:"sheet_name"`
}

// StorageConfig for remote inputs and outputs.
type StorageConfig struct {
	S3 s3.Config `yaml:"s3"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Mapping: MappingConfig{
			KeyColumn: mapping.DefaultKeyColumn,
			Pairs:     mapping.DefaultPairs(),
		},
		Server: ServerConfig{
			Port:          8501,
			Host:          "localhost",
			MaxUploadSize: "200MB",
			PreviewRows:   20,
			RunTTL:        time.Hour,
		},
		Auth: AuthConfig{
			Username:   "matt",
			SessionTTL: 12 * time.Hour,
		},
		Export: ExportConfig{
			FileName:  writer.DefaultFileName,
			SheetName: writer.DefaultSheetName,
		},
		Storage: StorageConfig{
			S3: s3.DefaultConfig(),
		},
		Telemetry: telemetry.DefaultConfig(),
		Logging:   logging.DefaultConfig(),
	}
}

// MappingEngineConfig converts the mapping section for mapping.New.
func (c *Config) MappingEngineConfig() mapping.Config {
	return mapping.Config{KeyColumn: c.Mapping.KeyColumn, Pairs: c.Mapping.Pairs}
}

// WriterConfig converts the export section for the writer package.
func (c *Config) WriterConfig() writer.Config {
	wc := writer.DefaultConfig()
	if c.Export.SheetName != "" {
		wc.SheetName = c.Export.SheetName
	}
	return wc
}

// MaxUploadBytes parses Server.MaxUploadSize.
func (c *Config) MaxUploadBytes() (int64, error) {
	return ParseSize(c.Server.MaxUploadSize)
}

// Validate checks the mapping table and server settings. It does not
// require a password; ValidateServe does.
func (c *Config) Validate() error {
	if _, err := mapping.New(c.MappingEngineConfig()); err != nil {
		return err
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return amerrors.New(amerrors.CodeInvalidConfig, "server.port out of range").
			WithContext("port", c.Server.Port)
	}
	if c.Server.PreviewRows < 0 {
		return amerrors.New(amerrors.CodeInvalidConfig, "server.preview_rows must not be negative")
	}
	if _, err := c.MaxUploadBytes(); err != nil {
		return amerrors.Wrap(err, amerrors.CodeInvalidConfig, "invalid server.max_upload_size")
	}
	return nil
}

// ValidateServe additionally checks what the web UI needs to start.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Auth.Username) == "" {
		return amerrors.New(amerrors.CodeInvalidConfig, "auth.username is empty")
	}
	if c.Auth.Password == "" {
		return amerrors.New(amerrors.CodeInvalidConfig,
			"auth.password is empty; set it in the config file or "+EnvPrefix+"AUTH_PASSWORD")
	}
	return nil
}

// ParseSize parses sizes such as "500MB", "64k" or "1048576".
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	mult := int64(1)
	for _, u := range []struct {
		suffix string
		mult   int64
	}{
		{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10},
		{"G", 1 << 30}, {"M", 1 << 20}, {"K", 1 << 10}, {"B", 1},
	} {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			mult = u.mult
			break
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string // Paths that were loaded
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{
		config: Default(),
	}
}

// Load loads configuration from all sources in priority order. An explicit
// file, if given, must exist; the standard locations are optional.
func (m *Manager) Load(explicit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = Default()
	m.paths = nil

	for _, path := range m.getConfigPaths() {
		if err := m.loadFile(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return amerrors.Wrap(err, amerrors.CodeInvalidConfig, "failed to read config").
				WithContext("path", path)
		}
		m.paths = append(m.paths, path)
	}

	if explicit != "" {
		if err := m.loadFile(explicit); err != nil {
			return amerrors.Wrap(err, amerrors.CodeInvalidConfig, "failed to read config").
				WithContext("path", explicit)
		}
		m.paths = append(m.paths, explicit)
	}

	return m.loadEnv()
}

// getConfigPaths returns config file paths in priority order.
func (m *Manager) getConfigPaths() []string {
	var paths []string

	// System config
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/appenmapper/config.yaml")
	}

	// User config
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".appenmapper", "config.yaml"))
	}

	// Project config (current directory)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".appenmapper.yaml"))
	}

	return paths
}

// loadFile decodes a config file over the current values, so keys the file
// omits keep their earlier value. Lists such as mapping.pairs are replaced
// as a whole.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, m.config)
}

// loadEnv loads configuration from APPENMAPPER_* environment variables.
func (m *Manager) loadEnv() error {
	c := m.config

	str := map[string]*string{
		"KEY_COLUMN":       &c.Mapping.KeyColumn,
		"HOST":             &c.Server.Host,
		"MAX_UPLOAD_SIZE":  &c.Server.MaxUploadSize,
		"AUTH_USERNAME":    &c.Auth.Username,
		"AUTH_PASSWORD":    &c.Auth.Password,
		"EXPORT_FILE_NAME": &c.Export.FileName,
		"S3_REGION":        &c.Storage.S3.Region,
		"S3_ENDPOINT":      &c.Storage.S3.Endpoint,
		"S3_ACCESS_KEY_ID": &c.Storage.S3.AccessKeyID,
		"S3_SECRET_KEY":    &c.Storage.S3.SecretAccessKey,
		"OTLP_ENDPOINT":    &c.Telemetry.Endpoint,
		"LOG_LEVEL":        &c.Logging.Level,
		"LOG_FORMAT":       &c.Logging.Format,
		"LOG_OUTPUT":       &c.Logging.Output,
	}
	for name, dst := range str {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}

	// APPENMAPPER_PORT
	if v := os.Getenv(EnvPrefix + "PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return envError("PORT", v, err)
		}
		c.Server.Port = port
	}

	durations := map[string]*time.Duration{
		"SESSION_TTL": &c.Auth.SessionTTL,
		"RUN_TTL":     &c.Server.RunTTL,
	}
	for name, dst := range durations {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return envError(name, v, err)
			}
			*dst = d
		}
	}

	bools := map[string]*bool{
		"S3_PATH_STYLE":     &c.Storage.S3.UsePathStyle,
		"TELEMETRY_ENABLED": &c.Telemetry.Enabled,
	}
	for name, dst := range bools {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return envError(name, v, err)
			}
			*dst = b
		}
	}

	// An OTLP endpoint in the environment implies tracing is wanted.
	if os.Getenv(EnvPrefix+"OTLP_ENDPOINT") != "" && os.Getenv(EnvPrefix+"TELEMETRY_ENABLED") == "" {
		c.Telemetry.Enabled = true
	}

	return nil
}

func envError(name, value string, err error) error {
	return amerrors.Wrap(err, amerrors.CodeInvalidConfig, "invalid environment override").
		WithContext("variable", EnvPrefix+name).
		WithContext("value", value)
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetPaths returns the paths that were loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.paths))
	copy(out, m.paths)
	return out
}

// Marshal renders the current configuration as YAML. The password is masked.
func (m *Manager) Marshal() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := *m.config
	if c.Auth.Password != "" {
		c.Auth.Password = "********"
	}
	if c.Storage.S3.SecretAccessKey != "" {
		c.Storage.S3.SecretAccessKey = "********"
	}
	return yaml.Marshal(&c)
}

// Save writes the current config to the user config file.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(home, ".appenmapper")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0o600)
}
