package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	SourceDir string `toml:"source_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Tables contains the tabular inputs and their column names.
type Tables struct {
	InputCSV     string `toml:"input_csv"`
	OutputCSV    string `toml:"output_csv"`
	MetadataCSV  string `toml:"metadata_csv"`
	IDColumn     string `toml:"id_column"`
	OutputColumn string `toml:"output_column"`
	ErrorColumn  string `toml:"error_column"`
}

// Run contains worker, timeout, and checkpoint settings for batch runs.
type Run struct {
	Workers         int  `toml:"workers"`
	TaskTimeout     int  `toml:"task_timeout"`
	CheckpointEvery int  `toml:"checkpoint_every"`
	Overwrite       bool `toml:"overwrite"`
}

// Ledger contains durable progress-table settings.
type Ledger struct {
	DBPath   string `toml:"db_path"`
	ErrorLog string `toml:"error_log"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for wavebatch.
//
// Sections by subsystem:
//   - Paths: source record, artifact output, and log directories
//   - Tables: task list and metadata table locations plus column overrides
//   - Run: worker count, per-task timeout, checkpoint cadence, overwrite
//   - Ledger: progress database and error log locations
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Tables  Tables  `toml:"tables"`
	Run     Run     `toml:"run"`
	Ledger  Ledger  `toml:"ledger"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/wavebatch/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("wavebatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a batch run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerDBPath returns the resolved progress database location.
func (c *Config) LedgerDBPath() string {
	if strings.TrimSpace(c.Ledger.DBPath) != "" {
		return c.Ledger.DBPath
	}
	return filepath.Join(c.Paths.LogDir, "ledger.db")
}

// ErrorLogPath returns the resolved error log location. When unset it sits
// next to the output CSV with an .errors.log suffix, matching the flag docs.
func (c *Config) ErrorLogPath() string {
	if strings.TrimSpace(c.Ledger.ErrorLog) != "" {
		return c.Ledger.ErrorLog
	}
	if out := strings.TrimSpace(c.Tables.OutputCSV); out != "" {
		ext := filepath.Ext(out)
		return strings.TrimSuffix(out, ext) + ".errors.log"
	}
	return filepath.Join(c.Paths.LogDir, "wavebatch.errors.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
