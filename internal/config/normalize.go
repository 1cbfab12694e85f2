package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTables(); err != nil {
		return err
	}
	if err := c.normalizeLedger(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.SourceDir, err = expandPath(c.Paths.SourceDir); err != nil {
		return fmt.Errorf("paths.source_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTables() error {
	var err error
	if c.Tables.InputCSV != "" {
		if c.Tables.InputCSV, err = expandPath(c.Tables.InputCSV); err != nil {
			return fmt.Errorf("tables.input_csv: %w", err)
		}
	}
	if c.Tables.OutputCSV != "" {
		if c.Tables.OutputCSV, err = expandPath(c.Tables.OutputCSV); err != nil {
			return fmt.Errorf("tables.output_csv: %w", err)
		}
	}
	if c.Tables.MetadataCSV != "" {
		if c.Tables.MetadataCSV, err = expandPath(c.Tables.MetadataCSV); err != nil {
			return fmt.Errorf("tables.metadata_csv: %w", err)
		}
	}
	if strings.TrimSpace(c.Tables.IDColumn) == "" {
		c.Tables.IDColumn = defaultIDColumn
	}
	if strings.TrimSpace(c.Tables.OutputColumn) == "" {
		c.Tables.OutputColumn = defaultOutputColumn
	}
	if strings.TrimSpace(c.Tables.ErrorColumn) == "" {
		c.Tables.ErrorColumn = defaultErrorColumn
	}
	return nil
}

func (c *Config) normalizeLedger() error {
	var err error
	if c.Ledger.DBPath != "" {
		if c.Ledger.DBPath, err = expandPath(c.Ledger.DBPath); err != nil {
			return fmt.Errorf("ledger.db_path: %w", err)
		}
	}
	if c.Ledger.ErrorLog != "" {
		if c.Ledger.ErrorLog, err = expandPath(c.Ledger.ErrorLog); err != nil {
			return fmt.Errorf("ledger.error_log: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
