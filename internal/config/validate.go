package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is structurally usable. Requirements
// that only apply to batch runs (input table, metadata table) are enforced
// by the run command, which has the full flag picture.
func (c *Config) Validate() error {
	if err := c.validateRun(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRun() error {
	if c.Run.Workers < 1 {
		return errors.New("run.workers must be at least 1")
	}
	if c.Run.TaskTimeout < 1 {
		return errors.New("run.task_timeout must be at least 1 second")
	}
	if c.Run.CheckpointEvery < 0 {
		return errors.New("run.checkpoint_every must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
