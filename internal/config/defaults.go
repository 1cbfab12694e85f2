package config

import "runtime"

const (
	defaultSourceDir       = "~/wavebatch/records"
	defaultOutputDir       = "~/wavebatch/artifacts"
	defaultLogDir          = "~/.local/share/wavebatch/logs"
	defaultIDColumn        = "study_id"
	defaultOutputColumn    = "dcm_path"
	defaultErrorColumn     = "dcm_error"
	defaultTaskTimeout     = 60
	defaultCheckpointEvery = 2000
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	return Config{
		Paths: Paths{
			SourceDir: defaultSourceDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Tables: Tables{
			IDColumn:     defaultIDColumn,
			OutputColumn: defaultOutputColumn,
			ErrorColumn:  defaultErrorColumn,
		},
		Run: Run{
			Workers:         workers,
			TaskTimeout:     defaultTaskTimeout,
			CheckpointEvery: defaultCheckpointEvery,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
