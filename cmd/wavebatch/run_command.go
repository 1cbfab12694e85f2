package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"wavebatch/internal/batch"
	"wavebatch/internal/config"
	"wavebatch/internal/isolate"
	"wavebatch/internal/ledger"
	"wavebatch/internal/metadata"
	"wavebatch/internal/task"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		workersFlag    int
		timeoutFlag    int
		checkpointFlag int
		overwriteFlag  bool
		inputFlag      string
		outputFlag     string
		metadataFlag   string
		sourceDirFlag  string
		outputDirFlag  string
		errorLogFlag   string
		idColumnFlag   string
		outColumnFlag  string
		errColumnFlag  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a batch conversion run",
		Long: `Run converts every pending task in the input table, resuming from the
ledger. Individual task failures are recorded in the output table and the
error log; the command still exits zero. A non-zero exit means the run
itself could not start or persist its progress.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg, runFlags{
				workers:    workersFlag,
				timeout:    timeoutFlag,
				checkpoint: checkpointFlag,
				overwrite:  overwriteFlag,
				input:      inputFlag,
				output:     outputFlag,
				metadata:   metadataFlag,
				sourceDir:  sourceDirFlag,
				outputDir:  outputDirFlag,
				errorLog:   errorLogFlag,
				idColumn:   idColumnFlag,
				outColumn:  outColumnFlag,
				errColumn:  errColumnFlag,
			})
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Tables.InputCSV == "" {
				return fmt.Errorf("no input table configured (set tables.input_csv or pass --input)")
			}
			if cfg.Tables.OutputCSV == "" {
				return fmt.Errorf("no output table configured (set tables.output_csv or pass --output)")
			}
			if cfg.Tables.MetadataCSV == "" {
				return fmt.Errorf("no metadata table configured (set tables.metadata_csv or pass --metadata)")
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			logger, err := cmdCtx.newLogger()
			if err != nil {
				return err
			}

			// One mutating run per ledger at a time.
			runLock := flock.New(filepath.Join(cfg.Paths.LogDir, "run.lock"))
			locked, err := runLock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another run is already active (lock held at %s)", runLock.Path())
			}
			defer runLock.Unlock()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			meta, err := metadata.Load(cfg.Tables.MetadataCSV)
			if err != nil {
				return fmt.Errorf("load metadata table: %w", err)
			}

			store, err := ledger.Open(cfg.LedgerDBPath())
			if err != nil {
				return err
			}
			defer store.Close()

			errLog, err := ledger.NewErrorLog(cfg.ErrorLogPath())
			if err != nil {
				return err
			}

			supervisor, err := isolate.New(
				time.Duration(cfg.Run.TaskTimeout)*time.Second,
				isolate.WithLogger(logger),
			)
			if err != nil {
				return err
			}

			engine := batch.New(cfg, store, errLog, meta, supervisor, logger, batch.NewProgress(logger))
			summary, err := engine.Run(ctx)
			if err != nil {
				return err
			}

			printSummary(cmd, summary)
			return nil
		},
	}

	cmd.Flags().IntVarP(&workersFlag, "workers", "w", 0, "Number of concurrent workers (default from config)")
	cmd.Flags().IntVarP(&timeoutFlag, "timeout", "t", 0, "Per-task timeout in seconds (default from config)")
	cmd.Flags().IntVar(&checkpointFlag, "checkpoint-every", 0, "Results per checkpoint flush (default from config)")
	cmd.Flags().BoolVar(&overwriteFlag, "overwrite", false, "Redo tasks even when a valid artifact already exists")
	cmd.Flags().StringVar(&inputFlag, "input", "", "Input task table (CSV)")
	cmd.Flags().StringVar(&outputFlag, "output", "", "Output result table (CSV)")
	cmd.Flags().StringVar(&metadataFlag, "metadata", "", "Metadata side table (CSV)")
	cmd.Flags().StringVar(&sourceDirFlag, "source-dir", "", "Directory holding source records")
	cmd.Flags().StringVar(&outputDirFlag, "output-dir", "", "Directory receiving converted artifacts")
	cmd.Flags().StringVar(&errorLogFlag, "error-log", "", "Error log path (default next to the output table)")
	cmd.Flags().StringVar(&idColumnFlag, "id-column", "", "Task id column name")
	cmd.Flags().StringVar(&outColumnFlag, "output-column", "", "Output locator column name")
	cmd.Flags().StringVar(&errColumnFlag, "error-column", "", "Error message column name")
	return cmd
}

type runFlags struct {
	workers    int
	timeout    int
	checkpoint int
	overwrite  bool
	input      string
	output     string
	metadata   string
	sourceDir  string
	outputDir  string
	errorLog   string
	idColumn   string
	outColumn  string
	errColumn  string
}

// applyRunFlags overlays explicitly set flags onto the loaded config so a
// flag always wins over the file value.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, flags runFlags) {
	if cmd.Flags().Changed("workers") {
		cfg.Run.Workers = flags.workers
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Run.TaskTimeout = flags.timeout
	}
	if cmd.Flags().Changed("checkpoint-every") {
		cfg.Run.CheckpointEvery = flags.checkpoint
	}
	if cmd.Flags().Changed("overwrite") {
		cfg.Run.Overwrite = flags.overwrite
	}
	if flags.input != "" {
		cfg.Tables.InputCSV = flags.input
	}
	if flags.output != "" {
		cfg.Tables.OutputCSV = flags.output
	}
	if flags.metadata != "" {
		cfg.Tables.MetadataCSV = flags.metadata
	}
	if flags.sourceDir != "" {
		cfg.Paths.SourceDir = flags.sourceDir
	}
	if flags.outputDir != "" {
		cfg.Paths.OutputDir = flags.outputDir
	}
	if flags.errorLog != "" {
		cfg.Ledger.ErrorLog = flags.errorLog
	}
	if flags.idColumn != "" {
		cfg.Tables.IDColumn = flags.idColumn
	}
	if flags.outColumn != "" {
		cfg.Tables.OutputColumn = flags.outColumn
	}
	if flags.errColumn != "" {
		cfg.Tables.ErrorColumn = flags.errColumn
	}
}

func printSummary(cmd *cobra.Command, summary *batch.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run finished in %s\n", summary.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "  total tasks: %d (skipped %d already done)\n", summary.Total, summary.Skipped)
	fmt.Fprintf(out, "  attempted:   %d\n", summary.Attempted)
	fmt.Fprintf(out, "  succeeded:   %d\n", summary.Succeeded)
	fmt.Fprintf(out, "  failed:      %d\n", summary.Failed)
	for _, kind := range []task.Kind{
		task.KindMissingMetadata,
		task.KindConversion,
		task.KindValidation,
		task.KindTimeout,
		task.KindWorkerCrash,
	} {
		if count := summary.ByKind[kind]; count > 0 {
			fmt.Fprintf(out, "    %s: %d\n", kind, count)
		}
	}
}
