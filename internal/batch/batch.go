// Package batch drives a full conversion run: it seeds the ledger from
// the input table, decides which tasks still need work, dispatches them
// through the worker pool, and checkpoints outcomes back to the ledger
// and the output table as batches complete.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"wavebatch/internal/config"
	"wavebatch/internal/dicom"
	"wavebatch/internal/fileutil"
	"wavebatch/internal/ledger"
	"wavebatch/internal/logging"
	"wavebatch/internal/metadata"
	"wavebatch/internal/pool"
	"wavebatch/internal/task"
)

// Runner executes a single task under supervision and returns its tagged
// outcome. The production runner spawns a disposable child process per
// task; tests substitute in-process fakes.
type Runner interface {
	Run(ctx context.Context, spec task.Spec) task.Result
}

// Summary reports what one run accomplished.
type Summary struct {
	Total     int
	Skipped   int
	Attempted int
	Succeeded int
	Failed    int
	ByKind    map[task.Kind]int
	Elapsed   time.Duration
}

// Engine owns one batch run over the configured task list.
type Engine struct {
	cfg      *config.Config
	store    *ledger.Store
	errLog   *ledger.ErrorLog
	meta     *metadata.Index
	runner   Runner
	logger   *slog.Logger
	progress Progress
}

// New assembles an engine from its collaborators. A nil progress reporter
// disables progress output.
func New(cfg *config.Config, store *ledger.Store, errLog *ledger.ErrorLog, meta *metadata.Index, runner Runner, logger *slog.Logger, progress Progress) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	if progress == nil {
		progress = nopProgress{}
	}
	return &Engine{
		cfg:      cfg,
		store:    store,
		errLog:   errLog,
		meta:     meta,
		runner:   runner,
		logger:   logging.WithComponent(logger, "batch"),
		progress: progress,
	}
}

// Run performs one pass over the task list and returns its summary. Task
// failures are recorded, not returned; the error covers only setup and
// persistence problems.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	session := uuid.NewString()
	cols := e.columns()

	if err := e.seed(ctx, cols); err != nil {
		return nil, err
	}

	entries, err := e.store.All(ctx)
	if err != nil {
		return nil, err
	}

	specs, skipped := e.plan(entries)
	summary := &Summary{
		Total:   len(entries),
		Skipped: skipped,
		ByKind:  make(map[task.Kind]int),
	}

	e.logger.Info("run planned",
		logging.String("session", session),
		logging.Int("total", len(entries)),
		logging.Int("todo", len(specs)),
		logging.Int("skipped", skipped),
		logging.Int("workers", e.cfg.Run.Workers))

	if err := e.errLog.RunHeader(session, len(specs)); err != nil {
		return nil, err
	}

	if len(specs) == 0 {
		if err := e.store.ExportCSV(ctx, e.cfg.Tables.OutputCSV, cols); err != nil {
			return nil, err
		}
		summary.Elapsed = time.Since(started)
		return summary, nil
	}

	e.progress.Start(len(specs))
	defer e.progress.Finish()

	workers := pool.New(e.cfg.Run.Workers, e.runOne, e.logger)
	results := workers.Dispatch(ctx, specs)

	// Zero means flush only once the whole run has drained.
	checkpointEvery := e.cfg.Run.CheckpointEvery
	if checkpointEvery <= 0 {
		checkpointEvery = len(specs)
	}

	pending := make([]task.Result, 0, checkpointEvery)
	for result := range results {
		summary.Attempted++
		if result.Failed() {
			summary.Failed++
			summary.ByKind[result.Kind]++
			e.logger.Warn("task failed",
				logging.String(logging.FieldTaskID, result.TaskID),
				logging.String("kind", string(result.Kind)),
				logging.String("detail", result.Error))
		} else {
			summary.Succeeded++
		}
		e.progress.Advance(result)

		pending = append(pending, result)
		if len(pending) >= checkpointEvery {
			if err := e.checkpoint(ctx, pending, cols); err != nil {
				return nil, err
			}
			pending = pending[:0]
		}
	}

	if len(pending) > 0 {
		if err := e.checkpoint(ctx, pending, cols); err != nil {
			return nil, err
		}
	}

	summary.Elapsed = time.Since(started)
	e.logger.Info("run complete",
		logging.Int("attempted", summary.Attempted),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.String("elapsed", summary.Elapsed.Round(time.Millisecond).String()))
	return summary, nil
}

// runOne dispatches one task to the supervised runner. A task with no
// metadata row fails immediately; there is nothing for a child process
// to do without the side table fields.
func (e *Engine) runOne(ctx context.Context, spec task.Spec) task.Result {
	if spec.Metadata == nil {
		return task.MissingMetadata(spec.TaskID)
	}
	return e.runner.Run(ctx, spec)
}

// seed loads the output table when present so a resumed run keeps prior
// outcomes, then folds in the input table so newly added ids join the
// ledger without disturbing existing rows.
func (e *Engine) seed(ctx context.Context, cols ledger.Columns) error {
	if fileutil.Exists(e.cfg.Tables.OutputCSV) {
		total, added, err := e.store.ImportCSV(ctx, e.cfg.Tables.OutputCSV, cols)
		if err != nil {
			return fmt.Errorf("import output table: %w", err)
		}
		e.logger.Debug("output table imported",
			logging.Int("rows", total), logging.Int("added", added))
	}
	total, added, err := e.store.ImportCSV(ctx, e.cfg.Tables.InputCSV, cols)
	if err != nil {
		return fmt.Errorf("import input table: %w", err)
	}
	e.logger.Debug("input table imported",
		logging.Int("rows", total), logging.Int("added", added))
	return nil
}

// plan decides which ledger entries still need work. A recorded success
// only counts when the artifact still exists on disk and passes structural
// validation, so deleted or corrupted outputs are redone automatically.
func (e *Engine) plan(entries []ledger.Entry) ([]task.Spec, int) {
	var specs []task.Spec
	skipped := 0
	for _, entry := range entries {
		if !e.cfg.Run.Overwrite && e.isDone(entry) {
			skipped++
			continue
		}
		specs = append(specs, e.specFor(entry.TaskID))
	}
	return specs, skipped
}

func (e *Engine) isDone(entry ledger.Entry) bool {
	if entry.OutputPath == "" || entry.Error != "" {
		return false
	}
	if !fileutil.Exists(entry.OutputPath) {
		return false
	}
	return dicom.Validate(entry.OutputPath) == nil
}

func (e *Engine) specFor(taskID string) task.Spec {
	spec := task.Spec{
		TaskID:     taskID,
		SourcePath: filepath.Join(e.cfg.Paths.SourceDir, taskID),
		OutputPath: filepath.Join(e.cfg.Paths.OutputDir, taskID+".dcm"),
	}
	if row, ok := e.meta.Lookup(taskID); ok {
		spec.Metadata = &row
	}
	return spec
}

// checkpoint persists a batch of results: ledger merge, output table
// export, and failed lines appended to the error log. Crash safety comes
// from ordering; the ledger commit lands before the table rewrite.
func (e *Engine) checkpoint(ctx context.Context, results []task.Result, cols ledger.Columns) error {
	if err := e.store.Merge(ctx, results); err != nil {
		return fmt.Errorf("checkpoint merge: %w", err)
	}
	if err := e.store.ExportCSV(ctx, e.cfg.Tables.OutputCSV, cols); err != nil {
		return fmt.Errorf("checkpoint export: %w", err)
	}
	if err := e.errLog.Append(results); err != nil {
		return fmt.Errorf("checkpoint error log: %w", err)
	}
	e.logger.Debug("checkpoint written", logging.Int("results", len(results)))
	return nil
}

func (e *Engine) columns() ledger.Columns {
	return ledger.Columns{
		ID:     e.cfg.Tables.IDColumn,
		Output: e.cfg.Tables.OutputColumn,
		Error:  e.cfg.Tables.ErrorColumn,
	}
}
