package batch

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"wavebatch/internal/config"
	"wavebatch/internal/convert"
	"wavebatch/internal/isolate"
	"wavebatch/internal/ledger"
	"wavebatch/internal/logging"
	"wavebatch/internal/metadata"
	"wavebatch/internal/task"
	"wavebatch/internal/testsupport"
)

// inProcessRunner performs conversions directly instead of spawning a
// child process, which keeps the engine tests hermetic.
type inProcessRunner struct{}

func (inProcessRunner) Run(_ context.Context, spec task.Spec) task.Result {
	return convert.Run(spec, logging.NewNop())
}

type fixture struct {
	cfg    *config.Config
	store  *ledger.Store
	errLog *ledger.ErrorLog
	meta   *metadata.Index
}

// newFixture builds a five-task corpus: three convertible records, one id
// with metadata but no source record, and one record with no metadata row.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithCheckpointEvery(2))
	for _, id := range []string{"r1", "r2", "r3"} {
		testsupport.WriteRecord(t, cfg, id, 12, 100, 500)
	}
	testsupport.WriteRecord(t, cfg, "nometa", 2, 50, 250)
	testsupport.WriteInputCSV(t, cfg, "r1", "r2", "r3", "ghost", "nometa")
	testsupport.WriteMetadataCSV(t, cfg, "r1", "r2", "r3", "ghost")

	meta, err := metadata.Load(cfg.Tables.MetadataCSV)
	if err != nil {
		t.Fatalf("load metadata: %v", err)
	}
	errLog, err := ledger.NewErrorLog(cfg.ErrorLogPath())
	if err != nil {
		t.Fatalf("new error log: %v", err)
	}
	return &fixture{
		cfg:    cfg,
		store:  testsupport.MustOpenStore(t, cfg),
		errLog: errLog,
		meta:   meta,
	}
}

func (f *fixture) run(t *testing.T) *Summary {
	t.Helper()
	engine := New(f.cfg, f.store, f.errLog, f.meta, inProcessRunner{}, logging.NewNop(), nil)
	summary, err := engine.Run(testsupport.Context(t))
	if err != nil {
		t.Fatalf("engine run: %v", err)
	}
	return summary
}

func (f *fixture) outputRows(t *testing.T) map[string][]string {
	t.Helper()
	file, err := os.Open(f.cfg.Tables.OutputCSV)
	if err != nil {
		t.Fatalf("open output table: %v", err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("parse output table: %v", err)
	}
	byID := make(map[string][]string, len(rows)-1)
	for _, row := range rows[1:] {
		byID[row[0]] = row
	}
	return byID
}

func TestRunConvertsAndRecordsFailures(t *testing.T) {
	f := newFixture(t)
	summary := f.run(t)

	if summary.Total != 5 || summary.Attempted != 5 {
		t.Fatalf("summary = %+v, want 5 attempted", summary)
	}
	if summary.Succeeded != 3 || summary.Failed != 2 {
		t.Fatalf("summary = %+v, want 3 succeeded and 2 failed", summary)
	}
	if summary.ByKind[task.KindConversion] != 1 || summary.ByKind[task.KindMissingMetadata] != 1 {
		t.Fatalf("by kind = %v", summary.ByKind)
	}

	rows := f.outputRows(t)
	if len(rows) != 5 {
		t.Fatalf("output rows = %d, want 5", len(rows))
	}
	if rows["r1"][2] != "" || rows["r1"][1] == "" {
		t.Fatalf("r1 row = %v, want recorded success", rows["r1"])
	}
	if !strings.HasPrefix(rows["ghost"][2], "ConversionError: ") {
		t.Fatalf("ghost row = %v", rows["ghost"])
	}
	if rows["nometa"][2] != "Missing metadata row" {
		t.Fatalf("nometa row = %v", rows["nometa"])
	}

	for _, id := range []string{"r1", "r2", "r3"} {
		if _, err := os.Stat(filepath.Join(f.cfg.Paths.OutputDir, id+".dcm")); err != nil {
			t.Fatalf("artifact for %s missing: %v", id, err)
		}
	}

	logData, err := os.ReadFile(f.cfg.ErrorLogPath())
	if err != nil {
		t.Fatalf("read error log: %v", err)
	}
	text := string(logData)
	if !strings.Contains(text, "| todo=5 ===") {
		t.Fatalf("error log header missing: %q", text)
	}
	if !strings.Contains(text, "| session=") {
		t.Fatalf("error log header lacks session id: %q", text)
	}
	if !strings.Contains(text, "nometa\tMissing metadata row") {
		t.Fatalf("error log lacks failure line: %q", text)
	}
}

func TestRunResumesWithoutRedoingValidArtifacts(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	second := f.run(t)
	if second.Skipped != 3 {
		t.Fatalf("skipped = %d, want the 3 valid artifacts", second.Skipped)
	}
	if second.Attempted != 2 {
		t.Fatalf("attempted = %d, want only the 2 prior failures", second.Attempted)
	}
}

func TestRunRedoesDeletedAndCorruptedArtifacts(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	if err := os.Remove(filepath.Join(f.cfg.Paths.OutputDir, "r1.dcm")); err != nil {
		t.Fatalf("delete artifact: %v", err)
	}
	corrupt := filepath.Join(f.cfg.Paths.OutputDir, "r2.dcm")
	data, err := os.ReadFile(corrupt)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if err := os.WriteFile(corrupt, data[:len(data)/2], 0o644); err != nil {
		t.Fatalf("corrupt artifact: %v", err)
	}

	summary := f.run(t)
	if summary.Skipped != 1 {
		t.Fatalf("skipped = %d, want only the intact artifact", summary.Skipped)
	}
	if summary.Attempted != 4 {
		t.Fatalf("attempted = %d, want deleted + corrupted + 2 failures", summary.Attempted)
	}

	rows := f.outputRows(t)
	if rows["r1"][2] != "" || rows["r2"][2] != "" {
		t.Fatalf("redone artifacts should succeed again: r1=%v r2=%v", rows["r1"], rows["r2"])
	}
}

func TestRunOverwriteRedoesEverything(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	f.cfg.Run.Overwrite = true
	summary := f.run(t)
	if summary.Skipped != 0 || summary.Attempted != 5 {
		t.Fatalf("summary = %+v, want all 5 attempted", summary)
	}
}

func TestRunPicksUpNewTasksOnResume(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	testsupport.WriteRecord(t, f.cfg, "r4", 12, 100, 500)
	testsupport.WriteInputCSV(t, f.cfg, "r1", "r2", "r3", "ghost", "nometa", "r4")
	testsupport.WriteMetadataCSV(t, f.cfg, "r1", "r2", "r3", "ghost", "r4")

	meta, err := metadata.Load(f.cfg.Tables.MetadataCSV)
	if err != nil {
		t.Fatalf("reload metadata: %v", err)
	}
	f.meta = meta

	summary := f.run(t)
	if summary.Total != 6 {
		t.Fatalf("total = %d, want 6 after adding a task", summary.Total)
	}
	if rows := f.outputRows(t); rows["r4"][2] != "" {
		t.Fatalf("r4 row = %v, want success", rows["r4"])
	}
}

// interruptingRunner converts tasks normally until its trigger task, then
// waits for the first checkpoint to land and cancels the run, standing in
// for a process killed between checkpoints.
type interruptingRunner struct {
	t      *testing.T
	store  *ledger.Store
	cancel context.CancelFunc
	seen   int
}

func (r *interruptingRunner) Run(_ context.Context, spec task.Spec) task.Result {
	r.seen++
	if r.seen == 3 {
		r.awaitOutcomes(2)
		r.cancel()
	}
	return convert.Run(spec, logging.NewNop())
}

// awaitOutcomes polls the ledger until want outcomes are recorded, so the
// cancellation cannot race the checkpoint it is meant to follow.
func (r *interruptingRunner) awaitOutcomes(want int) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		stats, err := r.store.Stats(context.Background())
		if err == nil && stats.RecordedSuccess+stats.RecordedFailure >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	r.t.Errorf("checkpoint with %d outcomes never landed", want)
}

func TestRunTerminatedMidRunKeepsOnlyCheckpointedOutcomes(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithWorkers(1),
		testsupport.WithCheckpointEvery(2))
	ids := []string{"r1", "r2", "r3", "r4", "r5"}
	for _, id := range ids {
		testsupport.WriteRecord(t, cfg, id, 12, 100, 500)
	}
	testsupport.WriteInputCSV(t, cfg, ids...)
	testsupport.WriteMetadataCSV(t, cfg, ids...)

	meta, err := metadata.Load(cfg.Tables.MetadataCSV)
	if err != nil {
		t.Fatalf("load metadata: %v", err)
	}
	errLog, err := ledger.NewErrorLog(cfg.ErrorLogPath())
	if err != nil {
		t.Fatalf("new error log: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &interruptingRunner{t: t, store: store, cancel: cancel}
	engine := New(cfg, store, errLog, meta, runner, logging.NewNop(), nil)
	if _, err := engine.Run(ctx); err == nil {
		t.Fatal("want the terminated run to surface an error")
	}

	// Only the first checkpoint survived the termination.
	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 5 || stats.RecordedSuccess != 2 || stats.Unattempted != 3 {
		t.Fatalf("stats after termination = %+v, want 2 flushed and 3 pending", stats)
	}

	// The next run skips the flushed outcomes and re-attempts the rest.
	engine = New(cfg, store, errLog, meta, inProcessRunner{}, logging.NewNop(), nil)
	summary, err := engine.Run(testsupport.Context(t))
	if err != nil {
		t.Fatalf("resumed run: %v", err)
	}
	if summary.Skipped != 2 || summary.Attempted != 3 || summary.Succeeded != 3 {
		t.Fatalf("resumed summary = %+v, want 2 skipped and 3 redone", summary)
	}
}

// stallExecutor stands in for the child process over the supervisor seam:
// the stall id blocks until the deadline kills it, every other task
// reports immediate success.
type stallExecutor struct {
	stallID string
}

func (e stallExecutor) Run(ctx context.Context, stdin []byte) ([]byte, error) {
	var spec task.Spec
	if err := json.Unmarshal(stdin, &spec); err != nil {
		return nil, err
	}
	if spec.TaskID == e.stallID {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return json.Marshal(task.Success(spec.TaskID, spec.OutputPath))
}

// orderProgress records the completion order the engine observes.
type orderProgress struct {
	mu  sync.Mutex
	ids []string
}

func (p *orderProgress) Start(int) {}

func (p *orderProgress) Advance(result task.Result) {
	p.mu.Lock()
	p.ids = append(p.ids, result.TaskID)
	p.mu.Unlock()
}

func (p *orderProgress) Finish() {}

func TestRunHangingTaskDoesNotStallTheBatch(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2))
	ids := []string{"a-stall", "b1", "b2", "b3"}
	testsupport.WriteInputCSV(t, cfg, ids...)
	testsupport.WriteMetadataCSV(t, cfg, ids...)

	meta, err := metadata.Load(cfg.Tables.MetadataCSV)
	if err != nil {
		t.Fatalf("load metadata: %v", err)
	}
	errLog, err := ledger.NewErrorLog(cfg.ErrorLogPath())
	if err != nil {
		t.Fatalf("new error log: %v", err)
	}
	supervisor, err := isolate.New(500*time.Millisecond,
		isolate.WithExecutor(stallExecutor{stallID: "a-stall"}))
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}

	progress := &orderProgress{}
	engine := New(cfg, testsupport.MustOpenStore(t, cfg), errLog, meta, supervisor, logging.NewNop(), progress)
	summary, err := engine.Run(testsupport.Context(t))
	if err != nil {
		t.Fatalf("engine run: %v", err)
	}

	if summary.Attempted != 4 || summary.Succeeded != 3 || summary.Failed != 1 {
		t.Fatalf("summary = %+v, want the stalled task as the only failure", summary)
	}
	if summary.ByKind[task.KindTimeout] != 1 {
		t.Fatalf("by kind = %v, want one timeout", summary.ByKind)
	}

	// The fast tasks finished on the other worker while the stalled one was
	// still pinned to its deadline.
	if len(progress.ids) != 4 || progress.ids[len(progress.ids)-1] != "a-stall" {
		t.Fatalf("completion order = %v, want the stalled task last", progress.ids)
	}
}

func TestRunWithEmptyTodoStillExports(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteInputCSV(t, cfg)
	testsupport.WriteMetadataCSV(t, cfg)

	meta, err := metadata.Load(cfg.Tables.MetadataCSV)
	if err != nil {
		t.Fatalf("load metadata: %v", err)
	}
	errLog, err := ledger.NewErrorLog(cfg.ErrorLogPath())
	if err != nil {
		t.Fatalf("new error log: %v", err)
	}
	engine := New(cfg, testsupport.MustOpenStore(t, cfg), errLog, meta, inProcessRunner{}, logging.NewNop(), nil)
	summary, err := engine.Run(testsupport.Context(t))
	if err != nil {
		t.Fatalf("engine run: %v", err)
	}
	if summary.Attempted != 0 {
		t.Fatalf("attempted = %d, want 0", summary.Attempted)
	}
	if _, err := os.Stat(cfg.Tables.OutputCSV); err != nil {
		t.Fatalf("output table should exist even for an empty run: %v", err)
	}
}
