// Package testsupport provides shared helpers for package tests: temp
// configs, ledgers, and synthetic source records.
package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wavebatch/internal/config"
	"wavebatch/internal/ledger"
	"wavebatch/internal/wfdb"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.SourceDir = filepath.Join(base, "source")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Tables.InputCSV = filepath.Join(base, "tasks.csv")
	cfg.Tables.OutputCSV = filepath.Join(base, "results.csv")
	cfg.Tables.MetadataCSV = filepath.Join(base, "metadata.csv")
	cfg.Run.Workers = 2
	cfg.Run.CheckpointEvery = 10

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := os.MkdirAll(cfg.Paths.SourceDir, 0o755); err != nil {
		t.Fatalf("mkdir source dir: %v", err)
	}
	return &cfg
}

// WithWorkers overrides the worker count on the test config.
func WithWorkers(n int) ConfigOption {
	return func(cfg *config.Config) { cfg.Run.Workers = n }
}

// WithCheckpointEvery overrides the checkpoint cadence on the test config.
func WithCheckpointEvery(n int) ConfigOption {
	return func(cfg *config.Config) { cfg.Run.CheckpointEvery = n }
}

// MustOpenStore opens the config's ledger database and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(cfg.LedgerDBPath())
	if err != nil {
		t.Fatalf("open ledger store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close ledger store: %v", err)
		}
	})
	return store
}

// WriteInputCSV writes a minimal task table containing the given ids.
func WriteInputCSV(t testing.TB, cfg *config.Config, ids ...string) {
	t.Helper()
	var buf strings.Builder
	buf.WriteString(cfg.Tables.IDColumn + "\n")
	for _, id := range ids {
		buf.WriteString(id + "\n")
	}
	if err := os.WriteFile(cfg.Tables.InputCSV, []byte(buf.String()), 0o644); err != nil {
		t.Fatalf("write input table: %v", err)
	}
}

// WriteMetadataCSV writes a side table with one row per id using fixed
// filter and station values.
func WriteMetadataCSV(t testing.TB, cfg *config.Config, ids ...string) {
	t.Helper()
	var buf strings.Builder
	buf.WriteString("study_id,cart_id,lowpassfilter,highpassfilter,ecg_time\n")
	for _, id := range ids {
		buf.WriteString(id + ",CART-7,100,0.5,2021-03-04 10:20:30\n")
	}
	if err := os.WriteFile(cfg.Tables.MetadataCSV, []byte(buf.String()), 0o644); err != nil {
		t.Fatalf("write metadata table: %v", err)
	}
}

// TwelveLeadLabels are the standard channel labels in acquisition order.
var TwelveLeadLabels = []string{
	"I", "II", "III", "aVR", "aVL", "aVF",
	"V1", "V2", "V3", "V4", "V5", "V6",
}

// WriteRecord writes a synthetic source record with the given shape into
// the config's source directory and returns its name.
func WriteRecord(t testing.TB, cfg *config.Config, name string, channels, samples int, fs float64) string {
	t.Helper()

	signals := make([]wfdb.Signal, channels)
	for i := range signals {
		label := "CH" + string(rune('A'+i))
		if i < len(TwelveLeadLabels) {
			label = TwelveLeadLabels[i]
		}
		signals[i] = wfdb.Signal{
			Label:    label,
			Gain:     200,
			Unit:     "mV",
			Baseline: 0,
		}
	}

	data := make([]int16, channels*samples)
	for i := range data {
		data[i] = int16(i % 512)
	}

	record := &wfdb.Record{
		Name:       name,
		NumSignals: channels,
		Fs:         fs,
		NumSamples: samples,
		Signals:    signals,
		Comments:   []string{"<subject_id>: SUBJ-" + name},
		Samples:    data,
	}
	if err := wfdb.WriteRecord(cfg.Paths.SourceDir, record); err != nil {
		t.Fatalf("write record %s: %v", name, err)
	}
	return name
}

// Context returns a context cancelled at test cleanup.
func Context(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
