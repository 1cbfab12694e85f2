package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"wavebatch/internal/fileutil"
	"wavebatch/internal/metadata"
)

// Columns names the CSV columns the ledger reads and writes. The id column
// is required on import; the outcome columns are created when absent.
type Columns struct {
	ID     string
	Output string
	Error  string
}

// ImportCSV seeds the ledger from an input table. Existing rows keep their
// recorded outcome. Returns total rows read and rows newly added.
func (s *Store) ImportCSV(ctx context.Context, path string, cols Columns) (total, added int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open input table: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("read input header: %w", err)
	}

	idIdx, outputIdx, errIdx := -1, -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case cols.ID:
			idIdx = i
		case cols.Output:
			outputIdx = i
		case cols.Error:
			errIdx = i
		}
	}
	if idIdx < 0 {
		return 0, 0, fmt.Errorf("input table %s missing required column %q", path, cols.ID)
	}

	var entries []Entry
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, 0, fmt.Errorf("read input row: %w", err)
		}
		if idIdx >= len(record) {
			continue
		}
		id := metadata.NormalizeID(record[idIdx])
		if id == "" {
			continue
		}
		entry := Entry{TaskID: id}
		if outputIdx >= 0 && outputIdx < len(record) {
			entry.OutputPath = strings.TrimSpace(record[outputIdx])
		}
		if errIdx >= 0 && errIdx < len(record) {
			entry.Error = strings.TrimSpace(record[errIdx])
		}
		entries = append(entries, entry)
	}

	added, err = s.Seed(ctx, entries)
	if err != nil {
		return 0, 0, err
	}
	return len(entries), added, nil
}

// ExportCSV writes the full ledger ordered by task id. The write is atomic
// so a crash mid-checkpoint never leaves a truncated table behind.
func (s *Store) ExportCSV(ctx context.Context, path string, cols Columns) error {
	entries, err := s.All(ctx)
	if err != nil {
		return err
	}

	var buf strings.Builder
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{cols.ID, cols.Output, cols.Error}); err != nil {
		return fmt.Errorf("write output header: %w", err)
	}
	for _, entry := range entries {
		if err := writer.Write([]string{entry.TaskID, entry.OutputPath, entry.Error}); err != nil {
			return fmt.Errorf("write output row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush output table: %w", err)
	}

	if err := fileutil.WriteAtomic(path, []byte(buf.String()), 0o644); err != nil {
		return fmt.Errorf("write output table: %w", err)
	}
	return nil
}
