// Package metadata loads the per-record side table: auxiliary fields keyed
// by normalized task id that the conversion cannot read from the record
// itself (acquisition device, filter thresholds, fallback timestamp).
//
// The index is built once per run and is read-only afterward, so it is safe
// to share across workers without locking.
package metadata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Row holds the side-table fields for one task id.
type Row struct {
	TaskID     string     `json:"task_id"`
	CartID     string     `json:"cart_id,omitempty"`
	FilterLow  *float64   `json:"filter_low,omitempty"`
	FilterHigh *float64   `json:"filter_high,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}

// Index is an immutable lookup from normalized task id to side-table row.
type Index struct {
	rows map[string]Row
}

// Column names expected in the metadata table. Only the id column is
// mandatory; missing auxiliary columns leave the corresponding fields unset.
const (
	idColumn         = "study_id"
	cartColumn       = "cart_id"
	lowFilterColumn  = "lowpassfilter"
	highFilterColumn = "highpassfilter"
	timeColumn       = "ecg_time"
)

// NormalizeID canonicalizes a task id: surrounding whitespace is dropped
// and a trailing ".0" left over from float-typed spreadsheet columns is
// stripped.
func NormalizeID(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, ".0")
	return s
}

// Load reads the metadata table from a CSV file.
func Load(path string) (*Index, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata table: %w", err)
	}
	defer file.Close()

	index, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("metadata table %s: %w", path, err)
	}
	return index, nil
}

// Read parses a metadata table from a reader.
func Read(r io.Reader) (*Index, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	idIdx, ok := columns[idColumn]
	if !ok {
		return nil, fmt.Errorf("metadata table must contain %q column", idColumn)
	}

	rows := make(map[string]Row)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		id := NormalizeID(field(record, idIdx))
		if id == "" {
			continue
		}
		row := Row{TaskID: id, CartID: strings.TrimSpace(fieldByName(record, columns, cartColumn))}
		row.FilterLow = parseFloat(fieldByName(record, columns, lowFilterColumn))
		row.FilterHigh = parseFloat(fieldByName(record, columns, highFilterColumn))
		row.RecordedAt = parseTime(fieldByName(record, columns, timeColumn))
		rows[id] = row
	}
	return &Index{rows: rows}, nil
}

// Lookup returns the row for a normalized task id.
func (ix *Index) Lookup(taskID string) (Row, bool) {
	row, ok := ix.rows[NormalizeID(taskID)]
	return row, ok
}

// Len returns the number of indexed rows.
func (ix *Index) Len() int { return len(ix.rows) }

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func fieldByName(record []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok {
		return ""
	}
	return field(record, idx)
}

func parseFloat(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &value
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return &ts
		}
	}
	return nil
}
