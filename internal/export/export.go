// Package export flattens converted artifacts into a wide tabular form
// for downstream analytics. Every primitive element becomes one row with
// a dotted path such as
// WaveformSequence[0].ChannelDefinitionSequence[2].ChannelLabel, and the
// table is written as sharded CSV parts.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"wavebatch/internal/dicom"
	"wavebatch/internal/fileutil"
	"wavebatch/internal/logging"
)

// maxValueLen bounds any single exported cell so a malformed text element
// cannot blow up the table.
const maxValueLen = 4096

// DefaultShardSize is the row count per part file.
const DefaultShardSize = 50000

// identity carries the per-artifact columns repeated on every row.
type identity struct {
	File        string
	StudyUID    string
	SeriesUID   string
	InstanceUID string
	SOPClassUID string
	Modality    string
}

// TagRow is one flattened element.
type TagRow struct {
	identity
	Tag   string
	VR    string
	VM    int
	Path  string
	Value string
}

var partHeader = []string{
	"file", "study_uid", "series_uid", "instance_uid", "sop_class_uid",
	"modality", "tag", "vr", "vm", "path", "value",
}

func (r TagRow) record() []string {
	return []string{
		r.File, r.StudyUID, r.SeriesUID, r.InstanceUID, r.SOPClassUID,
		r.Modality, r.Tag, r.VR, strconv.Itoa(r.VM), r.Path, r.Value,
	}
}

// Flatten walks a parsed artifact and returns one row per primitive
// element in both the file meta and the main dataset. Bulk payload
// elements are skipped; only their byte length is reported.
func Flatten(file string, parsed *dicom.File) []TagRow {
	id := identity{
		File:        file,
		StudyUID:    stringAt(parsed.Dataset, dicom.TagStudyInstanceUID),
		SeriesUID:   stringAt(parsed.Dataset, dicom.TagSeriesInstanceUID),
		InstanceUID: stringAt(parsed.Dataset, dicom.TagSOPInstanceUID),
		SOPClassUID: stringAt(parsed.Dataset, dicom.TagSOPClassUID),
		Modality:    stringAt(parsed.Dataset, dicom.TagModality),
	}

	var rows []TagRow
	walkDataset(id, "", parsed.Meta, &rows)
	walkDataset(id, "", parsed.Dataset, &rows)
	return rows
}

func stringAt(ds *dicom.Dataset, tag dicom.Tag) string {
	if elem, ok := ds.Find(tag); ok {
		return elem.String()
	}
	return ""
}

func walkDataset(id identity, prefix string, ds *dicom.Dataset, rows *[]TagRow) {
	if ds == nil {
		return
	}
	for i := range ds.Elements {
		elem := &ds.Elements[i]
		path := dicom.Keyword(elem.Tag)
		if prefix != "" {
			path = prefix + "." + path
		}
		if elem.VR == "SQ" {
			for j, item := range elem.Items {
				walkDataset(id, fmt.Sprintf("%s[%d]", path, j), item, rows)
			}
			continue
		}
		*rows = append(*rows, TagRow{
			identity: id,
			Tag:      elem.Tag.Hex(),
			VR:       elem.VR,
			VM:       elem.Multiplicity(),
			Path:     path,
			Value:    renderValue(elem),
		})
	}
}

// renderValue turns an element into display text. Binary bulk VRs report
// their length rather than their content.
func renderValue(elem *dicom.Element) string {
	switch elem.VR {
	case "OB", "OW", "UN":
		return fmt.Sprintf("<%d bytes>", len(elem.Value))
	case "US":
		if v, err := elem.Uint16(); err == nil {
			return strconv.Itoa(int(v))
		}
	case "UL":
		if v, err := elem.Uint32(); err == nil {
			return strconv.FormatUint(uint64(v), 10)
		}
	}
	text := elem.String()
	if len(text) > maxValueLen {
		text = text[:maxValueLen]
	}
	return text
}

// Exporter flattens a directory of artifacts into sharded CSV parts.
type Exporter struct {
	ShardSize int
	Logger    *slog.Logger
}

// Run flattens every .dcm file under srcDir into part-NNNNN.csv files in
// destDir. Unreadable artifacts are logged and skipped; the export keeps
// going. Returns the number of artifacts exported.
func (x *Exporter) Run(ctx context.Context, srcDir, destDir string) (int, error) {
	logger := x.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithComponent(logger, "export")

	shardSize := x.ShardSize
	if shardSize <= 0 {
		shardSize = DefaultShardSize
	}

	paths, err := artifactPaths(srcDir)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("ensure export directory: %w", err)
	}

	shard := newShardWriter(destDir, shardSize)
	exported := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return exported, err
		}
		parsed, err := dicom.ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable artifact",
				logging.String("path", path), logging.Error(err))
			continue
		}
		if err := shard.writeRows(Flatten(filepath.Base(path), parsed)); err != nil {
			return exported, err
		}
		exported++
	}
	if err := shard.flush(); err != nil {
		return exported, err
	}
	logger.Info("export complete",
		logging.Int("artifacts", exported),
		logging.Int("parts", shard.parts))
	return exported, nil
}

func artifactPaths(srcDir string) ([]string, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("read artifact directory: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".dcm") {
			continue
		}
		paths = append(paths, filepath.Join(srcDir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// shardWriter buffers rows and writes a numbered part file each time the
// shard fills. Part files are written atomically.
type shardWriter struct {
	dir   string
	size  int
	rows  []TagRow
	parts int
}

func newShardWriter(dir string, size int) *shardWriter {
	return &shardWriter{dir: dir, size: size}
}

func (w *shardWriter) writeRows(rows []TagRow) error {
	w.rows = append(w.rows, rows...)
	for len(w.rows) >= w.size {
		if err := w.writePart(w.rows[:w.size]); err != nil {
			return err
		}
		w.rows = w.rows[w.size:]
	}
	return nil
}

func (w *shardWriter) flush() error {
	if len(w.rows) == 0 {
		return nil
	}
	if err := w.writePart(w.rows); err != nil {
		return err
	}
	w.rows = nil
	return nil
}

func (w *shardWriter) writePart(rows []TagRow) error {
	var buf strings.Builder
	writer := csv.NewWriter(&buf)
	if err := writer.Write(partHeader); err != nil {
		return fmt.Errorf("write part header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row.record()); err != nil {
			return fmt.Errorf("write part row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush part: %w", err)
	}

	name := fmt.Sprintf("part-%05d.csv", w.parts)
	if err := fileutil.WriteAtomic(filepath.Join(w.dir, name), []byte(buf.String()), 0o644); err != nil {
		return fmt.Errorf("write part %s: %w", name, err)
	}
	w.parts++
	return nil
}
