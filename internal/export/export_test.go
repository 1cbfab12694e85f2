package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"wavebatch/internal/dicom"
	"wavebatch/internal/leadcodes"
)

func writeArtifact(t *testing.T, dir, name string, channels, samples int) {
	t.Helper()
	chs := make([]dicom.Channel, channels)
	for i := range chs {
		label := "L" + strconv.Itoa(i)
		chs[i] = dicom.Channel{Label: label, Code: leadcodes.Lookup(label), Sensitivity: 0.005}
	}
	artifact := &dicom.Artifact{
		PatientID:         "SUBJ-1",
		StudyID:           name,
		StudyInstanceUID:  dicom.NewUID(),
		SeriesInstanceUID: dicom.NewUID(),
		SOPInstanceUID:    dicom.NewUID(),
		AcquiredAt:        time.Date(2021, time.March, 4, 10, 20, 30, 0, time.UTC),
		Channels:          chs,
		SampleCount:       samples,
		SamplingFrequency: 500,
		Payload:           make([]byte, channels*samples*2),
	}
	if err := artifact.Write(filepath.Join(dir, name+".dcm")); err != nil {
		t.Fatalf("write artifact %s: %v", name, err)
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open part: %v", err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("parse part: %v", err)
	}
	return rows
}

func TestFlattenBuildsDottedPaths(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "rec1", 2, 10)

	file, err := dicom.ReadFile(filepath.Join(dir, "rec1.dcm"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	rows := Flatten("rec1.dcm", file)

	byPath := make(map[string]TagRow, len(rows))
	for _, row := range rows {
		byPath[row.Path] = row
	}

	row, ok := byPath["PatientID"]
	if !ok || row.Value != "SUBJ-1" {
		t.Fatalf("PatientID row: %+v", row)
	}
	if row.File != "rec1.dcm" || row.Tag != "00100020" || row.VM != 1 {
		t.Fatalf("PatientID identity columns: %+v", row)
	}
	if row.Modality != "ECG" || row.StudyUID == "" || row.InstanceUID == "" {
		t.Fatalf("artifact identity columns: %+v", row)
	}
	if row, ok := byPath["WaveformSequence[0].NumberOfWaveformChannels"]; !ok || row.Value != "2" {
		t.Fatalf("channel count row: %+v", row)
	}
	label := "WaveformSequence[0].ChannelDefinitionSequence[1].ChannelLabel"
	if row, ok := byPath[label]; !ok || row.Value != "L1" {
		t.Fatalf("nested label row: %+v", row)
	}

	// Bulk payload is summarized, never inlined.
	data, ok := byPath["WaveformSequence[0].WaveformData"]
	if !ok {
		t.Fatal("want waveform data row")
	}
	if data.Value != "<40 bytes>" {
		t.Fatalf("bulk value %q", data.Value)
	}

	// File meta rides along.
	if _, ok := byPath["TransferSyntaxUID"]; !ok {
		t.Fatal("want transfer syntax row from file meta")
	}
}

func TestExporterShardsOutput(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	for i := 0; i < 3; i++ {
		writeArtifact(t, src, "rec"+strconv.Itoa(i), 1, 5)
	}
	// Non-artifact files are ignored.
	if err := os.WriteFile(filepath.Join(src, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write noise: %v", err)
	}

	exporter := &Exporter{ShardSize: 25}
	exported, err := exporter.Run(context.Background(), src, dest)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported != 3 {
		t.Fatalf("exported = %d, want 3", exported)
	}

	parts, err := filepath.Glob(filepath.Join(dest, "part-*.csv"))
	if err != nil {
		t.Fatalf("glob parts: %v", err)
	}
	if len(parts) < 2 {
		t.Fatalf("want multiple shards with shard size 25, got %v", parts)
	}

	total := 0
	for _, part := range parts {
		rows := readRows(t, part)
		if rows[0][0] != "file" || rows[0][6] != "tag" || rows[0][9] != "path" {
			t.Fatalf("part header %v", rows[0])
		}
		total += len(rows) - 1
	}
	if total == 0 {
		t.Fatal("no rows exported")
	}
}

func TestExporterSkipsUnreadableArtifacts(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeArtifact(t, src, "good", 1, 5)
	if err := os.WriteFile(filepath.Join(src, "bad.dcm"), []byte("junk"), 0o644); err != nil {
		t.Fatalf("write junk: %v", err)
	}

	exporter := &Exporter{}
	exported, err := exporter.Run(context.Background(), src, dest)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported != 1 {
		t.Fatalf("exported = %d, want the readable artifact only", exported)
	}
}
