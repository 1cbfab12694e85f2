package dicom

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wavebatch/internal/leadcodes"
)

func testArtifact(t *testing.T, channels, samples int) *Artifact {
	t.Helper()
	labels := []string{"I", "II", "III", "aVR", "aVL", "aVF", "V1", "V2", "V3", "V4", "V5", "V6"}
	chs := make([]Channel, channels)
	for i := range chs {
		label := labels[i%len(labels)]
		chs[i] = Channel{
			Label:       label,
			Code:        leadcodes.Lookup(label),
			Sensitivity: 0.005,
			Baseline:    0,
		}
	}
	return &Artifact{
		PatientID:         "SUBJ-42",
		StudyID:           "rec001",
		StationName:       "CART-7",
		StudyInstanceUID:  NewUID(),
		SeriesInstanceUID: NewUID(),
		SOPInstanceUID:    NewUID(),
		AcquiredAt:        time.Date(2021, time.March, 4, 10, 20, 30, 0, time.UTC),
		Channels:          chs,
		SampleCount:       samples,
		SamplingFrequency: 500,
		Payload:           make([]byte, channels*samples*2),
	}
}

func TestArtifactWriteProducesValidFile(t *testing.T) {
	artifact := testArtifact(t, 12, 5000)
	path := filepath.Join(t.TempDir(), "rec001.dcm")
	if err := artifact.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Validate(path); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	file, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	seq, ok := file.Dataset.Find(TagWaveformSequence)
	if !ok || len(seq.Items) != 1 {
		t.Fatal("want exactly one waveform multiplex group")
	}
	item := seq.Items[0]

	data, ok := item.Find(TagWaveformData)
	if !ok {
		t.Fatal("want waveform data element")
	}
	if len(data.Value) != 12*5000*2 {
		t.Fatalf("payload: got %d bytes, want %d", len(data.Value), 12*5000*2)
	}

	interp, ok := item.Find(TagSampleInterpretation)
	if !ok || interp.String() != "SS" {
		t.Fatalf("sample interpretation: %v", interp)
	}

	defs, ok := item.Find(TagChannelDefSequence)
	if !ok || len(defs.Items) != 12 {
		t.Fatalf("want 12 channel definitions, got %v", defs)
	}
	label, ok := defs.Items[0].Find(TagChannelLabel)
	if !ok || label.String() != "I" {
		t.Fatalf("channel 0 label: %v", label)
	}

	station, ok := file.Dataset.Find(TagStationName)
	if !ok || station.String() != "CART-7" {
		t.Fatalf("station name: %v", station)
	}
}

func TestArtifactValidateRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Artifact)
		wantErr string
	}{
		{"no channels", func(a *Artifact) { a.Channels = nil }, "at least one channel"},
		{"zero samples", func(a *Artifact) { a.SampleCount = 0 }, "positive sample count"},
		{"zero frequency", func(a *Artifact) { a.SamplingFrequency = 0 }, "positive sampling frequency"},
		{"short payload", func(a *Artifact) { a.Payload = a.Payload[:10] }, "payload is 10 bytes"},
		{"missing uid", func(a *Artifact) { a.SOPInstanceUID = "" }, "UIDs"},
		{"zero time", func(a *Artifact) { a.AcquiredAt = time.Time{} }, "acquisition time"},
		{"zero sensitivity", func(a *Artifact) { a.Channels[0].Sensitivity = 0 }, "zero sensitivity"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			artifact := testArtifact(t, 2, 8)
			tc.mutate(artifact)
			err := artifact.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("want error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidateRejectsTruncatedFile(t *testing.T) {
	artifact := testArtifact(t, 3, 100)
	path := filepath.Join(t.TempDir(), "trunc.dcm")
	if err := artifact.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)-64], 0o644); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	if err := Validate(path); err == nil {
		t.Fatal("want validation failure for truncated file")
	}
}

func TestValidateRejectsNonDICOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.dcm")
	if err := os.WriteFile(path, []byte("not a dicom file"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Validate(path); err == nil {
		t.Fatal("want error for non-DICOM payload")
	}
}

func TestNewUIDShape(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		uid := NewUID()
		if !strings.HasPrefix(uid, "2.25.") {
			t.Fatalf("uid %q lacks 2.25. root", uid)
		}
		if len(uid) > 64 {
			t.Fatalf("uid %q exceeds 64 chars", uid)
		}
		if _, dup := seen[uid]; dup {
			t.Fatalf("duplicate uid %q", uid)
		}
		seen[uid] = struct{}{}
	}
}
