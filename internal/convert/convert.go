// Package convert maps one source record to one waveform artifact.
//
// It runs inside the disposable per-task child process: it reads the raw
// digital samples, derives identity and acquisition fields, writes the
// artifact, and immediately re-validates it. All outcomes are reported as
// tagged results; no error from this package crosses the process boundary.
package convert

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"wavebatch/internal/dicom"
	"wavebatch/internal/leadcodes"
	"wavebatch/internal/logging"
	"wavebatch/internal/task"
	"wavebatch/internal/wfdb"
)

// UnknownSubject is the sentinel patient identifier used when no subject
// annotation is present in the record.
const UnknownSubject = "UNKNOWN"

// subjectMarker tags the annotation line carrying the subject identifier.
const subjectMarker = "<subject_id>"

// Run executes one conversion end to end: read, build, write, validate.
func Run(spec task.Spec, logger *slog.Logger) task.Result {
	if logger == nil {
		logger = logging.NewNop()
	}

	outputPath, err := Convert(spec, logger)
	if err != nil {
		return task.ConversionFailure(spec.TaskID, err)
	}
	if err := dicom.Validate(outputPath); err != nil {
		return task.ValidationFailure(spec.TaskID, err.Error())
	}
	return task.Success(spec.TaskID, outputPath)
}

// Convert reads the record at spec.SourcePath and writes the artifact to
// spec.OutputPath. The returned path equals spec.OutputPath on success.
func Convert(spec task.Spec, logger *slog.Logger) (string, error) {
	record, err := wfdb.ReadRecord(spec.SourcePath)
	if err != nil {
		return "", fmt.Errorf("read record: %w", err)
	}
	if len(record.Samples) == 0 {
		return "", fmt.Errorf("record %s has no samples", record.Name)
	}

	artifact, err := buildArtifact(spec, record, logger)
	if err != nil {
		return "", err
	}
	if err := artifact.Write(spec.OutputPath); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return spec.OutputPath, nil
}

func buildArtifact(spec task.Spec, record *wfdb.Record, logger *slog.Logger) (*dicom.Artifact, error) {
	channels := make([]dicom.Channel, 0, record.NumSignals)
	for _, signal := range record.Signals {
		if signal.Gain == 0 {
			return nil, fmt.Errorf("channel %q has zero gain", signal.Label)
		}
		channels = append(channels, dicom.Channel{
			Label:       signal.Label,
			Code:        leadcodes.Lookup(signal.Label),
			Sensitivity: 1.0 / signal.Gain,
			Baseline:    signal.Baseline,
		})
	}

	artifact := &dicom.Artifact{
		PatientID:         subjectID(record.Comments),
		StudyID:           record.Name,
		StudyInstanceUID:  dicom.NewUID(),
		SeriesInstanceUID: dicom.NewUID(),
		SOPInstanceUID:    dicom.NewUID(),
		AcquiredAt:        acquisitionTime(spec, record, logger),
		Channels:          channels,
		SampleCount:       record.NumSamples,
		SamplingFrequency: record.Fs,
		Payload:           encodePayload(record.Samples),
	}

	if spec.Metadata != nil {
		artifact.StationName = spec.Metadata.CartID
		artifact.FilterLow = spec.Metadata.FilterLow
		artifact.FilterHigh = spec.Metadata.FilterHigh
	}

	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	return artifact, nil
}

// acquisitionTime derives the acquisition timestamp: the embedded header
// timestamp wins, then the metadata row's timestamp, then the current wall
// clock. The last fallback stamps a synthetic time and is therefore logged.
func acquisitionTime(spec task.Spec, record *wfdb.Record, logger *slog.Logger) time.Time {
	if record.BaseTime != nil {
		return *record.BaseTime
	}
	if spec.Metadata != nil && spec.Metadata.RecordedAt != nil {
		return *spec.Metadata.RecordedAt
	}
	logger.Warn("no embedded or tabular acquisition time; stamping current wall clock",
		logging.String(logging.FieldTaskID, spec.TaskID))
	return time.Now()
}

// subjectID scans annotation lines for the tagged subject marker and takes
// the text after the first colon.
func subjectID(comments []string) string {
	for _, line := range comments {
		trimmed := strings.TrimSpace(strings.TrimLeft(line, "#"))
		if !strings.HasPrefix(strings.ToLower(trimmed), subjectMarker) {
			continue
		}
		if _, after, found := strings.Cut(trimmed, ":"); found {
			if subject := strings.TrimSpace(after); subject != "" {
				return subject
			}
		}
	}
	return UnknownSubject
}

// encodePayload serializes digital samples as signed 16-bit little-endian
// words, preserving the reader's sample-major channel-minor ordering.
func encodePayload(samples []int16) []byte {
	payload := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(payload[i*2:], uint16(sample))
	}
	return payload
}
