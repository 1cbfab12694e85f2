package wfdb

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteRecord writes a record's header and sample file into dir. Signals
// that do not name a data file share "<name>.dat". Used by tests and by
// tooling that synthesizes records.
func WriteRecord(dir string, record *Record) error {
	if record == nil || record.Name == "" {
		return fmt.Errorf("record needs a name")
	}
	if record.NumSignals != len(record.Signals) {
		return fmt.Errorf("record declares %d signals but has %d", record.NumSignals, len(record.Signals))
	}
	if len(record.Samples) != record.NumSamples*record.NumSignals {
		return fmt.Errorf("sample slice length %d does not match %d samples x %d signals",
			len(record.Samples), record.NumSamples, record.NumSignals)
	}

	dataFile := record.Name + ".dat"

	var header strings.Builder
	fmt.Fprintf(&header, "%s %d %g %d", record.Name, record.NumSignals, record.Fs, record.NumSamples)
	if record.BaseTime != nil {
		fmt.Fprintf(&header, " %s %s", record.BaseTime.Format("15:04:05"), record.BaseTime.Format("02/01/2006"))
	}
	header.WriteByte('\n')

	for _, signal := range record.Signals {
		file := signal.FileName
		if file == "" {
			file = dataFile
		}
		gain := signal.Gain
		if gain == 0 {
			gain = defaultGain
		}
		unit := signal.Unit
		if unit == "" {
			unit = defaultUnit
		}
		fmt.Fprintf(&header, "%s %d %g(%d)/%s 16 0 0 0 0 %s\n",
			file, FormatInt16, gain, signal.Baseline, unit, signal.Label)
	}
	for _, comment := range record.Comments {
		fmt.Fprintf(&header, "# %s\n", comment)
	}

	if err := os.WriteFile(filepath.Join(dir, record.Name+".hea"), []byte(header.String()), 0o644); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	payload := make([]byte, len(record.Samples)*2)
	for i, sample := range record.Samples {
		binary.LittleEndian.PutUint16(payload[i*2:], uint16(sample))
	}
	if err := os.WriteFile(filepath.Join(dir, dataFile), payload, 0o644); err != nil {
		return fmt.Errorf("write signal file: %w", err)
	}
	return nil
}
