package wfdb

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ReadRecord reads the header and sample data for the record at
// pathNoExt (the record path without the .hea/.dat extension).
func ReadRecord(pathNoExt string) (*Record, error) {
	record, err := readHeader(pathNoExt + ".hea")
	if err != nil {
		return nil, err
	}
	if err := readSamples(filepath.Dir(pathNoExt), record); err != nil {
		return nil, err
	}
	return record, nil
}

// ReadHeader parses only the header file, leaving Samples nil, for
// callers that want the comments or base timestamp without paying for
// sample decoding.
func ReadHeader(pathNoExt string) (*Record, error) {
	return readHeader(pathNoExt + ".hea")
}

func readHeader(path string) (*Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open header: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	record := &Record{}
	parsedFirst := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			record.Comments = append(record.Comments, strings.TrimSpace(strings.TrimLeft(line, "#")))
			continue
		}
		if !parsedFirst {
			if err := parseRecordLine(line, record); err != nil {
				return nil, err
			}
			parsedFirst = true
			continue
		}
		if len(record.Signals) < record.NumSignals {
			signal, err := parseSignalLine(line, len(record.Signals))
			if err != nil {
				return nil, err
			}
			record.Signals = append(record.Signals, signal)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !parsedFirst {
		return nil, fmt.Errorf("header %s is empty", path)
	}
	if len(record.Signals) != record.NumSignals {
		return nil, fmt.Errorf("header declares %d signals but describes %d", record.NumSignals, len(record.Signals))
	}
	return record, nil
}

// parseRecordLine handles the first header line:
//
//	name nsig fs nsamples [time date]
//
// with time as HH:MM:SS and date as DD/MM/YYYY.
func parseRecordLine(line string, record *Record) error {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return fmt.Errorf("record line %q: want at least 4 fields", line)
	}

	record.Name = fields[0]

	nsig, err := strconv.Atoi(fields[1])
	if err != nil || nsig <= 0 {
		return fmt.Errorf("record line %q: bad signal count", line)
	}
	record.NumSignals = nsig

	fs, err := strconv.ParseFloat(fields[2], 64)
	if err != nil || fs <= 0 {
		return fmt.Errorf("record line %q: bad sampling frequency", line)
	}
	record.Fs = fs

	nsamp, err := strconv.Atoi(fields[3])
	if err != nil || nsamp < 0 {
		return fmt.Errorf("record line %q: bad sample count", line)
	}
	record.NumSamples = nsamp

	if len(fields) >= 6 {
		// Unparseable timestamps are treated as absent, not fatal.
		if ts, err := time.ParseInLocation("02/01/2006 15:04:05", fields[5]+" "+fields[4], time.Local); err == nil {
			record.BaseTime = &ts
		}
	}
	return nil
}

// parseSignalLine handles one signal description line:
//
//	file format gain(baseline)/unit [adc_res adc_zero init checksum blocksize description...]
func parseSignalLine(line string, index int) (Signal, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Signal{}, fmt.Errorf("signal line %q: want at least file and format", line)
	}

	signal := Signal{
		FileName: fields[0],
		Gain:     defaultGain,
		Unit:     defaultUnit,
		Label:    fmt.Sprintf("ch%d", index+1),
	}

	format, err := strconv.Atoi(strings.SplitN(fields[1], "x", 2)[0])
	if err != nil {
		return Signal{}, fmt.Errorf("signal line %q: bad format", line)
	}
	signal.Format = format

	if len(fields) >= 3 {
		if err := parseGainSpec(fields[2], &signal); err != nil {
			return Signal{}, fmt.Errorf("signal line %q: %w", line, err)
		}
	}
	if len(fields) >= 9 {
		signal.Label = strings.Join(fields[8:], " ")
	}
	return signal, nil
}

// parseGainSpec decodes gain(baseline)/unit with baseline and unit optional.
func parseGainSpec(spec string, signal *Signal) error {
	unitPart := ""
	if idx := strings.IndexByte(spec, '/'); idx >= 0 {
		unitPart = spec[idx+1:]
		spec = spec[:idx]
	}
	if open := strings.IndexByte(spec, '('); open >= 0 {
		close := strings.IndexByte(spec, ')')
		if close < open {
			return fmt.Errorf("bad gain spec %q", spec)
		}
		baseline, err := strconv.Atoi(spec[open+1 : close])
		if err != nil {
			return fmt.Errorf("bad baseline in %q", spec)
		}
		signal.Baseline = baseline
		spec = spec[:open]
	}
	if spec != "" {
		gain, err := strconv.ParseFloat(spec, 64)
		if err != nil {
			return fmt.Errorf("bad gain in %q", spec)
		}
		if gain != 0 {
			signal.Gain = gain
		}
	}
	if unitPart != "" {
		signal.Unit = unitPart
	}
	return nil
}

func readSamples(dir string, record *Record) error {
	if record.NumSignals == 0 {
		return nil
	}
	for _, signal := range record.Signals {
		if signal.Format != FormatInt16 {
			return fmt.Errorf("signal format %d is not supported (only %d)", signal.Format, FormatInt16)
		}
		if signal.FileName != record.Signals[0].FileName {
			return fmt.Errorf("multi-file records are not supported")
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, record.Signals[0].FileName))
	if err != nil {
		return fmt.Errorf("open signal file: %w", err)
	}

	want := record.NumSamples * record.NumSignals * 2
	if len(data) < want {
		return fmt.Errorf("signal file truncated: %d bytes, want %d", len(data), want)
	}

	samples := make([]int16, record.NumSamples*record.NumSignals)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	record.Samples = samples
	return nil
}
