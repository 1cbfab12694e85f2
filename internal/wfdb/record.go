package wfdb

import "time"

// Signal describes one channel of a record.
type Signal struct {
	FileName string
	Format   int
	Gain     float64
	Baseline int
	Unit     string
	Label    string
}

// Record is a parsed waveform record with digital (un-scaled) samples.
type Record struct {
	Name       string
	NumSignals int
	Fs         float64
	NumSamples int
	// BaseTime is the acquisition timestamp from the header line, when the
	// optional time and date fields are present.
	BaseTime *time.Time
	Signals  []Signal
	Comments []string
	// Samples holds digital values in sample-major, channel-minor order;
	// length is NumSamples*NumSignals.
	Samples []int16
}

// At returns the digital value for a sample index and channel index.
func (r *Record) At(sample, channel int) int16 {
	return r.Samples[sample*r.NumSignals+channel]
}

const (
	// FormatInt16 is the only supported signal storage format: 16-bit
	// two's complement little-endian.
	FormatInt16 = 16

	defaultGain = 200.0
	defaultUnit = "mV"
)
