package dicom

import (
	"errors"
	"fmt"
)

// Validate re-opens a produced artifact and checks its layout invariants
// independent of the writer: a waveform record must be present; channel
// count, sample count, and sampling frequency must be strictly positive;
// the sample interpretation must be SS with 16 bits allocated; and the
// payload length must equal channels*samples*2. A nil return is the only
// definition of success the pipeline trusts.
func Validate(path string) error {
	file, err := ReadFile(path)
	if err != nil {
		return err
	}
	return ValidateFile(file)
}

// ValidateFile checks an already-parsed artifact.
func ValidateFile(file *File) error {
	seq, ok := file.Dataset.Find(TagWaveformSequence)
	if !ok || len(seq.Items) == 0 {
		return errors.New("no waveform sequence")
	}
	wf := seq.Items[0]

	channels := intFromElement(wf, TagNumWaveformChannels)
	samples := intFromElement(wf, TagNumWaveformSamples)
	frequency := floatFromElement(wf, TagSamplingFrequency)
	if channels <= 0 || samples <= 0 || frequency <= 0 {
		return fmt.Errorf("invalid channels/samples/frequency: %d/%d/%g", channels, samples, frequency)
	}

	interpretation := ""
	if elem, ok := wf.Find(TagSampleInterpretation); ok {
		interpretation = elem.String()
	}
	if interpretation != SampleInterpretation {
		return fmt.Errorf("unexpected interpretation: %q", interpretation)
	}

	bits := intFromElement(wf, TagWaveformBitsAlloc)
	if bits != BitsAllocated {
		return fmt.Errorf("unexpected bits allocated: %d", bits)
	}

	payload, ok := wf.Find(TagWaveformData)
	if !ok {
		return errors.New("no waveform data")
	}
	if expected := channels * samples * 2; len(payload.Value) != expected {
		return fmt.Errorf("waveform data length mismatch: %d != %d", len(payload.Value), expected)
	}
	return nil
}

func intFromElement(ds *Dataset, tag Tag) int {
	elem, ok := ds.Find(tag)
	if !ok {
		return 0
	}
	switch elem.VR {
	case "US":
		v, err := elem.Uint16()
		if err != nil {
			return 0
		}
		return int(v)
	case "UL":
		v, err := elem.Uint32()
		if err != nil {
			return 0
		}
		return int(v)
	default:
		v, err := elem.Float()
		if err != nil {
			return 0
		}
		return int(v)
	}
}

func floatFromElement(ds *Dataset, tag Tag) float64 {
	elem, ok := ds.Find(tag)
	if !ok {
		return 0
	}
	v, err := elem.Float()
	if err != nil {
		return 0
	}
	return v
}
