package dicom

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"wavebatch/internal/leadcodes"
)

// Fixed layout values every artifact carries.
const (
	BitsAllocated        = 16
	SampleInterpretation = "SS"
	waveformOriginality  = "ORIGINAL"
	multiplexGroupLabel  = "ECG"
	modality             = "ECG"
)

// Channel describes one waveform channel of an artifact.
type Channel struct {
	Label       string
	Code        leadcodes.Code
	Sensitivity float64
	Baseline    int
}

// Artifact is the strongly-typed model of one waveform file. Required
// fields are checked at build time by Validate, not at serialization time.
type Artifact struct {
	PatientID         string
	StudyID           string
	StationName       string
	StudyInstanceUID  string
	SeriesInstanceUID string
	SOPInstanceUID    string
	AcquiredAt        time.Time

	Channels          []Channel
	SampleCount       int
	SamplingFrequency float64
	FilterLow         *float64
	FilterHigh        *float64
	// Payload holds signed 16-bit little-endian samples in sample-major,
	// channel-minor order; length must be len(Channels)*SampleCount*2.
	Payload []byte
}

// Validate checks the construction-time invariants.
func (a *Artifact) Validate() error {
	if len(a.Channels) == 0 {
		return errors.New("artifact needs at least one channel")
	}
	if a.SampleCount <= 0 {
		return errors.New("artifact needs a positive sample count")
	}
	if a.SamplingFrequency <= 0 {
		return errors.New("artifact needs a positive sampling frequency")
	}
	if want := len(a.Channels) * a.SampleCount * 2; len(a.Payload) != want {
		return fmt.Errorf("payload is %d bytes, want %d", len(a.Payload), want)
	}
	if a.SOPInstanceUID == "" || a.StudyInstanceUID == "" || a.SeriesInstanceUID == "" {
		return errors.New("artifact needs instance, study, and series UIDs")
	}
	if a.AcquiredAt.IsZero() {
		return errors.New("artifact needs an acquisition time")
	}
	for i, ch := range a.Channels {
		if ch.Sensitivity == 0 {
			return fmt.Errorf("channel %d (%s) has zero sensitivity", i, ch.Label)
		}
		if ch.Code.Value == "" {
			return fmt.Errorf("channel %d (%s) has no identity code", i, ch.Label)
		}
	}
	return nil
}

// Write validates the artifact and serializes it to path.
func (a *Artifact) Write(path string) error {
	if err := a.Validate(); err != nil {
		return err
	}

	meta, err := NewFileMeta(TwelveLeadECGStorage, a.SOPInstanceUID)
	if err != nil {
		return err
	}
	return WriteFile(path, meta, a.dataset())
}

func (a *Artifact) dataset() *Dataset {
	ds := &Dataset{}
	ds.SetString(TagSOPClassUID, "UI", TwelveLeadECGStorage)
	ds.SetString(TagSOPInstanceUID, "UI", a.SOPInstanceUID)
	ds.SetString(TagStudyDate, "DA", a.AcquiredAt.Format("20060102"))
	ds.SetString(TagAcquisitionDateTime, "DT", a.AcquiredAt.Format("20060102150405"))
	ds.SetString(TagStudyTime, "TM", a.AcquiredAt.Format("150405"))
	ds.SetString(TagModality, "CS", modality)
	if a.StationName != "" {
		ds.SetString(TagStationName, "SH", a.StationName)
	}
	ds.SetString(TagPatientID, "LO", a.PatientID)
	ds.SetString(TagStudyInstanceUID, "UI", a.StudyInstanceUID)
	ds.SetString(TagSeriesInstanceUID, "UI", a.SeriesInstanceUID)
	ds.SetString(TagStudyID, "SH", a.StudyID)
	ds.SetInteger(TagSeriesNumber, 1)
	ds.SetInteger(TagInstanceNumber, 1)
	ds.SetSequence(TagWaveformSequence, a.waveformItem())
	return ds
}

func (a *Artifact) waveformItem() *Dataset {
	item := &Dataset{}
	item.SetString(TagWaveformOriginality, "CS", waveformOriginality)
	item.SetUint16(TagNumWaveformChannels, uint16(len(a.Channels)))
	item.SetUint32(TagNumWaveformSamples, uint32(a.SampleCount))
	item.SetDecimal(TagSamplingFrequency, a.SamplingFrequency)
	item.SetString(TagMultiplexGroupLabel, "SH", multiplexGroupLabel)

	channels := make([]*Dataset, 0, len(a.Channels))
	for _, ch := range a.Channels {
		channels = append(channels, channelItem(ch))
	}
	item.SetSequence(TagChannelDefSequence, channels...)

	if a.FilterLow != nil {
		item.SetDecimal(TagFilterLowFrequency, *a.FilterLow)
	}
	if a.FilterHigh != nil {
		item.SetDecimal(TagFilterHighFrequency, *a.FilterHigh)
	}

	item.SetUint16(TagWaveformBitsAlloc, BitsAllocated)
	item.SetString(TagSampleInterpretation, "CS", SampleInterpretation)
	item.SetBytes(TagWaveformData, "OW", a.Payload)
	return item
}

func channelItem(ch Channel) *Dataset {
	item := &Dataset{}
	item.SetString(TagChannelLabel, "SH", ch.Label)
	item.SetSequence(TagChannelSourceSeq, codeItem(ch.Code))
	item.SetDecimal(TagChannelSensitivity, ch.Sensitivity)
	item.SetSequence(TagChannelSensUnitsSeq, codeItem(leadcodes.MillivoltUnit))
	item.SetString(TagChannelBaseline, "DS", strconv.Itoa(ch.Baseline))
	item.SetUint16(TagWaveformBitsStored, BitsAllocated)
	return item
}

func codeItem(code leadcodes.Code) *Dataset {
	item := &Dataset{}
	item.SetString(TagCodeValue, "SH", code.Value)
	item.SetString(TagCodingSchemeDesig, "SH", code.Scheme)
	item.SetString(TagCodeMeaning, "LO", code.Meaning)
	return item
}
