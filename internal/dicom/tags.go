package dicom

import "fmt"

// Tag identifies one data element.
type Tag struct {
	Group   uint16
	Element uint16
}

func (t Tag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
}

// Hex returns the tag as 8 uppercase hex digits, e.g. 00080016.
func (t Tag) Hex() string {
	return fmt.Sprintf("%04X%04X", t.Group, t.Element)
}

// Less orders tags the way datasets must be written.
func (t Tag) Less(other Tag) bool {
	if t.Group != other.Group {
		return t.Group < other.Group
	}
	return t.Element < other.Element
}

// File meta tags (group 0002).
var (
	TagFileMetaGroupLength = Tag{0x0002, 0x0000}
	TagFileMetaVersion     = Tag{0x0002, 0x0001}
	TagMediaSOPClassUID    = Tag{0x0002, 0x0002}
	TagMediaSOPInstanceUID = Tag{0x0002, 0x0003}
	TagTransferSyntaxUID   = Tag{0x0002, 0x0010}
	TagImplementationUID   = Tag{0x0002, 0x0012}
)

// Dataset tags.
var (
	TagSOPClassUID          = Tag{0x0008, 0x0016}
	TagSOPInstanceUID       = Tag{0x0008, 0x0018}
	TagStudyDate            = Tag{0x0008, 0x0020}
	TagAcquisitionDateTime  = Tag{0x0008, 0x002A}
	TagStudyTime            = Tag{0x0008, 0x0030}
	TagModality             = Tag{0x0008, 0x0060}
	TagStationName          = Tag{0x0008, 0x1010}
	TagCodeValue            = Tag{0x0008, 0x0100}
	TagCodingSchemeDesig    = Tag{0x0008, 0x0102}
	TagCodeMeaning          = Tag{0x0008, 0x0104}
	TagPatientID            = Tag{0x0010, 0x0020}
	TagStudyInstanceUID     = Tag{0x0020, 0x000D}
	TagSeriesInstanceUID    = Tag{0x0020, 0x000E}
	TagStudyID              = Tag{0x0020, 0x0010}
	TagSeriesNumber         = Tag{0x0020, 0x0011}
	TagInstanceNumber       = Tag{0x0020, 0x0013}
	TagWaveformOriginality  = Tag{0x003A, 0x0004}
	TagNumWaveformChannels  = Tag{0x003A, 0x0005}
	TagNumWaveformSamples   = Tag{0x003A, 0x0010}
	TagSamplingFrequency    = Tag{0x003A, 0x001A}
	TagMultiplexGroupLabel  = Tag{0x003A, 0x0020}
	TagChannelDefSequence   = Tag{0x003A, 0x0200}
	TagChannelLabel         = Tag{0x003A, 0x0203}
	TagChannelSourceSeq     = Tag{0x003A, 0x0208}
	TagChannelSensitivity   = Tag{0x003A, 0x0210}
	TagChannelSensUnitsSeq  = Tag{0x003A, 0x0211}
	TagChannelBaseline      = Tag{0x003A, 0x0213}
	TagWaveformBitsStored   = Tag{0x003A, 0x021A}
	TagFilterLowFrequency   = Tag{0x003A, 0x0220}
	TagFilterHighFrequency  = Tag{0x003A, 0x0221}
	TagWaveformSequence     = Tag{0x5400, 0x0100}
	TagWaveformBitsAlloc    = Tag{0x5400, 0x1004}
	TagSampleInterpretation = Tag{0x5400, 0x1006}
	TagWaveformData         = Tag{0x5400, 0x1010}
)

// Item framing tags.
var (
	tagItem         = Tag{0xFFFE, 0xE000}
	tagItemDelim    = Tag{0xFFFE, 0xE00D}
	tagSeqDelim     = Tag{0xFFFE, 0xE0DD}
	undefinedLength = uint32(0xFFFFFFFF)
)

// Well-known UID values.
const (
	// TwelveLeadECGStorage identifies the artifact SOP class.
	TwelveLeadECGStorage = "1.2.840.10008.5.1.4.1.1.9.1.1"
	// ExplicitVRLittleEndian is the only transfer syntax written or read.
	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"
	// implementationClassUID identifies this writer in file meta.
	implementationClassUID = "1.2.826.0.1.3680043.10.1447.1"
)

// keywords maps the tags this pipeline knows to their standard keywords.
// Anything outside this set renders as the raw tag in exports.
var keywords = map[Tag]string{
	TagFileMetaGroupLength: "FileMetaInformationGroupLength",
	TagFileMetaVersion:     "FileMetaInformationVersion",
	TagMediaSOPClassUID:    "MediaStorageSOPClassUID",
	TagMediaSOPInstanceUID: "MediaStorageSOPInstanceUID",
	TagTransferSyntaxUID:   "TransferSyntaxUID",
	TagImplementationUID:   "ImplementationClassUID",

	TagSOPClassUID:          "SOPClassUID",
	TagSOPInstanceUID:       "SOPInstanceUID",
	TagStudyDate:            "StudyDate",
	TagAcquisitionDateTime:  "AcquisitionDateTime",
	TagStudyTime:            "StudyTime",
	TagModality:             "Modality",
	TagStationName:          "StationName",
	TagCodeValue:            "CodeValue",
	TagCodingSchemeDesig:    "CodingSchemeDesignator",
	TagCodeMeaning:          "CodeMeaning",
	TagPatientID:            "PatientID",
	TagStudyInstanceUID:     "StudyInstanceUID",
	TagSeriesInstanceUID:    "SeriesInstanceUID",
	TagStudyID:              "StudyID",
	TagSeriesNumber:         "SeriesNumber",
	TagInstanceNumber:       "InstanceNumber",
	TagWaveformOriginality:  "WaveformOriginality",
	TagNumWaveformChannels:  "NumberOfWaveformChannels",
	TagNumWaveformSamples:   "NumberOfWaveformSamples",
	TagSamplingFrequency:    "SamplingFrequency",
	TagMultiplexGroupLabel:  "MultiplexGroupLabel",
	TagChannelDefSequence:   "ChannelDefinitionSequence",
	TagChannelLabel:         "ChannelLabel",
	TagChannelSourceSeq:     "ChannelSourceSequence",
	TagChannelSensitivity:   "ChannelSensitivity",
	TagChannelSensUnitsSeq:  "ChannelSensitivityUnitsSequence",
	TagChannelBaseline:      "ChannelBaseline",
	TagWaveformBitsStored:   "WaveformBitsStored",
	TagFilterLowFrequency:   "FilterLowFrequency",
	TagFilterHighFrequency:  "FilterHighFrequency",
	TagWaveformSequence:     "WaveformSequence",
	TagWaveformBitsAlloc:    "WaveformBitsAllocated",
	TagSampleInterpretation: "WaveformSampleInterpretation",
	TagWaveformData:         "WaveformData",
}

// Keyword returns the standard keyword for known tags, else the raw tag.
func Keyword(tag Tag) string {
	if name, ok := keywords[tag]; ok {
		return name
	}
	return tag.String()
}
