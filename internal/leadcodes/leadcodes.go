// Package leadcodes holds the static channel-identity vocabulary used when
// labelling waveform channels.
//
// Recognized lead labels map to MDC codes from CID 3001; anything else falls
// back to a local coding scheme that reuses the label verbatim, so unknown
// leads still produce a valid artifact.
package leadcodes

// Code identifies one channel source in a coding scheme.
type Code struct {
	Scheme  string
	Value   string
	Meaning string
}

// SchemeMDC is the standard vocabulary scheme for recognized leads.
const SchemeMDC = "MDC"

// SchemeLocal is the fallback scheme for labels outside the standard table.
const SchemeLocal = "99LOCAL"

// https://dicom.nema.org/medical/dicom/current/output/chtml/part16/sect_CID_3001.html
var mdcLeads = map[string]Code{
	"I":   {SchemeMDC, "2:1", "Lead I"},
	"II":  {SchemeMDC, "2:2", "Lead II"},
	"III": {SchemeMDC, "2:61", "Lead III"},
	"aVR": {SchemeMDC, "2:62", "aVR, augmented voltage, right"},
	"aVL": {SchemeMDC, "2:63", "aVL, augmented voltage, left"},
	"aVF": {SchemeMDC, "2:64", "aVF, augmented voltage, foot"},
	"V1":  {SchemeMDC, "2:3", "Lead V1"},
	"V2":  {SchemeMDC, "2:4", "Lead V2"},
	"V3":  {SchemeMDC, "2:5", "Lead V3"},
	"V4":  {SchemeMDC, "2:6", "Lead V4"},
	"V5":  {SchemeMDC, "2:7", "Lead V5"},
	"V6":  {SchemeMDC, "2:8", "Lead V6"},
}

// Lookup resolves a lead label to its channel-identity code. Unrecognized
// labels yield a local code whose value is the label itself.
func Lookup(label string) Code {
	if code, ok := mdcLeads[label]; ok {
		return code
	}
	return Code{Scheme: SchemeLocal, Value: label, Meaning: "ECG Lead " + label}
}

// IsStandard reports whether a label belongs to the standard vocabulary.
func IsStandard(label string) bool {
	_, ok := mdcLeads[label]
	return ok
}

// MillivoltUnit is the UCUM sensitivity unit attached to every channel.
var MillivoltUnit = Code{Scheme: "UCUM", Value: "mV", Meaning: "millivolt"}
