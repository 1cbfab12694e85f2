package dicom

import (
	"fmt"
	"strconv"
	"strings"
)

// Element is one data element: either a primitive value held as encoded
// bytes or a sequence of item datasets.
type Element struct {
	Tag   Tag
	VR    string
	Value []byte
	Items []*Dataset
}

// Dataset is an ordered collection of elements. Callers append elements in
// ascending tag order; the writer enforces nothing beyond what it is given.
type Dataset struct {
	Elements []Element
}

// Find returns the first element with the given tag.
func (d *Dataset) Find(tag Tag) (*Element, bool) {
	for i := range d.Elements {
		if d.Elements[i].Tag == tag {
			return &d.Elements[i], true
		}
	}
	return nil, false
}

// SetString appends a string element, padding to even length on encode.
func (d *Dataset) SetString(tag Tag, vr, value string) {
	d.Elements = append(d.Elements, Element{Tag: tag, VR: vr, Value: []byte(value)})
}

// SetUint16 appends a US element.
func (d *Dataset) SetUint16(tag Tag, value uint16) {
	d.Elements = append(d.Elements, Element{Tag: tag, VR: "US", Value: []byte{byte(value), byte(value >> 8)}})
}

// SetUint32 appends a UL element.
func (d *Dataset) SetUint32(tag Tag, value uint32) {
	d.Elements = append(d.Elements, Element{
		Tag: tag, VR: "UL",
		Value: []byte{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)},
	})
}

// SetDecimal appends a DS element formatted the shortest way that round-trips.
func (d *Dataset) SetDecimal(tag Tag, value float64) {
	d.SetString(tag, "DS", strconv.FormatFloat(value, 'g', -1, 64))
}

// SetInteger appends an IS element.
func (d *Dataset) SetInteger(tag Tag, value int) {
	d.SetString(tag, "IS", strconv.Itoa(value))
}

// SetBytes appends a bulk-data element (OW or OB).
func (d *Dataset) SetBytes(tag Tag, vr string, value []byte) {
	d.Elements = append(d.Elements, Element{Tag: tag, VR: vr, Value: value})
}

// SetSequence appends an SQ element with the given items.
func (d *Dataset) SetSequence(tag Tag, items ...*Dataset) {
	d.Elements = append(d.Elements, Element{Tag: tag, VR: "SQ", Items: items})
}

// String decodes a text-VR value, trimming the trailing pad byte.
func (e *Element) String() string {
	return strings.TrimRight(string(e.Value), " \x00")
}

// Uint16 decodes a US value.
func (e *Element) Uint16() (uint16, error) {
	if len(e.Value) < 2 {
		return 0, fmt.Errorf("%s: value too short for US", e.Tag)
	}
	return uint16(e.Value[0]) | uint16(e.Value[1])<<8, nil
}

// Uint32 decodes a UL value.
func (e *Element) Uint32() (uint32, error) {
	if len(e.Value) < 4 {
		return 0, fmt.Errorf("%s: value too short for UL", e.Tag)
	}
	return uint32(e.Value[0]) | uint32(e.Value[1])<<8 | uint32(e.Value[2])<<16 | uint32(e.Value[3])<<24, nil
}

// Float decodes a DS value (first value when multi-valued).
func (e *Element) Float() (float64, error) {
	text := e.String()
	if idx := strings.IndexByte(text, '\\'); idx >= 0 {
		text = text[:idx]
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: bad decimal %q", e.Tag, text)
	}
	return value, nil
}

// Multiplicity reports the number of values the element carries: item count
// for sequences, backslash-separated count for text VRs, fixed-width count
// for binary VRs.
func (e *Element) Multiplicity() int {
	switch e.VR {
	case "SQ":
		return len(e.Items)
	case "US":
		return len(e.Value) / 2
	case "UL", "FL":
		return len(e.Value) / 4
	case "OW", "OB":
		if len(e.Value) > 0 {
			return 1
		}
		return 0
	default:
		text := e.String()
		if text == "" {
			return 0
		}
		return strings.Count(text, "\\") + 1
	}
}
