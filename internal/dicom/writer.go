package dicom

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

var magic = []byte("DICM")

// longVRs require the 4-byte length form of explicit VR encoding.
var longVRs = map[string]bool{"OB": true, "OW": true, "OF": true, "SQ": true, "UT": true, "UN": true}

// WriteFile serializes a dataset with explicit-VR little-endian encoding:
// 128-byte preamble, DICM magic, group 0002 file meta, then the dataset.
func WriteFile(path string, meta, dataset *Dataset) error {
	var buf bytes.Buffer
	buf.Write(make([]byte, 128))
	buf.Write(magic)
	if err := encodeDataset(&buf, meta); err != nil {
		return fmt.Errorf("encode file meta: %w", err)
	}
	if err := encodeDataset(&buf, dataset); err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// NewFileMeta builds the group 0002 dataset, including the group length
// element required to lead the file.
func NewFileMeta(sopClassUID, sopInstanceUID string) (*Dataset, error) {
	body := &Dataset{}
	body.SetBytes(TagFileMetaVersion, "OB", []byte{0x00, 0x01})
	body.SetString(TagMediaSOPClassUID, "UI", sopClassUID)
	body.SetString(TagMediaSOPInstanceUID, "UI", sopInstanceUID)
	body.SetString(TagTransferSyntaxUID, "UI", ExplicitVRLittleEndian)
	body.SetString(TagImplementationUID, "UI", implementationClassUID)

	var encoded bytes.Buffer
	if err := encodeDataset(&encoded, body); err != nil {
		return nil, err
	}

	meta := &Dataset{}
	meta.SetUint32(TagFileMetaGroupLength, uint32(encoded.Len()))
	meta.Elements = append(meta.Elements, body.Elements...)
	return meta, nil
}

func encodeDataset(buf *bytes.Buffer, dataset *Dataset) error {
	if dataset == nil {
		return nil
	}
	for i := range dataset.Elements {
		if err := encodeElement(buf, &dataset.Elements[i]); err != nil {
			return err
		}
	}
	return nil
}

func encodeElement(buf *bytes.Buffer, elem *Element) error {
	if len(elem.VR) != 2 {
		return fmt.Errorf("%s: missing VR", elem.Tag)
	}

	value := elem.Value
	if elem.VR == "SQ" {
		encoded, err := encodeSequence(elem.Items)
		if err != nil {
			return fmt.Errorf("%s: %w", elem.Tag, err)
		}
		value = encoded
	} else if len(value)%2 != 0 {
		value = append(append([]byte(nil), value...), padByte(elem.VR))
	}

	writeTag(buf, elem.Tag)
	buf.WriteString(elem.VR)
	if longVRs[elem.VR] {
		buf.Write([]byte{0, 0})
		if err := binary.Write(buf, binary.LittleEndian, uint32(len(value))); err != nil {
			return err
		}
	} else {
		if len(value) > 0xFFFF {
			return fmt.Errorf("%s: value too large for short form", elem.Tag)
		}
		if err := binary.Write(buf, binary.LittleEndian, uint16(len(value))); err != nil {
			return err
		}
	}
	buf.Write(value)
	return nil
}

// encodeSequence writes items with defined lengths; no delimiters needed.
func encodeSequence(items []*Dataset) ([]byte, error) {
	var buf bytes.Buffer
	for _, item := range items {
		var content bytes.Buffer
		if err := encodeDataset(&content, item); err != nil {
			return nil, err
		}
		writeTag(&buf, tagItem)
		if err := binary.Write(&buf, binary.LittleEndian, uint32(content.Len())); err != nil {
			return nil, err
		}
		buf.Write(content.Bytes())
	}
	return buf.Bytes(), nil
}

func writeTag(buf *bytes.Buffer, tag Tag) {
	var raw [4]byte
	binary.LittleEndian.PutUint16(raw[0:], tag.Group)
	binary.LittleEndian.PutUint16(raw[2:], tag.Element)
	buf.Write(raw[:])
}

// padByte returns the even-length padding byte for a VR: UIDs pad with NUL,
// text pads with space.
func padByte(vr string) byte {
	if vr == "UI" {
		return 0x00
	}
	return ' '
}
