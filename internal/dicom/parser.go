package dicom

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// File is a parsed artifact: file meta plus the main dataset.
type File struct {
	Meta    *Dataset
	Dataset *Dataset
}

// ReadFile parses an explicit-VR little-endian file written by this
// package (or any writer using the same transfer syntax).
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return Parse(data)
}

// Parse decodes a complete file from memory.
func Parse(data []byte) (*File, error) {
	if len(data) < 132 || string(data[128:132]) != string(magic) {
		return nil, errors.New("not a DICM file")
	}

	r := &reader{data: data, pos: 132}
	meta := &Dataset{}
	for !r.done() {
		if r.peekGroup() != 0x0002 {
			break
		}
		elem, err := r.readElement()
		if err != nil {
			return nil, fmt.Errorf("file meta: %w", err)
		}
		meta.Elements = append(meta.Elements, elem)
	}

	if elem, ok := meta.Find(TagTransferSyntaxUID); ok {
		if ts := elem.String(); ts != ExplicitVRLittleEndian {
			return nil, fmt.Errorf("unsupported transfer syntax %q", ts)
		}
	}

	dataset := &Dataset{}
	for !r.done() {
		elem, err := r.readElement()
		if err != nil {
			return nil, err
		}
		dataset.Elements = append(dataset.Elements, elem)
	}
	return &File{Meta: meta, Dataset: dataset}, nil
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) done() bool { return r.pos >= len(r.data) }

func (r *reader) peekGroup() uint16 {
	if r.pos+2 > len(r.data) {
		return 0
	}
	return binary.LittleEndian.Uint16(r.data[r.pos:])
}

func (r *reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("truncated at offset %d: want %d more bytes", r.pos, n)
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) readTag() (Tag, error) {
	raw, err := r.take(4)
	if err != nil {
		return Tag{}, err
	}
	return Tag{
		Group:   binary.LittleEndian.Uint16(raw[0:]),
		Element: binary.LittleEndian.Uint16(raw[2:]),
	}, nil
}

func (r *reader) readElement() (Element, error) {
	tag, err := r.readTag()
	if err != nil {
		return Element{}, err
	}

	vrRaw, err := r.take(2)
	if err != nil {
		return Element{}, err
	}
	vr := string(vrRaw)

	var length uint32
	if longVRs[vr] {
		if _, err := r.take(2); err != nil {
			return Element{}, err
		}
		raw, err := r.take(4)
		if err != nil {
			return Element{}, err
		}
		length = binary.LittleEndian.Uint32(raw)
	} else {
		raw, err := r.take(2)
		if err != nil {
			return Element{}, err
		}
		length = uint32(binary.LittleEndian.Uint16(raw))
	}

	if vr == "SQ" {
		items, err := r.readSequence(length)
		if err != nil {
			return Element{}, fmt.Errorf("%s: %w", tag, err)
		}
		return Element{Tag: tag, VR: vr, Items: items}, nil
	}

	if length == undefinedLength {
		return Element{}, fmt.Errorf("%s: undefined length outside SQ", tag)
	}
	value, err := r.take(int(length))
	if err != nil {
		return Element{}, fmt.Errorf("%s: %w", tag, err)
	}
	return Element{Tag: tag, VR: vr, Value: append([]byte(nil), value...)}, nil
}

func (r *reader) readSequence(length uint32) ([]*Dataset, error) {
	end := len(r.data)
	if length != undefinedLength {
		end = r.pos + int(length)
		if end > len(r.data) {
			return nil, fmt.Errorf("sequence overruns file")
		}
	}

	var items []*Dataset
	for r.pos < end {
		tag, err := r.readTag()
		if err != nil {
			return nil, err
		}
		if tag == tagSeqDelim {
			if _, err := r.take(4); err != nil {
				return nil, err
			}
			break
		}
		if tag != tagItem {
			return nil, fmt.Errorf("unexpected tag %s in sequence", tag)
		}
		raw, err := r.take(4)
		if err != nil {
			return nil, err
		}
		itemLen := binary.LittleEndian.Uint32(raw)

		item, err := r.readItem(itemLen)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *reader) readItem(length uint32) (*Dataset, error) {
	end := len(r.data)
	if length != undefinedLength {
		end = r.pos + int(length)
		if end > len(r.data) {
			return nil, fmt.Errorf("item overruns file")
		}
	}

	item := &Dataset{}
	for r.pos < end {
		if length == undefinedLength {
			tag, err := r.readTag()
			if err != nil {
				return nil, err
			}
			if tag == tagItemDelim {
				if _, err := r.take(4); err != nil {
					return nil, err
				}
				break
			}
			r.pos -= 4
		}
		elem, err := r.readElement()
		if err != nil {
			return nil, err
		}
		item.Elements = append(item.Elements, elem)
	}
	return item, nil
}
