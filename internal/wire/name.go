package wire

import (
	"encoding/binary"
	"strings"
)

const (
	maxLabelLength = 63
	maxNameLength  = 255
	maxJumps       = 100
)

// DecodeName reads a (possibly compressed) domain name starting at buf's
// current position and advances buf past the name as specified in section
// 4.1: the cursor lands just past the first terminating zero-length label
// or pointer encountered in the original scan, never past a jumped-to
// region. Compression-pointer chasing is bounded by a jump counter, not by
// per-offset loop detection — a pointer that cycles back on itself
// exhausts the counter rather than being special-cased, matching the
// behavior the jump-limit invariant is meant to produce.
func DecodeName(buf *Buffer) ([]string, error) {
	var labels []string
	offset := buf.off
	jumped := false
	jumps := 0
	wireLen := 0

	for {
		if offset >= len(buf.data) {
			return nil, newErr(Eof, offset)
		}
		lengthByte := buf.data[offset]
		top := lengthByte & 0xC0

		switch top {
		case 0xC0: // pointer
			if offset+1 >= len(buf.data) {
				return nil, newErr(Eof, offset)
			}
			ptr := int(binary.BigEndian.Uint16(buf.data[offset:offset+2]) & 0x3FFF)
			jumps++
			if jumps > maxJumps {
				return nil, newErr(JumpLimit, offset)
			}
			if !jumped {
				buf.off = offset + 2
				jumped = true
			}
			offset = ptr

		case 0x40, 0x80: // reserved label kinds
			return nil, newErr(ReadError, offset)

		default: // 0x00: normal label
			length := int(lengthByte)
			if length == 0 {
				if !jumped {
					buf.off = offset + 1
				}
				return labels, nil
			}
			if length > maxLabelLength {
				return nil, newErr(LabelTooLong, offset)
			}
			offset++
			if offset+length > len(buf.data) {
				return nil, newErr(Eof, offset)
			}
			label := string(buf.data[offset : offset+length])
			offset += length

			if err := validateLabel(label); err != nil {
				if e, ok := err.(*MessageError); ok {
					e.Offset = offset
				}
				return nil, err
			}

			wireLen += length + 1
			if wireLen+1 > maxNameLength {
				return nil, newErr(NameTooLong, offset)
			}

			labels = append(labels, strings.ToLower(label))
		}
	}
}

func isAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// validateLabel enforces: first/last byte alphanumeric, all bytes
// alphanumeric or '-'. The sentinel "*" is rejected here — wildcard owners
// are only ever added through the zone store's programmatic API, never
// decoded off the wire.
func validateLabel(label string) error {
	if len(label) == 0 {
		return newErr(InvalidLabelChar, 0)
	}
	if !isAlnum(label[0]) || !isAlnum(label[len(label)-1]) {
		return newErr(InvalidLabelChar, 0)
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		if !isAlnum(c) && c != '-' {
			return newErr(InvalidLabelChar, 0)
		}
	}
	return nil
}

// EncodeName writes labels as a sequence of length-prefixed labels
// terminated by a zero-length label. Output is always uncompressed
// (section 4.1's Emit rule).
func EncodeName(labels []string) []byte {
	var out []byte
	for _, label := range labels {
		out = append(out, byte(len(label)))
		out = append(out, label...)
	}
	out = append(out, 0)
	return out
}
