package wire

import "encoding/binary"

// Buffer is a read cursor over a DNS message. Linear reads (ReadByte,
// ReadUint16, ReadUint32, ReadBytes) are bounded by limit; name decoding
// bypasses limit to follow compression pointers anywhere in the message,
// per section 4.1.
type Buffer struct {
	data  []byte
	off   int
	limit int
}

// NewBuffer wraps data for decoding, with the read limit set to the full
// view length.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data, limit: len(data)}
}

// Pos returns the current cursor offset.
func (b *Buffer) Pos() int { return b.off }

// Seek repositions the cursor.
func (b *Buffer) Seek(i int) { b.off = i }

// Len returns the length of the underlying view.
func (b *Buffer) Len() int { return len(b.data) }

func (b *Buffer) ReadByte() (byte, error) {
	if b.off+1 > b.limit {
		return 0, newErr(ReadError, b.off)
	}
	v := b.data[b.off]
	b.off++
	return v, nil
}

func (b *Buffer) ReadUint16() (uint16, error) {
	if b.off+2 > b.limit {
		return 0, newErr(ReadError, b.off)
	}
	v := binary.BigEndian.Uint16(b.data[b.off : b.off+2])
	b.off += 2
	return v, nil
}

func (b *Buffer) ReadUint32() (uint32, error) {
	if b.off+4 > b.limit {
		return 0, newErr(ReadError, b.off)
	}
	v := binary.BigEndian.Uint32(b.data[b.off : b.off+4])
	b.off += 4
	return v, nil
}

func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	if n < 0 || b.off+n > b.limit {
		return nil, newErr(ReadError, b.off)
	}
	v := make([]byte, n)
	copy(v, b.data[b.off:b.off+n])
	b.off += n
	return v, nil
}
