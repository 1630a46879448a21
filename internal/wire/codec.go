package wire

import "encoding/binary"

// DecodeHeader reads the fixed 12-octet header.
func DecodeHeader(buf *Buffer) (Header, error) {
	var h Header

	id, err := buf.ReadUint16()
	if err != nil {
		return h, err
	}
	h.ID = id

	flags, err := buf.ReadUint16()
	if err != nil {
		return h, err
	}
	h.QR = flags&0x8000 != 0
	h.Opcode = Opcode((flags >> 11) & 0x0F)
	h.AA = flags&0x0400 != 0
	h.TC = flags&0x0200 != 0
	h.RD = flags&0x0100 != 0
	h.RA = flags&0x0080 != 0
	h.Z = uint8((flags >> 4) & 0x07)
	h.Rcode = Rcode(flags & 0x0F)

	if h.QDCount, err = buf.ReadUint16(); err != nil {
		return h, err
	}
	if h.ANCount, err = buf.ReadUint16(); err != nil {
		return h, err
	}
	if h.NSCount, err = buf.ReadUint16(); err != nil {
		return h, err
	}
	if h.ARCount, err = buf.ReadUint16(); err != nil {
		return h, err
	}
	return h, nil
}

// EncodeHeader writes the fixed 12-octet header. z round-trips as given;
// it is the responder's job (section 4.4) to force z=0 when composing a
// response, not the codec's.
func EncodeHeader(h Header) []byte {
	out := make([]byte, 12)
	binary.BigEndian.PutUint16(out[0:2], h.ID)

	var flags uint16
	if h.QR {
		flags |= 0x8000
	}
	flags |= uint16(h.Opcode&0x0F) << 11
	if h.AA {
		flags |= 0x0400
	}
	if h.TC {
		flags |= 0x0200
	}
	if h.RD {
		flags |= 0x0100
	}
	if h.RA {
		flags |= 0x0080
	}
	flags |= uint16(h.Z&0x07) << 4
	flags |= uint16(h.Rcode & 0x0F)
	binary.BigEndian.PutUint16(out[2:4], flags)

	binary.BigEndian.PutUint16(out[4:6], h.QDCount)
	binary.BigEndian.PutUint16(out[6:8], h.ANCount)
	binary.BigEndian.PutUint16(out[8:10], h.NSCount)
	binary.BigEndian.PutUint16(out[10:12], h.ARCount)
	return out
}

// DecodeQuestion reads one question-section entry.
func DecodeQuestion(buf *Buffer) (Question, error) {
	var q Question
	labels, err := DecodeName(buf)
	if err != nil {
		return q, err
	}
	q.Labels = labels

	t, err := buf.ReadUint16()
	if err != nil {
		return q, err
	}
	q.Type = RrType(t)

	c, err := buf.ReadUint16()
	if err != nil {
		return q, err
	}
	q.Class = RrClass(c)
	return q, nil
}

// EncodeQuestion writes one question-section entry, name uncompressed.
func EncodeQuestion(q Question) []byte {
	out := EncodeName(q.Labels)
	tc := make([]byte, 4)
	binary.BigEndian.PutUint16(tc[0:2], uint16(q.Type))
	binary.BigEndian.PutUint16(tc[2:4], uint16(q.Class))
	return append(out, tc...)
}

// DecodeRr reads one resource record. Rdata is copied uninterpreted: this
// codec never decompresses names embedded inside rdata (NS/CNAME/PTR/MX
// targets) — callers that need those names re-parse the rdata bytes with a
// fresh Buffer positioned over the same underlying message so embedded
// compression pointers still resolve against the full message.
func DecodeRr(buf *Buffer) (Rr, error) {
	var r Rr
	labels, err := DecodeName(buf)
	if err != nil {
		return r, err
	}
	r.Labels = labels

	t, err := buf.ReadUint16()
	if err != nil {
		return r, err
	}
	r.Type = RrType(t)

	c, err := buf.ReadUint16()
	if err != nil {
		return r, err
	}
	r.Class = RrClass(c)

	ttl, err := buf.ReadUint32()
	if err != nil {
		return r, err
	}
	r.TTL = ttl

	rdlength, err := buf.ReadUint16()
	if err != nil {
		return r, err
	}
	rdata, err := buf.ReadBytes(int(rdlength))
	if err != nil {
		return r, err
	}
	r.Rdata = rdata
	return r, nil
}

// EncodeRr writes one resource record, name uncompressed.
func EncodeRr(r Rr) []byte {
	out := EncodeName(r.Labels)

	rest := make([]byte, 8+2+len(r.Rdata))
	binary.BigEndian.PutUint16(rest[0:2], uint16(r.Type))
	binary.BigEndian.PutUint16(rest[2:4], uint16(r.Class))
	binary.BigEndian.PutUint32(rest[4:8], r.TTL)
	binary.BigEndian.PutUint16(rest[8:10], uint16(len(r.Rdata)))
	copy(rest[10:], r.Rdata)

	return append(out, rest...)
}

// DecodeMessage decodes a complete DNS message from data.
func DecodeMessage(data []byte) (Message, error) {
	buf := NewBuffer(data)
	var m Message

	h, err := DecodeHeader(buf)
	if err != nil {
		return m, err
	}
	m.Header = h

	for i := 0; i < int(h.QDCount); i++ {
		q, err := DecodeQuestion(buf)
		if err != nil {
			return m, err
		}
		m.Questions = append(m.Questions, q)
	}
	for i := 0; i < int(h.ANCount); i++ {
		rr, err := DecodeRr(buf)
		if err != nil {
			return m, err
		}
		m.Answers = append(m.Answers, rr)
	}
	for i := 0; i < int(h.NSCount); i++ {
		rr, err := DecodeRr(buf)
		if err != nil {
			return m, err
		}
		m.Authorities = append(m.Authorities, rr)
	}
	for i := 0; i < int(h.ARCount); i++ {
		rr, err := DecodeRr(buf)
		if err != nil {
			return m, err
		}
		m.Additional = append(m.Additional, rr)
	}
	return m, nil
}

// EncodeMessage encodes a complete DNS message. Section counts in the
// header are forced to match the section sizes regardless of what the
// caller set on m.Header.
func EncodeMessage(m Message) []byte {
	h := m.Header
	h.QDCount = uint16(len(m.Questions))
	h.ANCount = uint16(len(m.Answers))
	h.NSCount = uint16(len(m.Authorities))
	h.ARCount = uint16(len(m.Additional))

	out := EncodeHeader(h)
	for _, q := range m.Questions {
		out = append(out, EncodeQuestion(q)...)
	}
	for _, rr := range m.Answers {
		out = append(out, EncodeRr(rr)...)
	}
	for _, rr := range m.Authorities {
		out = append(out, EncodeRr(rr)...)
	}
	for _, rr := range m.Additional {
		out = append(out, EncodeRr(rr)...)
	}
	return out
}
