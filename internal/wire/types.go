// Package wire implements the DNS message wire format: header, question and
// resource-record encoding/decoding, name compression on decode, and the
// codec's typed error taxonomy.
package wire

// RrType is the 16-bit resource record type field (RFC 1035 section 3.2.2).
type RrType uint16

const (
	TypeA     RrType = 1
	TypeNS    RrType = 2
	TypeCNAME RrType = 5
	TypeSOA   RrType = 6
	TypePTR   RrType = 12
	TypeHINFO RrType = 13
	TypeMX    RrType = 15
	TypeTXT   RrType = 16
	TypeAAAA  RrType = 28
	TypeAXFR  RrType = 252
	TypeMAILB RrType = 253
	TypeMAILA RrType = 254
	TypeALL   RrType = 255 // valid only in queries
)

func (t RrType) String() string {
	switch t {
	case TypeA:
		return "A"
	case TypeNS:
		return "NS"
	case TypeCNAME:
		return "CNAME"
	case TypeSOA:
		return "SOA"
	case TypePTR:
		return "PTR"
	case TypeHINFO:
		return "HINFO"
	case TypeMX:
		return "MX"
	case TypeTXT:
		return "TXT"
	case TypeAAAA:
		return "AAAA"
	case TypeAXFR:
		return "AXFR"
	case TypeMAILB:
		return "MAILB"
	case TypeMAILA:
		return "MAILA"
	case TypeALL:
		return "ALL"
	}
	return "UNKNOWN"
}

// RrClass is the 16-bit resource record class field.
type RrClass uint16

const (
	ClassIN RrClass = 1
	ClassCS RrClass = 2
	ClassCH RrClass = 3
	ClassHS RrClass = 4
)

func (c RrClass) String() string {
	switch c {
	case ClassIN:
		return "IN"
	case ClassCS:
		return "CS"
	case ClassCH:
		return "CH"
	case ClassHS:
		return "HS"
	}
	return "UNKNOWN"
}

// Opcode is the 4-bit header opcode.
type Opcode uint8

const (
	OpcodeQuery  Opcode = 0
	OpcodeIQuery Opcode = 1
	OpcodeStatus Opcode = 2
)

// Rcode is the 4-bit header response code.
type Rcode uint8

const (
	RcodeNoError  Rcode = 0
	RcodeFormErr  Rcode = 1
	RcodeServFail Rcode = 2
	RcodeNXDomain Rcode = 3
	RcodeNotImp   Rcode = 4
	RcodeRefused  Rcode = 5
)

func (r Rcode) String() string {
	switch r {
	case RcodeNoError:
		return "NOERROR"
	case RcodeFormErr:
		return "FORMERR"
	case RcodeServFail:
		return "SERVFAIL"
	case RcodeNXDomain:
		return "NXDOMAIN"
	case RcodeNotImp:
		return "NOTIMP"
	case RcodeRefused:
		return "REFUSED"
	}
	return "UNKNOWN"
}

// Header is the fixed 12-octet DNS message header (RFC 1035 section 4.1.1).
type Header struct {
	ID      uint16
	QR      bool
	Opcode  Opcode
	AA      bool
	TC      bool
	RD      bool
	RA      bool
	Z       uint8 // 3 bits, encoded as given; the responder zeroes it
	Rcode   Rcode
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// Question is one entry of a message's question section.
type Question struct {
	Labels []string
	Type   RrType
	Class  RrClass
}

// Rr is a resource record. Rdata is the opaque, type-dependent payload;
// the codec copies it uninterpreted (see DecodeRr).
type Rr struct {
	Labels []string
	Type   RrType
	Class  RrClass
	TTL    uint32
	Rdata  []byte
}

// Message is a full DNS message: header plus the four ordered sections.
type Message struct {
	Header      Header
	Questions   []Question
	Answers     []Rr
	Authorities []Rr
	Additional  []Rr
}
