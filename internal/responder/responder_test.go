package responder

import (
	"net"
	"testing"
	"time"

	"github.com/dnsauth/dnsauthd/internal/resolver"
	"github.com/dnsauth/dnsauthd/internal/wire"
	"github.com/dnsauth/dnsauthd/internal/zone"
)

func query(labels []string, qtype wire.RrType, rd bool) wire.Message {
	return wire.Message{
		Header:    wire.Header{ID: 7, Opcode: wire.OpcodeQuery, RD: rd},
		Questions: []wire.Question{{Labels: labels, Type: qtype, Class: wire.ClassIN}},
	}
}

// Seed scenario 4, at the responder level: a wildcard match answers
// authoritatively.
func TestRespondWildcardMatch(t *testing.T) {
	s := zone.New()
	s.AddRecord(wire.Rr{Labels: []string{"*", "example", "com"}, Type: wire.TypeA, Class: wire.ClassIN, TTL: 86400, Rdata: []byte{0, 0, 0, 0}})

	resp := New(s).Respond(query([]string{"a", "b", "c", "d", "example", "com"}, wire.TypeA, false))
	if resp.Header.ANCount != 1 || resp.Header.Rcode != wire.RcodeNoError {
		t.Fatalf("got %+v", resp.Header)
	}
	want := []string{"*", "example", "com"}
	for i, l := range want {
		if resp.Answers[0].Labels[i] != l {
			t.Errorf("Labels[%d] = %q, want %q", i, resp.Answers[0].Labels[i], l)
		}
	}
}

// Seed scenario 5: a referral clears aa and carries NS + glue A records.
func TestRespondAuthorityReferral(t *testing.T) {
	s := zone.New()
	s.AddAuthority(zone.DomainAuthority{
		Domain: []string{"mil"}, Name: []string{"sri-nic", "arpa"}, Class: wire.ClassIN, TTL: 3600,
		IPs: []net.IP{net.IPv4(0x1A, 0x00, 0x00, 0x49), net.IPv4(0x0A, 0x00, 0x00, 0x33)},
	})
	s.AddAuthority(zone.DomainAuthority{
		Domain: []string{"mil"}, Name: []string{"a", "isi", "edu"}, Class: wire.ClassIN, TTL: 3600,
		IPs: []net.IP{net.IPv4(0x1A, 0x03, 0x00, 0x67)},
	})

	resp := New(s).Respond(query([]string{"brl", "mil"}, wire.TypeA, false))
	if resp.Header.AA {
		t.Fatal("aa must be cleared on referral")
	}
	if resp.Header.ANCount != 0 || resp.Header.NSCount != 2 || resp.Header.ARCount != 3 {
		t.Fatalf("got %+v", resp.Header)
	}
	if resp.Header.Rcode != wire.RcodeNoError {
		t.Fatalf("rcode = %v, want NOERROR", resp.Header.Rcode)
	}
}

// Seed scenario 7: recursion refused locally.
func TestRespondRecursionRefusedLocally(t *testing.T) {
	s := zone.New()
	resp := New(s).Respond(query([]string{"example", "com"}, wire.TypeA, true))
	if resp.Header.RA {
		t.Fatal("ra must be 0 for a zone-only lookup")
	}
	if resp.Header.Rcode != wire.RcodeRefused {
		t.Fatalf("rcode = %v, want REFUSED", resp.Header.Rcode)
	}
}

func TestRespondNXDomain(t *testing.T) {
	s := zone.New()
	s.AddRecord(wire.Rr{Labels: []string{"example", "com"}, Type: wire.TypeA, Class: wire.ClassIN})

	resp := New(s).Respond(query([]string{"nowhere", "com"}, wire.TypeA, false))
	if resp.Header.Rcode != wire.RcodeNXDomain {
		t.Fatalf("rcode = %v, want NXDOMAIN", resp.Header.Rcode)
	}
}

func TestRespondMXGlueByOwnerName(t *testing.T) {
	s := zone.New()
	s.AddRecord(wire.Rr{Labels: []string{"example", "com"}, Type: wire.TypeMX, Class: wire.ClassIN, Rdata: []byte{0, 10}})
	s.AddRecord(wire.Rr{Labels: []string{"example", "com"}, Type: wire.TypeA, Class: wire.ClassIN, Rdata: []byte{9, 9, 9, 9}})

	resp := New(s).Respond(query([]string{"example", "com"}, wire.TypeMX, false))
	if len(resp.Additional) != 1 || resp.Additional[0].Type != wire.TypeA {
		t.Fatalf("expected owner-name glue in additional, got %+v", resp.Additional)
	}
}

// Seed scenario 8, at the responder level: a resolver that times out on
// every attempt surfaces as SERVFAIL.
func TestRespondUpstreamTimeoutSurfacesServFail(t *testing.T) {
	dead, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	addr := dead.LocalAddr().(*net.UDPAddr)
	dead.Close()

	res := resolver.New([]resolver.DnsServer{{IP: net.IPv4(127, 0, 0, 1), Port: uint16(addr.Port)}}, 30*time.Millisecond)

	resp := New(res).Respond(query([]string{"example", "com"}, wire.TypeA, true))
	if resp.Header.Rcode != wire.RcodeServFail {
		t.Fatalf("rcode = %v, want SERVFAIL", resp.Header.Rcode)
	}
}

func TestRespondNoQuestionsIsReflectedAsIs(t *testing.T) {
	s := zone.New()
	q := wire.Message{Header: wire.Header{ID: 1}}
	resp := New(s).Respond(q)
	if resp.Header.QDCount != 0 || resp.Header.ANCount != 0 {
		t.Fatalf("got %+v", resp.Header)
	}
	if !resp.Header.AA || !resp.Header.QR {
		t.Fatalf("qr/aa not set: %+v", resp.Header)
	}
}
