package zone

import (
	"net"
	"testing"

	"github.com/dnsauth/dnsauthd/internal/wire"
)

// Seed scenario 4: wildcard match.
func TestFindRecordsWildcard(t *testing.T) {
	s := New()
	s.AddRecord(wire.Rr{
		Labels: []string{"*", "example", "com"},
		Type:   wire.TypeA,
		Class:  wire.ClassIN,
		TTL:    86400,
		Rdata:  []byte{0, 0, 0, 0},
	})

	got, err := s.FindRecords([]string{"a", "b", "c", "d", "example", "com"}, wire.TypeA, wire.ClassIN, false)
	if err != nil {
		t.Fatalf("FindRecords error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	want := []string{"*", "example", "com"}
	for i, l := range want {
		if got[0].Labels[i] != l {
			t.Errorf("Labels[%d] = %q, want %q", i, got[0].Labels[i], l)
		}
	}
}

func TestWildcardNeverMatchesSingleLabel(t *testing.T) {
	s := New()
	s.AddRecord(wire.Rr{Labels: []string{"*", "com"}, Type: wire.TypeA, Class: wire.ClassIN})

	got, _ := s.FindRecords([]string{"com"}, wire.TypeA, wire.ClassIN, false)
	if len(got) != 0 {
		t.Fatalf("wildcard matched a single-label query: %+v", got)
	}
}

func TestCNAMERewriteRule(t *testing.T) {
	s := New()
	s.AddRecord(wire.Rr{Labels: []string{"alias", "com"}, Type: wire.TypeCNAME, Class: wire.ClassIN, Rdata: wire.EncodeName([]string{"example", "com"})})

	got, _ := s.FindRecords([]string{"alias", "com"}, wire.TypeA, wire.ClassIN, false)
	if len(got) != 1 || got[0].Type != wire.TypeCNAME {
		t.Fatalf("A query did not match stored CNAME: %+v", got)
	}
}

func TestRecursiveQueryReturnsNothing(t *testing.T) {
	s := New()
	s.AddRecord(wire.Rr{Labels: []string{"example", "com"}, Type: wire.TypeA, Class: wire.ClassIN})

	got, _ := s.FindRecords([]string{"example", "com"}, wire.TypeA, wire.ClassIN, true)
	if got != nil {
		t.Fatalf("recursive find_records should return empty, got %+v", got)
	}
	if s.SupportsRecursion() {
		t.Fatal("zone Store must not support recursion")
	}
}

// Seed scenario 5: authority referral with deduplication.
func TestFindAuthoritiesDedup(t *testing.T) {
	s := New()
	a1 := DomainAuthority{
		Domain: []string{"mil"},
		Name:   []string{"sri-nic", "arpa"},
		Class:  wire.ClassIN,
		IPs:    []net.IP{net.IPv4(0x1A, 0x00, 0x00, 0x49), net.IPv4(0x0A, 0x00, 0x00, 0x33)},
		TTL:    3600,
	}
	a2 := DomainAuthority{
		Domain: []string{"mil"},
		Name:   []string{"a", "isi", "edu"},
		Class:  wire.ClassIN,
		IPs:    []net.IP{net.IPv4(0x1A, 0x03, 0x00, 0x67)},
		TTL:    3600,
	}
	s.AddAuthority(a1)
	s.AddAuthority(a2)
	s.AddAuthority(a1) // duplicate, must be deduplicated

	got := s.FindAuthorities([]string{"brl", "mil"}, wire.ClassIN)
	if len(got) != 2 {
		t.Fatalf("got %d authorities, want 2 (deduplicated)", len(got))
	}
}

func TestFindAuthoritiesRequiresSuffixMatch(t *testing.T) {
	s := New()
	s.AddAuthority(DomainAuthority{Domain: []string{"mil"}, Name: []string{"a", "isi", "edu"}, Class: wire.ClassIN})

	got := s.FindAuthorities([]string{"example", "com"}, wire.ClassIN)
	if len(got) != 0 {
		t.Fatalf("got authorities for unrelated domain: %+v", got)
	}
}
