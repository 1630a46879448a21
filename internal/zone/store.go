// Package zone implements the authoritative zone store (spec section 4.2):
// exact-match and wildcard-match lookup over a static set of resource
// records, plus delegation (authority) lookup for referrals.
package zone

import (
	"fmt"
	"net"
	"strings"

	"github.com/dnsauth/dnsauthd/internal/wire"
)

// DomainAuthority is a delegation: the NS/glue pairing the responder needs
// to build a referral when a zone has no records for a name (spec
// section 3).
type DomainAuthority struct {
	Domain []string // owner labels, e.g. ["mil"]
	Name   []string // authoritative NS name, e.g. ["a","isi","edu"]
	Class  wire.RrClass
	IPs    []net.IP // glue for Name
	TTL    uint32
}

// Store holds one zone's authoritative records and delegations. Once
// built, a Store is read-only and safe for concurrent use without locking
// (spec section 5): all mutation happens during start-up via AddRecord/
// AddAuthority before the responder starts serving queries.
type Store struct {
	exact       map[string][]wire.Rr
	wildcard    map[string][]wire.Rr
	authorities []DomainAuthority
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		exact:    make(map[string][]wire.Rr),
		wildcard: make(map[string][]wire.Rr),
	}
}

func canonicalKey(labels []string) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = strings.ToLower(l)
	}
	return strings.Join(parts, ".")
}

// AddRecord appends r to the exact-match collection for its owner name,
// and additionally to the wildcard collection when r's leftmost label is
// "*" and it has at least two labels.
func (s *Store) AddRecord(r wire.Rr) {
	k := canonicalKey(r.Labels)
	s.exact[k] = append(s.exact[k], r)
	if len(r.Labels) >= 2 && r.Labels[0] == "*" {
		s.wildcard[k] = append(s.wildcard[k], r)
	}
}

// AddAuthority appends a to the authority collection.
func (s *Store) AddAuthority(a DomainAuthority) {
	s.authorities = append(s.authorities, a)
}

func rrMatches(c wire.Rr, qtype wire.RrType, qclass wire.RrClass) bool {
	if c.Class != qclass {
		return false
	}
	if c.Type == qtype {
		return true
	}
	if qtype == wire.TypeALL {
		return true
	}
	if qtype == wire.TypeA && c.Type == wire.TypeCNAME {
		return true
	}
	return false
}

// FindRecords implements spec section 4.2's find_records: exact match
// plus, for queries of two or more labels, wildcard matching at every
// suffix level. A Store never supports recursion, so a recursive query
// always returns no records. The error return always nil; it exists so
// Store satisfies the same Lookup interface as a recursive resolver,
// which can fail.
func (s *Store) FindRecords(labels []string, qtype wire.RrType, qclass wire.RrClass, recursive bool) ([]wire.Rr, error) {
	if recursive {
		return nil, nil
	}

	var out []wire.Rr
	for _, c := range s.exact[canonicalKey(labels)] {
		if rrMatches(c, qtype, qclass) {
			out = append(out, c)
		}
	}

	if len(labels) >= 2 {
		for i := 1; i < len(labels); i++ {
			wkey := "*." + canonicalKey(labels[i:])
			for _, c := range s.wildcard[wkey] {
				if rrMatches(c, qtype, qclass) {
					out = append(out, c)
				}
			}
		}
	}

	return out, nil
}

func isSuffix(domain, labels []string) bool {
	if len(domain) > len(labels) {
		return false
	}
	offset := len(labels) - len(domain)
	for i := range domain {
		if !strings.EqualFold(domain[i], labels[offset+i]) {
			return false
		}
	}
	return true
}

func authorityKey(a DomainAuthority) string {
	var b strings.Builder
	b.WriteString(canonicalKey(a.Domain))
	b.WriteByte('|')
	b.WriteString(canonicalKey(a.Name))
	fmt.Fprintf(&b, "|%d|%d", a.Class, a.TTL)
	for _, ip := range a.IPs {
		b.WriteByte('|')
		b.WriteString(ip.String())
	}
	return b.String()
}

// FindAuthorities returns the deduplicated set of authorities whose domain
// is a (label-wise, right-to-left) suffix of labels and whose class
// matches rclass.
func (s *Store) FindAuthorities(labels []string, rclass wire.RrClass) []DomainAuthority {
	var out []DomainAuthority
	seen := make(map[string]bool)
	for _, a := range s.authorities {
		if a.Class != rclass {
			continue
		}
		if !isSuffix(a.Domain, labels) {
			continue
		}
		k := authorityKey(a)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, a)
	}
	return out
}

// SupportsRecursion reports whether this lookup can answer recursive
// queries. A Store never can.
func (s *Store) SupportsRecursion() bool { return false }
