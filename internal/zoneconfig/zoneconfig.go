// Package zoneconfig decodes a YAML zone description into the calls that
// build an internal/zone.Store. It is a thin, out-of-core shell: callers
// are free to build a Store directly instead (spec.md §1 treats "static
// zone initialization from caller code" as an external collaborator).
package zoneconfig

import (
	"fmt"
	"net"
	"strings"

	"github.com/dnsauth/dnsauthd/internal/wire"
	"github.com/dnsauth/dnsauthd/internal/zone"
)

// Zone is the YAML shape of a zone file: a flat list of records plus a
// flat list of delegations.
type Zone struct {
	Records     []Record    `yaml:"records"`
	Authorities []Authority `yaml:"authorities"`
}

// Record is one YAML resource record entry. Value's meaning depends on
// Type: an IP dotted-quad/colon-hex for A/AAAA, a dotted domain name for
// NS/CNAME/PTR and the exchange for MX, free text for TXT. Preference is
// used only for MX.
type Record struct {
	Owner      string `yaml:"owner"`
	Type       string `yaml:"type"`
	Class      string `yaml:"class"`
	TTL        uint32 `yaml:"ttl"`
	Value      string `yaml:"value"`
	Preference uint16 `yaml:"preference"`
}

// Authority is one YAML delegation entry.
type Authority struct {
	Domain string   `yaml:"domain"`
	Name   string   `yaml:"name"`
	Class  string   `yaml:"class"`
	TTL    uint32   `yaml:"ttl"`
	IPs    []string `yaml:"ips"`
}

// Apply decodes z into AddRecord/AddAuthority calls against store.
func Apply(store *zone.Store, z Zone) error {
	for _, r := range z.Records {
		rr, err := toRr(r)
		if err != nil {
			return fmt.Errorf("record %q: %w", r.Owner, err)
		}
		store.AddRecord(rr)
	}
	for _, a := range z.Authorities {
		da, err := toAuthority(a)
		if err != nil {
			return fmt.Errorf("authority %q: %w", a.Domain, err)
		}
		store.AddAuthority(da)
	}
	return nil
}

func toRr(r Record) (wire.Rr, error) {
	class, err := parseClass(r.Class)
	if err != nil {
		return wire.Rr{}, err
	}

	rtype, rdata, err := rdata(r)
	if err != nil {
		return wire.Rr{}, err
	}

	return wire.Rr{
		Labels: splitOwner(r.Owner),
		Type:   rtype,
		Class:  class,
		TTL:    r.TTL,
		Rdata:  rdata,
	}, nil
}

func rdata(r Record) (wire.RrType, []byte, error) {
	switch strings.ToUpper(r.Type) {
	case "A":
		ip := net.ParseIP(r.Value).To4()
		if ip == nil {
			return 0, nil, fmt.Errorf("%q is not a valid IPv4 address", r.Value)
		}
		return wire.TypeA, []byte(ip), nil
	case "AAAA":
		ip := net.ParseIP(r.Value).To16()
		if ip == nil {
			return 0, nil, fmt.Errorf("%q is not a valid IPv6 address", r.Value)
		}
		return wire.TypeAAAA, []byte(ip), nil
	case "NS":
		return wire.TypeNS, wire.EncodeName(splitOwner(r.Value)), nil
	case "CNAME":
		return wire.TypeCNAME, wire.EncodeName(splitOwner(r.Value)), nil
	case "PTR":
		return wire.TypePTR, wire.EncodeName(splitOwner(r.Value)), nil
	case "MX":
		out := make([]byte, 2)
		out[0] = byte(r.Preference >> 8)
		out[1] = byte(r.Preference)
		out = append(out, wire.EncodeName(splitOwner(r.Value))...)
		return wire.TypeMX, out, nil
	case "TXT":
		if len(r.Value) > 255 {
			return 0, nil, fmt.Errorf("TXT value longer than 255 octets")
		}
		return wire.TypeTXT, append([]byte{byte(len(r.Value))}, []byte(r.Value)...), nil
	default:
		return 0, nil, fmt.Errorf("unsupported record type %q", r.Type)
	}
}

func toAuthority(a Authority) (zone.DomainAuthority, error) {
	class, err := parseClass(a.Class)
	if err != nil {
		return zone.DomainAuthority{}, err
	}
	ips := make([]net.IP, 0, len(a.IPs))
	for _, s := range a.IPs {
		ip := net.ParseIP(s)
		if ip == nil {
			return zone.DomainAuthority{}, fmt.Errorf("%q is not a valid IP address", s)
		}
		ips = append(ips, ip)
	}
	return zone.DomainAuthority{
		Domain: splitOwner(a.Domain),
		Name:   splitOwner(a.Name),
		Class:  class,
		IPs:    ips,
		TTL:    a.TTL,
	}, nil
}

func parseClass(s string) (wire.RrClass, error) {
	if s == "" {
		return wire.ClassIN, nil
	}
	switch strings.ToUpper(s) {
	case "IN":
		return wire.ClassIN, nil
	case "CS":
		return wire.ClassCS, nil
	case "CH":
		return wire.ClassCH, nil
	case "HS":
		return wire.ClassHS, nil
	}
	return 0, fmt.Errorf("unsupported class %q", s)
}

func splitOwner(owner string) []string {
	owner = strings.TrimSuffix(owner, ".")
	if owner == "" {
		return nil
	}
	return strings.Split(owner, ".")
}
