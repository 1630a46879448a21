package zoneconfig

import (
	"testing"

	"github.com/dnsauth/dnsauthd/internal/wire"
	"github.com/dnsauth/dnsauthd/internal/zone"
)

func TestApplyBuildsRecordsAndAuthorities(t *testing.T) {
	z := Zone{
		Records: []Record{
			{Owner: "example.com", Type: "A", TTL: 300, Value: "93.184.216.34"},
			{Owner: "example.com", Type: "MX", TTL: 300, Preference: 10},
			{Owner: "www.example.com", Type: "CNAME", TTL: 300, Value: "example.com"},
		},
		Authorities: []Authority{
			{Domain: "mil", Name: "a.isi.edu", TTL: 3600, IPs: []string{"192.0.2.1"}},
		},
	}

	store := zone.New()
	if err := Apply(store, z); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got, err := store.FindRecords([]string{"example", "com"}, wire.TypeA, wire.ClassIN, false)
	if err != nil {
		t.Fatalf("FindRecords: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("A records = %d, want 1", len(got))
	}

	cname, err := store.FindRecords([]string{"www", "example", "com"}, wire.TypeA, wire.ClassIN, false)
	if err != nil {
		t.Fatalf("FindRecords: %v", err)
	}
	if len(cname) == 0 {
		t.Fatal("expected CNAME rewrite to produce at least one record")
	}

	authorities := store.FindAuthorities([]string{"foo", "mil"}, wire.ClassIN)
	if len(authorities) != 1 {
		t.Fatalf("authorities = %d, want 1", len(authorities))
	}
}

func TestApplyRejectsUnsupportedType(t *testing.T) {
	z := Zone{Records: []Record{{Owner: "example.com", Type: "SRV"}}}
	if err := Apply(zone.New(), z); err == nil {
		t.Fatal("expected an error for an unsupported record type")
	}
}

func TestApplyRejectsInvalidIP(t *testing.T) {
	z := Zone{Records: []Record{{Owner: "example.com", Type: "A", Value: "not-an-ip"}}}
	if err := Apply(zone.New(), z); err == nil {
		t.Fatal("expected an error for an invalid IPv4 address")
	}
}
