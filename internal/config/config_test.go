package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sample = `
port: 5353
remote_port: 53
rate_limit_qps: 50
upstreams:
  - ip: 8.8.8.8
    port: 53
    recursive: true
zone:
  records:
    - owner: example.com
      type: A
      ttl: 300
      value: 93.184.216.34
`

func TestLoadParsesSampleConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dnsauthd.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("write sample config: %v", err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Port != 5353 {
		t.Errorf("Port = %d, want 5353", f.Port)
	}
	if len(f.Upstreams) != 1 || f.Upstreams[0].IP != "8.8.8.8" {
		t.Errorf("Upstreams = %+v", f.Upstreams)
	}
	if len(f.Zone.Records) != 1 {
		t.Errorf("Zone.Records = %d, want 1", len(f.Zone.Records))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/dnsauthd.yaml"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
