package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dnsauth/dnsauthd/internal/responder"
	"github.com/dnsauth/dnsauthd/internal/wire"
	"github.com/dnsauth/dnsauthd/internal/worker"
	"github.com/dnsauth/dnsauthd/internal/zone"
)

func startTestServer(t *testing.T, store *zone.Store) (*Server, func()) {
	t.Helper()
	srv, err := New(0, responder.New(store), worker.Config{Workers: 2, QueueSize: 8})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Start(ctx)
	cleanup := func() {
		cancel()
		srv.Close()
	}
	return srv, cleanup
}

func roundTrip(t *testing.T, port int, query wire.Message) wire.Message {
	t.Helper()
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write(wire.EncodeMessage(query)); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	resp, err := wire.DecodeMessage(buf[:n])
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestServerAnswersARecord(t *testing.T) {
	store := zone.New()
	store.AddRecord(wire.Rr{Labels: []string{"example", "com"}, Type: wire.TypeA, Class: wire.ClassIN, TTL: 300, Rdata: net.IPv4(93, 184, 216, 34).To4()})

	srv, cleanup := startTestServer(t, store)
	defer cleanup()

	query := wire.Message{
		Header:    wire.Header{ID: 42, Opcode: wire.OpcodeQuery},
		Questions: []wire.Question{{Labels: []string{"example", "com"}, Type: wire.TypeA, Class: wire.ClassIN}},
	}

	resp := roundTrip(t, srv.Port(), query)
	if resp.Header.ID != 42 {
		t.Errorf("id = %d, want 42", resp.Header.ID)
	}
	if !resp.Header.QR || !resp.Header.AA {
		t.Errorf("qr/aa not set: %+v", resp.Header)
	}
	if len(resp.Answers) != 1 {
		t.Fatalf("answers = %d, want 1", len(resp.Answers))
	}
}

func TestServerMalformedQueryGetsFormErr(t *testing.T) {
	store := zone.New()
	srv, cleanup := startTestServer(t, store)
	defer cleanup()

	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: srv.Port()})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Three bytes: not even a full header.
	if _, err := conn.Write([]byte{0, 1, 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	resp, err := wire.DecodeMessage(buf[:n])
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Header.Rcode != wire.RcodeFormErr {
		t.Errorf("rcode = %v, want FORMERR", resp.Header.Rcode)
	}
}

func TestServerNXDomain(t *testing.T) {
	store := zone.New()
	srv, cleanup := startTestServer(t, store)
	defer cleanup()

	query := wire.Message{
		Header:    wire.Header{ID: 7, Opcode: wire.OpcodeQuery},
		Questions: []wire.Question{{Labels: []string{"nowhere", "test"}, Type: wire.TypeA, Class: wire.ClassIN}},
	}
	resp := roundTrip(t, srv.Port(), query)
	if resp.Header.Rcode != wire.RcodeNXDomain {
		t.Errorf("rcode = %v, want NXDOMAIN", resp.Header.Rcode)
	}
}

func TestServerPortReportsOSAssigned(t *testing.T) {
	store := zone.New()
	srv, cleanup := startTestServer(t, store)
	defer cleanup()

	if srv.Port() == 0 {
		t.Error("Port() = 0, want an OS-assigned port")
	}
}
