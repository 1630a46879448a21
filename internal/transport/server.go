// Package transport runs the UDP receive loop of spec section 4.5: a
// dual-stack socket, a worker pool draining datagrams, and the codec/
// responder wiring between them. Per section 7, this layer never
// propagates an error to a caller — every code path ends in a datagram
// send or a clean drop.
package transport

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"

	"github.com/dnsauth/dnsauthd/internal/pool"
	"github.com/dnsauth/dnsauthd/internal/ratelimit"
	"github.com/dnsauth/dnsauthd/internal/responder"
	"github.com/dnsauth/dnsauthd/internal/wire"
	"github.com/dnsauth/dnsauthd/internal/worker"
)

// maxDatagram is the wire protocol's hard ceiling (section 6): responses
// larger than this are truncated with tc=1, never grown or re-encoded.
const maxDatagram = 512

// Server owns one bound UDP socket and a pool of workers draining it.
type Server struct {
	conn    net.PacketConn
	resp    *responder.Responder
	workers *worker.Pool
	logger  *log.Logger

	limiter *ratelimit.Limiter // nil disables rate limiting
}

// New binds a dual-stack ("udp", which resolves to udp6 with v6only
// cleared) socket on port (0 ⇒ OS-assigned) and returns a Server ready to
// Start. workerCfg configures the draining pool; its zero value picks
// the pool's own defaults. Use SetLimiter to enable per-IP admission
// control before calling Start.
func New(port int, resp *responder.Responder, workerCfg worker.Config) (*Server, error) {
	lc := net.ListenConfig{Control: platformControl}
	conn, err := lc.ListenPacket(context.Background(), "udp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("listen udp: %w", err)
	}

	if workerCfg.PanicHandler == nil {
		workerCfg.PanicHandler = func(rec interface{}) {
			log.Printf("transport: recovered panic handling datagram: %v", rec)
		}
	}

	return &Server{
		conn:    conn,
		resp:    resp,
		workers: worker.NewPool(workerCfg),
		logger:  log.Default(),
	}, nil
}

// SetLimiter enables per-client-IP admission control. A datagram from an
// IP that Allow rejects is dropped before it ever reaches the responder.
func (s *Server) SetLimiter(l *ratelimit.Limiter) {
	s.limiter = l
}

// Port returns the bound local port, resolving a port=0 construction to
// whatever the OS assigned.
func (s *Server) Port() int {
	if udpAddr, ok := s.conn.LocalAddr().(*net.UDPAddr); ok {
		return udpAddr.Port
	}
	return 0
}

// Start runs the receive loop until ctx is done or the socket fails to
// read. Each datagram is copied off the pooled buffer and handed to the
// worker pool so the loop itself never blocks on a slow response.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	for {
		buf := pool.Get()
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			pool.Put(buf)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read udp: %w", err)
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		pool.Put(buf)

		if s.limiter != nil {
			if udpAddr, ok := addr.(*net.UDPAddr); ok && !s.limiter.Allow(udpAddr.IP) {
				continue
			}
		}

		job := worker.JobFunc(func(context.Context) error {
			s.handle(addr, payload)
			return nil
		})
		if err := s.workers.SubmitAsync(job); err != nil {
			s.logger.Printf("transport: dropping datagram from %s: %v", addr, err)
		}
	}
}

// Close stops the worker pool and closes the socket.
func (s *Server) Close() error {
	s.workers.Close()
	return s.conn.Close()
}

// handle decodes one datagram, builds a response via the responder, and
// sends it back to addr. Decode failures get a minimal FORMERR response
// rather than being dropped (section 4.5).
func (s *Server) handle(addr net.Addr, payload []byte) {
	buf := wire.NewBuffer(payload)

	header, err := wire.DecodeHeader(buf)
	if err != nil {
		s.sendFormErr(addr, wire.Header{})
		return
	}

	questions := make([]wire.Question, 0, header.QDCount)
	for i := uint16(0); i < header.QDCount; i++ {
		q, err := wire.DecodeQuestion(buf)
		if err != nil {
			s.sendFormErr(addr, header)
			return
		}
		questions = append(questions, q)
	}

	resp := s.resp.Respond(wire.Message{Header: header, Questions: questions})
	s.send(addr, wire.EncodeMessage(resp))
}

// sendFormErr emits the minimum Message the error-handling design calls
// for on a codec failure: same ID, qr=1, rcode=FORMERR, no sections.
func (s *Server) sendFormErr(addr net.Addr, header wire.Header) {
	header.QR = true
	header.AA = false
	header.RA = false
	header.Z = 0
	header.Rcode = wire.RcodeFormErr
	header.QDCount, header.ANCount, header.NSCount, header.ARCount = 0, 0, 0, 0
	s.send(addr, wire.EncodeMessage(wire.Message{Header: header}))
}

// send truncates an oversized payload to maxDatagram octets and sets
// tc=1 in place, without re-encoding (section 4.5).
func (s *Server) send(addr net.Addr, payload []byte) {
	if len(payload) > maxDatagram {
		payload = payload[:maxDatagram]
		payload[2] |= 0x02 // tc bit, see wire.EncodeHeader's flags layout
	}
	if _, err := s.conn.WriteTo(payload, addr); err != nil {
		s.logger.Printf("transport: write to %s: %v", addr, err)
	}
}
