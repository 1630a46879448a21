// Package resolver implements the recursive resolver (spec section 4.3):
// parallel fan-out over a configured server list, first-response-wins
// with terminal cancellation of siblings, SERVFAIL-triggered eviction,
// and CNAME chasing.
package resolver

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dnsauth/dnsauthd/internal/metrics"
	"github.com/dnsauth/dnsauthd/internal/wire"
	"github.com/dnsauth/dnsauthd/internal/zone"
)

const (
	maxSendCount     = 3
	maxCNAMESwitches = 10
	defaultPort      = 53
	defaultTimeout   = 5 * time.Second
)

// DnsServer is one entry of the resolver's server list (spec section 3).
type DnsServer struct {
	IP        net.IP
	Port      uint16 // 0 means defaultPort
	Recursive bool   // rd bit to set on the outbound query
}

func (s DnsServer) port() uint16 {
	if s.Port == 0 {
		return defaultPort
	}
	return s.Port
}

func (s DnsServer) network() string {
	if s.IP.To4() != nil {
		return "udp4"
	}
	return "udp6"
}

// Resolution is the outcome of a successful Resolve call: the answer
// records collected after any CNAME chase, and the rcode the remote
// server ultimately reported.
type Resolution struct {
	Records []wire.Rr
	Rcode   wire.Rcode
}

// Resolver owns a readers-writer-locked server list and dispatches
// queries against it. The zero value is not usable; use New.
type Resolver struct {
	mu      sync.RWMutex
	slist   []DnsServer
	timeout time.Duration
	Metrics *metrics.Recorder // nil is a valid, no-op recorder
}

// New returns a Resolver seeded with servers. A copy of servers is taken,
// so later mutation of the caller's slice has no effect.
func New(servers []DnsServer, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	r := &Resolver{timeout: timeout}
	r.slist = append(r.slist, servers...)
	return r
}

func (r *Resolver) snapshot() []DnsServer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DnsServer, len(r.slist))
	copy(out, r.slist)
	return out
}

// evict removes srv from the server list. Idempotent: evicting a server
// already absent (e.g. raced out by a concurrent attempt) is a no-op, not
// an error (spec section 4.3's eviction invariant).
func (r *Resolver) evict(srv DnsServer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.slist {
		if s.IP.Equal(srv.IP) && s.Port == srv.Port {
			r.slist = append(r.slist[:i], r.slist[i+1:]...)
			r.Metrics.ObserveEviction()
			return
		}
	}
}

// SupportsRecursion reports that a Resolver can always answer recursive
// queries, satisfying the responder's Lookup interface.
func (r *Resolver) SupportsRecursion() bool { return true }

// FindAuthorities is part of the Lookup interface. A Resolver never holds
// delegation records of its own; referrals are a zone-store concept.
func (r *Resolver) FindAuthorities(labels []string, rclass wire.RrClass) []zone.DomainAuthority {
	return nil
}

// FindRecords implements the Lookup interface's find_records operation by
// running Resolve and converting its outcome. A RemoteRefused outcome is
// returned as an error so the responder can map it to rcode=REFUSED
// (section 4.4 step a); every other failure is returned as-is and the
// responder's catch-all converts it to rcode=SERVFAIL (section 4.4 step
// 5, section 7).
func (r *Resolver) FindRecords(labels []string, qtype wire.RrType, qclass wire.RrClass, recursive bool) ([]wire.Rr, error) {
	res, err := r.Resolve(context.Background(), labels, qtype, qclass, recursive, 0)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// Resolve runs the fan-out-with-CNAME-chase algorithm of spec section
// 4.3 for one question. timeout<=0 uses the Resolver's configured
// default.
func (r *Resolver) Resolve(ctx context.Context, labels []string, qtype wire.RrType, qclass wire.RrClass, requestRecursion bool, timeout time.Duration) (Resolution, error) {
	if timeout <= 0 {
		timeout = r.timeout
	}

	question := wire.Question{Labels: labels, Type: qtype, Class: qclass}
	switches := 0
	defer func() { r.Metrics.ObserveCNAMEChase(switches) }()

	for ; ; switches++ {
		resp, raw, err := r.fanOut(ctx, question, timeout)
		if err != nil {
			return Resolution{}, err
		}

		if resp.Header.Rcode == wire.RcodeRefused {
			return Resolution{}, &ResolutionError{Kind: RemoteRefused}
		}

		target, hasCNAME, err := firstCNAMETarget(raw, resp)
		if err != nil {
			return Resolution{}, &ResolutionError{Kind: InvalidResponse, Err: err}
		}
		if !hasCNAME {
			return Resolution{Records: resp.Answers, Rcode: resp.Header.Rcode}, nil
		}

		if switches >= maxCNAMESwitches {
			return Resolution{}, &ResolutionError{Kind: RecursionLimit}
		}
		question = wire.Question{Labels: target, Type: qtype, Class: qclass}
	}
}

// fanOut runs up to maxSendCount rounds against successive snapshots of
// the server list, returning the first round that produces a winner.
func (r *Resolver) fanOut(ctx context.Context, q wire.Question, timeout time.Duration) (wire.Message, []byte, error) {
	var lastErr error = &ResolutionError{Kind: Timeout}
	for round := 0; round < maxSendCount; round++ {
		servers := r.snapshot()
		if len(servers) == 0 {
			continue
		}
		msg, raw, err := r.attemptRound(ctx, servers, q, timeout)
		if err == nil {
			return msg, raw, nil
		}
		lastErr = err
	}
	return wire.Message{}, nil, lastErr
}

type roundResult struct {
	msg wire.Message
	raw []byte
}

// attemptRound dispatches one query per server in parallel. The first
// attempt to produce a usable Message wins: a sync.Once guards the
// single-writer slot so exactly one winner is recorded, and winning
// cancels the round's context so sibling sends/receives abort promptly
// instead of running to their own timeout.
func (r *Resolver) attemptRound(ctx context.Context, servers []DnsServer, q wire.Question, timeout time.Duration) (wire.Message, []byte, error) {
	roundCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(roundCtx)

	var once sync.Once
	var won bool
	var winner roundResult

	var mu sync.Mutex
	lastErr := error(&ResolutionError{Kind: Timeout})

	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			msg, raw, err := r.attemptOne(gctx, srv, q, timeout)
			if err != nil {
				r.Metrics.ObserveResolverAttempt(attemptOutcome(err))
				mu.Lock()
				lastErr = err
				mu.Unlock()
				return nil
			}
			r.Metrics.ObserveResolverAttempt("success")
			once.Do(func() {
				winner = roundResult{msg: msg, raw: raw}
				won = true
				cancel()
			})
			return nil
		})
	}
	_ = g.Wait()

	if won {
		return winner.msg, winner.raw, nil
	}
	return wire.Message{}, nil, lastErr
}

// attemptOne sends one query to srv and waits for a response, bounded by
// timeout. A SERVFAIL response evicts srv from the server list and is
// reported as RemoteFailure; every other decoded response (including
// REFUSED) is handed back to the caller to interpret.
func (r *Resolver) attemptOne(ctx context.Context, srv DnsServer, q wire.Question, timeout time.Duration) (wire.Message, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	query := wire.Message{
		Header:    wire.Header{ID: 1, Opcode: wire.OpcodeQuery, RD: srv.Recursive},
		Questions: []wire.Question{q},
	}
	payload := wire.EncodeMessage(query)

	addr := &net.UDPAddr{IP: srv.IP, Port: int(srv.port())}
	conn, err := net.DialUDP(srv.network(), nil, addr)
	if err != nil {
		return wire.Message{}, nil, &ResolutionError{Kind: Timeout, Err: err}
	}
	defer conn.Close()

	if _, err := conn.Write(payload); err != nil {
		return wire.Message{}, nil, &ResolutionError{Kind: Timeout, Err: err}
	}

	type readOutcome struct {
		n   int
		err error
	}
	buf := make([]byte, 512)
	readCh := make(chan readOutcome, 1)
	go func() {
		n, err := conn.Read(buf)
		readCh <- readOutcome{n, err}
	}()

	var n int
	select {
	case out := <-readCh:
		n, err = out.n, out.err
	case <-ctx.Done():
		conn.SetDeadline(time.Now())
		out := <-readCh
		n, err = out.n, out.err
		if err == nil {
			err = ctx.Err()
		}
	}
	if err != nil {
		return wire.Message{}, nil, &ResolutionError{Kind: Timeout, Err: err}
	}

	raw := append([]byte(nil), buf[:n]...)
	resp, err := wire.DecodeMessage(raw)
	if err != nil {
		return wire.Message{}, nil, &ResolutionError{Kind: InvalidResponse, Err: err}
	}
	if !resp.Header.QR {
		return wire.Message{}, nil, &ResolutionError{Kind: InvalidResponse}
	}
	if resp.Header.Rcode == wire.RcodeServFail {
		r.evict(srv)
		return wire.Message{}, nil, &ResolutionError{Kind: RemoteFailure}
	}
	return resp, raw, nil
}

func attemptOutcome(err error) string {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Kind.String()
	}
	return "unknown"
}

// firstCNAMETarget walks raw the same way wire.DecodeMessage did to reach
// msg, stopping at the first answer of type CNAME and re-parsing its
// rdata through a fresh cursor over raw so any compression pointer it
// carries resolves against the full message (section 4.1).
func firstCNAMETarget(raw []byte, msg wire.Message) ([]string, bool, error) {
	buf := wire.NewBuffer(raw)
	if _, err := wire.DecodeHeader(buf); err != nil {
		return nil, false, err
	}
	for range msg.Questions {
		if _, err := wire.DecodeQuestion(buf); err != nil {
			return nil, false, err
		}
	}

	for _, rr := range msg.Answers {
		if _, err := wire.DecodeName(buf); err != nil {
			return nil, false, err
		}
		if _, err := buf.ReadUint16(); err != nil { // type
			return nil, false, err
		}
		if _, err := buf.ReadUint16(); err != nil { // class
			return nil, false, err
		}
		if _, err := buf.ReadUint32(); err != nil { // ttl
			return nil, false, err
		}
		rdlen, err := buf.ReadUint16()
		if err != nil {
			return nil, false, err
		}
		rdataStart := buf.Pos()

		if rr.Type == wire.TypeCNAME {
			target := wire.NewBuffer(raw)
			target.Seek(rdataStart)
			labels, err := wire.DecodeName(target)
			if err != nil {
				return nil, false, err
			}
			return labels, true, nil
		}
		buf.Seek(rdataStart + int(rdlen))
	}
	return nil, false, nil
}
