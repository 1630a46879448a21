// Package responder implements the query-to-response composition rules
// of spec section 4.4, on top of either a zone store or a recursive
// resolver.
package responder

import (
	"errors"
	"time"

	"github.com/dnsauth/dnsauthd/internal/metrics"
	"github.com/dnsauth/dnsauthd/internal/resolver"
	"github.com/dnsauth/dnsauthd/internal/wire"
	"github.com/dnsauth/dnsauthd/internal/zone"
)

// Lookup is satisfied by both *zone.Store and *resolver.Resolver, letting
// a Responder wrap either without knowing which.
type Lookup interface {
	FindRecords(labels []string, qtype wire.RrType, qclass wire.RrClass, recursive bool) ([]wire.Rr, error)
	FindAuthorities(labels []string, rclass wire.RrClass) []zone.DomainAuthority
	SupportsRecursion() bool
}

// Responder answers one query at a time against a single Lookup.
type Responder struct {
	lookup  Lookup
	Metrics *metrics.Recorder // nil is a valid, no-op recorder
}

// New wraps lookup in a Responder.
func New(lookup Lookup) *Responder {
	return &Responder{lookup: lookup}
}

// Respond builds the response Message for query, following section 4.4's
// five steps in order.
func (r *Responder) Respond(query wire.Message) (resp wire.Message) {
	start := time.Now()
	defer func() {
		resp = finalize(resp)
		r.Metrics.ObserveQuery(resp.Header.Rcode, time.Since(start))
	}()

	resp = wire.Message{
		Header:    query.Header,
		Questions: query.Questions,
	}
	resp.Header.QR = true
	resp.Header.AA = true
	resp.Header.Z = 0

	if r.lookup.SupportsRecursion() {
		resp.Header.RA = true
	} else if query.Header.RD {
		resp.Header.Rcode = wire.RcodeRefused
		return resp
	}

	if len(query.Questions) == 0 {
		return resp
	}

	q := query.Questions[0]
	r.answerQuestion(&resp, q, query.Header.RD)
	return resp
}

// answerQuestion implements steps 4(a)-4(e). Any error from the lookup
// that is not RemoteRefused falls through to the SERVFAIL catch-all
// (section 4.4 step 5, section 7).
func (r *Responder) answerQuestion(resp *wire.Message, q wire.Question, rd bool) {
	defer func() {
		if rec := recover(); rec != nil {
			*resp = wire.Message{Header: resp.Header, Questions: resp.Questions}
			resp.Header.Rcode = wire.RcodeServFail
		}
	}()

	records, err := r.lookup.FindRecords(q.Labels, q.Type, q.Class, rd)
	if err != nil {
		if isRemoteRefused(err) {
			resp.Header.Rcode = wire.RcodeRefused
			return
		}
		resp.Header.Rcode = wire.RcodeServFail
		return
	}
	resp.Answers = append(resp.Answers, records...)

	if q.Type == wire.TypeMX {
		glue, err := r.lookup.FindRecords(q.Labels, wire.TypeA, wire.ClassIN, rd)
		if err != nil {
			resp.Header.Rcode = wire.RcodeServFail
			return
		}
		resp.Additional = append(resp.Additional, glue...)
	}

	if len(records) == 0 {
		authorities := r.lookup.FindAuthorities(q.Labels, q.Class)
		for _, a := range authorities {
			resp.Authorities = append(resp.Authorities, wire.Rr{
				Labels: a.Domain, Type: wire.TypeNS, Class: a.Class, TTL: a.TTL,
				Rdata: wire.EncodeName(a.Name),
			})
			for _, ip := range a.IPs {
				v4 := ip.To4()
				rdata := []byte(v4)
				if v4 == nil {
					rdata = []byte(ip.To16())
				}
				resp.Additional = append(resp.Additional, wire.Rr{
					Labels: a.Name, Type: wire.TypeA, Class: a.Class, TTL: 0,
					Rdata: rdata,
				})
			}
		}
		if len(authorities) > 0 {
			resp.Header.AA = false
			return
		}

		probe, err := r.lookup.FindRecords(q.Labels, wire.TypeALL, q.Class, rd)
		if err != nil {
			if isRemoteRefused(err) {
				resp.Header.Rcode = wire.RcodeRefused
				return
			}
			resp.Header.Rcode = wire.RcodeServFail
			return
		}
		if len(probe) == 0 {
			resp.Header.Rcode = wire.RcodeNXDomain
		}
	}
}

func isRemoteRefused(err error) bool {
	var re *resolver.ResolutionError
	return errors.As(err, &re) && re.Kind == resolver.RemoteRefused
}

// finalize forces the section counts to match the section sizes,
// regardless of what the caller set (section 4.4 step 5).
func finalize(m wire.Message) wire.Message {
	m.Header.QDCount = uint16(len(m.Questions))
	m.Header.ANCount = uint16(len(m.Answers))
	m.Header.NSCount = uint16(len(m.Authorities))
	m.Header.ARCount = uint16(len(m.Additional))
	return m
}
