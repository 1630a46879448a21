// Package ratelimit provides a per-client-IP admission gate for the UDP
// transport. It sits entirely outside the DNS protocol state machine: a
// client that fails Allow is simply never handed to the responder.
package ratelimit

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds Limiter configuration.
type Config struct {
	QueriesPerSecond float64       // token bucket refill rate, per client IP
	BurstSize        int           // token bucket capacity
	CleanupInterval  time.Duration // how often to drop all tracked limiters
}

// DefaultConfig returns sensible defaults: 100 QPS per client, bursts to
// 200, cleared every 5 minutes.
func DefaultConfig() Config {
	return Config{
		QueriesPerSecond: 100,
		BurstSize:        200,
		CleanupInterval:  5 * time.Minute,
	}
}

// Limiter tracks one token bucket per client IP.
type Limiter struct {
	mu              sync.Mutex
	limitersByIP    map[string]*rate.Limiter
	queriesPerSec   rate.Limit
	burstSize       int
	cleanupInterval time.Duration
	lastCleanup     time.Time
	exemptNets      []*net.IPNet
}

// New creates a Limiter from cfg. A zero Config falls back to
// DefaultConfig.
func New(cfg Config) *Limiter {
	if cfg.QueriesPerSecond == 0 {
		cfg = DefaultConfig()
	}
	return &Limiter{
		limitersByIP:    make(map[string]*rate.Limiter),
		queriesPerSec:   rate.Limit(cfg.QueriesPerSecond),
		burstSize:       cfg.BurstSize,
		cleanupInterval: cfg.CleanupInterval,
		lastCleanup:     time.Now(),
	}
}

// Allow reports whether a query from ip should be admitted. Exempt
// networks always return true without consuming a token.
func (l *Limiter) Allow(ip net.IP) bool {
	if l.isExempt(ip) {
		return true
	}

	key := ip.String()

	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) > l.cleanupInterval {
		l.limitersByIP = make(map[string]*rate.Limiter)
		l.lastCleanup = time.Now()
	}

	limiter, ok := l.limitersByIP[key]
	if !ok {
		limiter = rate.NewLimiter(l.queriesPerSec, l.burstSize)
		l.limitersByIP[key] = limiter
	}
	return limiter.Allow()
}

// AddExempt excludes cidr (a CIDR or a bare IP) from rate limiting.
func (l *Limiter) AddExempt(cidr string) error {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		ip := net.ParseIP(cidr)
		if ip == nil {
			return err
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		ipnet = &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exemptNets = append(l.exemptNets, ipnet)
	return nil
}

func (l *Limiter) isExempt(ip net.IP) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, exempt := range l.exemptNets {
		if exempt.Contains(ip) {
			return true
		}
	}
	return false
}
