package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dnsauth/dnsauthd/internal/config"
	"github.com/dnsauth/dnsauthd/internal/metrics"
	"github.com/dnsauth/dnsauthd/internal/ratelimit"
	"github.com/dnsauth/dnsauthd/internal/resolver"
	"github.com/dnsauth/dnsauthd/internal/responder"
	"github.com/dnsauth/dnsauthd/internal/transport"
	"github.com/dnsauth/dnsauthd/internal/worker"
	"github.com/dnsauth/dnsauthd/internal/zone"
	"github.com/dnsauth/dnsauthd/internal/zoneconfig"
)

var (
	port         = flag.Int("port", 0, "UDP listen port (0 = OS-assigned)")
	remoteIP     = flag.String("remote-ip", "", "Upstream server to forward to (enables recursive mode)")
	remotePort   = flag.Int("remote-port", 53, "Upstream server port")
	norec        = flag.Bool("norec", false, "Do not set rd on outgoing queries to the upstream")
	cfgPath      = flag.String("config", "", "Path to a YAML config file")
	metricsAddr  = flag.String("metrics-addr", "", "Address for the Prometheus /metrics endpoint (empty disables it)")
	rateLimitQPS = flag.Float64("rate-limit-qps", 0, "Per-client queries-per-second limit (0 disables rate limiting)")
)

func main() {
	flag.Parse()

	fmt.Println("dnsauthd - authoritative + recursive DNS name server")
	fmt.Println()

	var file *config.File
	if *cfgPath != "" {
		f, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		file = f
	}

	eIP, eRemotePort, eNoRec, eMetricsAddr, eRateLimitQPS := resolveSettings(file)

	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)

	lookup, err := buildLookup(file, eIP, eRemotePort, eNoRec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build lookup: %v\n", err)
		os.Exit(1)
	}
	if res, ok := lookup.(*resolver.Resolver); ok {
		res.Metrics = rec
	}

	resp := responder.New(lookup)
	resp.Metrics = rec

	listenPort := *port
	if listenPort == 0 && file != nil {
		listenPort = file.Port
	}

	workerCfg := worker.Config{}
	srv, err := transport.New(listenPort, resp, workerCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bind udp: %v\n", err)
		os.Exit(1)
	}

	if eRateLimitQPS > 0 {
		l := ratelimit.New(ratelimit.Config{QueriesPerSecond: eRateLimitQPS, BurstSize: int(eRateLimitQPS) * 2, CleanupInterval: 5 * time.Minute})
		srv.SetLimiter(l)
	}

	fmt.Printf("Configuration:\n")
	fmt.Printf("  Mode:           %s\n", modeName(eIP))
	fmt.Printf("  Metrics:        %s\n", describeMetrics(eMetricsAddr))
	fmt.Printf("  Rate limit:     %s\n", describeRateLimit(eRateLimitQPS))
	fmt.Println()

	if eMetricsAddr != "" {
		go serveMetrics(eMetricsAddr, reg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "transport stopped: %v\n", err)
		}
	}()

	fmt.Printf("listening on udp port %d\n", srv.Port())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println()
	fmt.Println("shutting down")

	cancel()
	if err := srv.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error during shutdown: %v\n", err)
		os.Exit(1)
	}
}

// resolveSettings layers flags over a loaded config file: a flag left at
// its default value never overrides a file setting, matching the teacher's
// own flags-over-config layering in cmd/dnsscience-grpc/main.go.
func resolveSettings(file *config.File) (remoteIPOut string, remotePortOut int, norecOut bool, metricsAddrOut string, rateLimitQPSOut float64) {
	remoteIPOut, remotePortOut, metricsAddrOut = "", 53, ""
	if file != nil {
		remoteIPOut = file.RemoteIP
		if file.RemotePort != 0 {
			remotePortOut = file.RemotePort
		}
		norecOut = file.NoRecurse
		metricsAddrOut = file.MetricsAddr
		rateLimitQPSOut = file.RateLimitQPS
	}
	if *remoteIP != "" {
		remoteIPOut = *remoteIP
	}
	if *remotePort != 53 {
		remotePortOut = *remotePort
	}
	if *norec {
		norecOut = true
	}
	if *metricsAddr != "" {
		metricsAddrOut = *metricsAddr
	}
	if *rateLimitQPS != 0 {
		rateLimitQPSOut = *rateLimitQPS
	}
	return
}

// buildLookup picks the responder's single Lookup: a forwarding resolver
// when an upstream is configured, otherwise a zone store built from the
// config file's zone section.
func buildLookup(file *config.File, remoteIP string, remotePort int, noRec bool) (responder.Lookup, error) {
	if remoteIP != "" {
		ip := net.ParseIP(remoteIP)
		if ip == nil {
			return nil, fmt.Errorf("%q is not a valid IP address", remoteIP)
		}
		servers := []resolver.DnsServer{{IP: ip, Port: uint16(remotePort), Recursive: !noRec}}
		if file != nil {
			for _, u := range file.Upstreams {
				uip := net.ParseIP(u.IP)
				if uip == nil {
					return nil, fmt.Errorf("%q is not a valid IP address", u.IP)
				}
				servers = append(servers, resolver.DnsServer{IP: uip, Port: u.Port, Recursive: u.Recursive})
			}
		}
		return resolver.New(servers, 0), nil
	}

	store := zone.New()
	if file != nil {
		if err := zoneconfig.Apply(store, file.Zone); err != nil {
			return nil, fmt.Errorf("apply zone config: %w", err)
		}
	}
	return store, nil
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	fmt.Printf("metrics listening on %s\n", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
	}
}

func modeName(remoteIP string) string {
	if remoteIP != "" {
		return "recursive (forwarding to " + remoteIP + ")"
	}
	return "authoritative (zone store)"
}

func describeMetrics(addr string) string {
	if addr == "" {
		return "disabled"
	}
	return addr
}

func describeRateLimit(qps float64) string {
	if qps <= 0 {
		return "disabled"
	}
	return fmt.Sprintf("%.0f qps per client", qps)
}
