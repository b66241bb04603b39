package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the registry over HTTP, optionally restricted to a set of networks.
type Server struct {
	httpServer *http.Server
	metrics    *Metrics
	addr       string
	path       string
	allowed    []*net.IPNet
	logger     *slog.Logger
}

// ParseAllowedNetworks turns a list of IPs and CIDRs into networks.
// Bare addresses become single-host networks.
func ParseAllowedNetworks(entries []string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid CIDR %q: %w", entry, err)
			}
			nets = append(nets, ipNet)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("invalid IP %q", entry)
		}
		bits := 128
		if ip.To4() != nil {
			ip = ip.To4()
			bits = 32
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets, nil
}

// NewServer creates a metrics server. An empty allowlist admits every client.
func NewServer(m *Metrics, addr, path string, allowedIPs []string, logger *slog.Logger) (*Server, error) {
	if addr == "" {
		addr = ":9090"
	}
	if path == "" {
		path = "/metrics"
	}
	allowed, err := ParseAllowedNetworks(allowedIPs)
	if err != nil {
		return nil, fmt.Errorf("metrics allowed_ips: %w", err)
	}
	if len(allowed) > 0 {
		logger.Info("metrics IP filtering enabled", "allowed_networks", len(allowed))
	}
	return &Server{
		metrics: m,
		addr:    addr,
		path:    path,
		allowed: allowed,
		logger:  logger.With("component", "metrics"),
	}, nil
}

// Handler returns the router serving the metrics path and /health.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.With(s.ipFilter).Handle(s.path, promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return r
}

// ListenAndServe blocks until the server stops. A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting metrics server", "addr", s.addr, "path", s.path)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down metrics server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) ipFilter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.allowed) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		ip := clientIP(r)
		if ip == nil || !s.isAllowed(ip) {
			s.logger.Warn("metrics access denied", "remote_addr", r.RemoteAddr)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) isAllowed(ip net.IP) bool {
	for _, n := range s.allowed {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// clientIP honours X-Forwarded-For (first hop) and X-Real-IP before RemoteAddr.
func clientIP(r *http.Request) net.IP {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}
