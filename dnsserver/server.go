package dnsserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/miekg/dns"
)

type DNSServerConfig struct {
	ListenAddr string
	Log        *slog.Logger

	GracefulShutdownDuration time.Duration
}

// Server runs a UDP DNS listener.
type Server struct {
	cfg *DNSServerConfig
	log *slog.Logger
	srv *dns.Server
}

func New(cfg *DNSServerConfig, handler dns.Handler) *Server {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg: cfg,
		log: log,
		srv: &dns.Server{
			Addr:    cfg.ListenAddr,
			Net:     "udp",
			Handler: handler,
		},
	}
}

func (s *Server) RunInBackground() {
	go func() {
		s.log.Info("Starting DNS server", "listenAddress", s.cfg.ListenAddr)
		if err := s.srv.ListenAndServe(); err != nil {
			s.log.Error("DNS server failed", "err", err)
		}
	}()
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := s.srv.ShutdownContext(ctx); err != nil {
		s.log.Error("Graceful DNS server shutdown failed", "err", err)
	} else {
		s.log.Info("DNS server gracefully stopped")
	}
}
