package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the metrics and health endpoints over HTTP. It owns a
// private registry so scrapes never see metrics from other code in the
// process.
type Server struct {
	listen     string
	path       string
	healthPath string

	registry *prometheus.Registry
	srv      *http.Server
	ln       net.Listener
	started  time.Time
}

type healthStatus struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// NewServer prepares a server for the given listen address and endpoint
// paths. Go runtime collectors are registered up front.
func NewServer(listen, path, healthPath string) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Server{
		listen:     listen,
		path:       path,
		healthPath: healthPath,
		registry:   registry,
	}
}

// MustRegister adds collectors to the private registry. It panics on
// duplicate registration.
func (s *Server) MustRegister(cs ...prometheus.Collector) {
	s.registry.MustRegister(cs...)
}

// Registry exposes the private registry for tests.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Start binds the listen address and serves in the background. Binding
// happens here so address errors surface to the caller.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return errors.Wrap(err, "bind metrics listener")
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.healthPath, s.handleHealth)
	mux.Handle(s.path, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		Registry: s.registry,
	}))

	s.ln = ln
	s.started = time.Now()
	s.srv = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server: %v", err)
		}
	}()
	return nil
}

// Addr reports the bound address once started. Useful with a ":0" listen
// address.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown stops serving, waiting for in-flight scrapes up to the context
// deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthStatus{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Millisecond).String(),
	})
}
