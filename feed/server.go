package feed

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Server exposes a hub's websocket endpoint over HTTP.
type Server struct {
	listen string
	path   string
	hub    *Hub

	srv *http.Server
	ln  net.Listener
}

// NewServer prepares a server publishing the given hub under path.
func NewServer(listen, path string, hub *Hub) *Server {
	return &Server{listen: listen, path: path, hub: hub}
}

// Start binds the listen address, runs the hub and serves in the
// background. Binding happens here so address errors surface to the
// caller.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return errors.Wrap(err, "bind feed listener")
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.hub.ServeWs)

	s.ln = ln
	// No write timeout, connections stay upgraded for the whole run.
	s.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.hub.Run()
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("feed server: %v", err)
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

// Shutdown disconnects all subscribers and stops serving.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
