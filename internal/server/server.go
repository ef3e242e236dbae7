package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// Server represents an HTTP server
type Server struct {
	srv  *http.Server
	errs chan error
}

// New creates a new server instance. writeTimeout bounds a whole request,
// including the outbound CRM calls made while serving it.
func New(handler http.Handler, port string, writeTimeout time.Duration) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	return &Server{
		srv: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       120 * time.Second,
		},
		errs: make(chan error, 1),
	}
}

// Start binds the listener and serves in the background.
// Bind errors are returned; later serve errors are delivered on Errors.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener in the background
func (s *Server) Serve(ln net.Listener) error {
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errs <- err
		}
		close(s.errs)
	}()
	return nil
}

// Errors is closed when the server stops
func (s *Server) Errors() <-chan error {
	return s.errs
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
