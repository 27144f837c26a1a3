// Package web is the HTTP front for the pairing orchestrator: a small
// form to start an attempt plus JSON/PNG routes to poll its progress and
// fetch the finished session blob.
package web

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"WhatsappLinker/internal/pairing"
	"WhatsappLinker/pkg/config"
)

type Server struct {
	Config       *config.Config
	Orchestrator *pairing.Orchestrator
}

func New(c *config.Config, o *pairing.Orchestrator) *Server {
	return &Server{Config: c, Orchestrator: o}
}

// Handler wires the route table; split out so tests can drive it with
// httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/pair", s.handlePair)
	mux.HandleFunc("/qr", s.handleQR)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/result", s.handleResult)
	return mux
}

// Run serves until SIGINT/SIGTERM, then drains in-flight requests.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.Config.HTTPAddr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("web: listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
