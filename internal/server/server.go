// Package server exposes the marketplace engine over a JSON HTTP API.
// Transport only: every decision lives in the orchestrator.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/unblockhq/unblock/internal/calibration"
	"github.com/unblockhq/unblock/internal/ledger"
	"github.com/unblockhq/unblock/internal/lifecycle"
	"github.com/unblockhq/unblock/internal/orchestrator"
	"github.com/unblockhq/unblock/internal/pubsub"
	"github.com/unblockhq/unblock/internal/registry"
	"github.com/unblockhq/unblock/internal/trust"
)

// LedgerReader is the optional read side of the settlement ledger.
type LedgerReader interface {
	List(limit int) ([]ledger.Entry, error)
	ListByTask(taskID string) ([]ledger.Entry, error)
}

// Server wires the engine's collaborators behind HTTP handlers.
type Server struct {
	orch         *orchestrator.Orchestrator
	tasks        *lifecycle.Service
	trust        *trust.Store
	calibrations *calibration.Store
	registry     *registry.Registry
	broker       *pubsub.Broker
	ledger       LedgerReader
	log          logrus.FieldLogger
	server       *http.Server
}

// Options bundles the server's collaborators.
type Options struct {
	Port         int
	Orchestrator *orchestrator.Orchestrator
	Tasks        *lifecycle.Service
	Trust        *trust.Store
	Calibrations *calibration.Store
	Registry     *registry.Registry
	Broker       *pubsub.Broker
	Ledger       LedgerReader
	Log          logrus.FieldLogger
}

// New creates the HTTP server.
func New(opts Options) *Server {
	s := &Server{
		orch:         opts.Orchestrator,
		tasks:        opts.Tasks,
		trust:        opts.Trust,
		calibrations: opts.Calibrations,
		registry:     opts.Registry,
		broker:       opts.Broker,
		ledger:       opts.Ledger,
		log:          opts.Log,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler; used by httptest.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// ListenAndServe blocks serving the API until the server is shut down.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.server.Addr).Info("http api listening")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
