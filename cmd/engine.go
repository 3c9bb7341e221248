package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/unblockhq/unblock/internal/calibration"
	"github.com/unblockhq/unblock/internal/clock"
	"github.com/unblockhq/unblock/internal/escrow"
	"github.com/unblockhq/unblock/internal/ledger"
	"github.com/unblockhq/unblock/internal/lifecycle"
	"github.com/unblockhq/unblock/internal/orchestrator"
	"github.com/unblockhq/unblock/internal/pubsub"
	"github.com/unblockhq/unblock/internal/registry"
	"github.com/unblockhq/unblock/internal/trust"
	"github.com/unblockhq/unblock/store"
	"github.com/unblockhq/unblock/types"
)

// engine bundles the fully wired marketplace collaborators for the CLI
// commands that run the engine in-process.
type engine struct {
	Orchestrator *orchestrator.Orchestrator
	Tasks        *lifecycle.Service
	Trust        *trust.Store
	Calibrations *calibration.Store
	Registry     *registry.Registry
	Broker       *pubsub.Broker
	Ledger       *ledger.Ledger // nil when no ledger path is configured
	Log          *logrus.Logger
}

// newEngine wires the engine from the resolved application config.
func newEngine(cfg types.AppConfig, log *logrus.Logger) (*engine, error) {
	clk := clock.System{}
	tasks := lifecycle.NewService(store.NewMemoryTaskStore(), clk)
	trustStore := trust.NewStore(clk, log)
	calibrations := calibration.NewStore(clk, log)
	agents := registry.New(clk, log)
	broker := pubsub.NewBroker(clk, log)

	var led *ledger.Ledger
	var recorder ledger.Recorder = ledger.Discard{}
	if cfg.Ledger.Path != "" {
		opened, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("open settlement ledger: %w", err)
		}
		led = opened
		recorder = opened
	}

	if !cfg.Escrow.Mock {
		return nil, fmt.Errorf("no real escrow rail is wired in; set escrow.mock: true")
	}

	orch := orchestrator.New(orchestrator.Options{
		Config:       cfg.Market,
		Tasks:        tasks,
		Trust:        trustStore,
		Calibrations: calibrations,
		Escrow:       escrow.NewMock(log),
		Registry:     agents,
		Broker:       broker,
		Ledger:       recorder,
		Clock:        clk,
		Log:          log,
	})

	return &engine{
		Orchestrator: orch,
		Tasks:        tasks,
		Trust:        trustStore,
		Calibrations: calibrations,
		Registry:     agents,
		Broker:       broker,
		Ledger:       led,
		Log:          log,
	}, nil
}

// Close releases engine resources.
func (e *engine) Close() error {
	if e.Ledger != nil {
		return e.Ledger.Close()
	}
	return nil
}
