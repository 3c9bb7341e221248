package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/unblockhq/unblock/internal/logger"
	"github.com/unblockhq/unblock/internal/server"
	"github.com/unblockhq/unblock/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the marketplace engine and its HTTP API",
	Long: `Starts the task marketplace engine and serves its JSON API.
Policy knobs under market.* reload live when the config file changes;
everything else requires a restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *GetConfig()
		log := logger.New(cfg.Log)

		eng, err := newEngine(cfg, log)
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		srvOpts := server.Options{
			Port:         cfg.Server.Port,
			Orchestrator: eng.Orchestrator,
			Tasks:        eng.Tasks,
			Trust:        eng.Trust,
			Calibrations: eng.Calibrations,
			Registry:     eng.Registry,
			Broker:       eng.Broker,
			Log:          log,
		}
		if eng.Ledger != nil {
			srvOpts.Ledger = eng.Ledger
		}
		srv := server.New(srvOpts)

		WatchConfig(func(next types.AppConfig) {
			eng.Orchestrator.SetConfig(next.Market)
			log.Info("market policy reloaded from config file")
		})

		errCh := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-stop:
			log.WithField("signal", sig.String()).Info("shutting down")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
