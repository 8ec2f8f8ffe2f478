package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nishad/srafetch/internal/api"
	"github.com/nishad/srafetch/internal/database"
	"github.com/nishad/srafetch/internal/metrics"
	"github.com/nishad/srafetch/internal/service"
	"github.com/nishad/srafetch/internal/ui"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the srafetch HTTP API",
	Long: `Start an HTTP API that resolves accessions on request.

The server provides:
- POST /api/v1/resolve for batches of accession lines
- GET /api/v1/accessions/{accession} for a single accession
- Batch history endpoints when history is enabled
- Prometheus metrics at /metrics`,
	Example: `  srafetch serve
  srafetch serve --port 3000 --record
  srafetch serve --host 0.0.0.0 --enable-cors=false`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	servePort       int
	serveHost       string
	serveRecord     bool
	serveEnableCORS bool
)

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "Host to bind to")
	serveCmd.Flags().BoolVar(&serveRecord, "record", false, "Save every batch to the history database")
	serveCmd.Flags().BoolVar(&serveEnableCORS, "enable-cors", true, "Enable CORS for web access")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("record") {
		cfg.History.Enabled = serveRecord
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cmd.SilenceUsage = true

	var db *database.DB
	if cfg.History.Enabled {
		err = ui.ShowSpinner("Opening history database", func() error {
			var openErr error
			db, openErr = database.Initialize(cfg.History.Path)
			return openErr
		})
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
		printInfo("History: %s", db.Path())
	}

	m := metrics.New()
	resolve := service.NewResolveService(service.Options{
		Config:  cfg,
		Metrics: m,
		History: db,
	})
	server := api.NewServer(&api.Config{
		Addr:       cfg.Addr(),
		EnableCORS: serveEnableCORS,
	}, resolve, service.NewHistoryService(db), m)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErr := make(chan error, 1)
	go func() {
		printInfo("GEO: %s", cfg.Endpoints.GEO)
		printInfo("ENA: %s", cfg.Endpoints.ENA)
		printInfo("Launch interval: %v", cfg.Interval())
		if serveEnableCORS {
			printInfo("CORS enabled for web access")
		}
		printSuccess("Server ready at http://%s", server.Addr())

		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-sigChan:
		printInfo("Shutting down server...")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	printSuccess("Server stopped gracefully")
	return nil
}
