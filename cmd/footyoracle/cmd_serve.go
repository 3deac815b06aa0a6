package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/footyoracle/footyoracle/internal/agent"
	"github.com/footyoracle/footyoracle/internal/api"
)

var serveWithAgent bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the prediction HTTP API",
	Long: `Serve the prediction API: on-demand predictions, recorded history,
accuracy statistics, upcoming fixtures and Prometheus metrics.

Example usage:
  footyoracle serve                    # API only
  footyoracle serve --with-agent       # API plus the autonomous agent`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveWithAgent, "with-agent", false, "Run the prediction agent alongside the API")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var wg sync.WaitGroup
	if serveWithAgent {
		controller := agent.New(a.cfg, a.fetcher, a.engine, a.recorder, a.metrics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			controller.Run(ctx)
		}()
	}

	server := api.New(a.cfg, a.store, a.fetcher, a.engine, a.metrics)
	err = server.ListenAndServe(ctx)
	wg.Wait()
	return err
}
