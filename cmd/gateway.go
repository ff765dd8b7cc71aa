package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/amberlynx/amberlynx/internal/config"
	"github.com/amberlynx/amberlynx/internal/dependency"
)

var (
	gatewayPort    int
	gatewayVerbose bool
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the amberlynx gateway server",
	RunE:  runGateway,
}

func init() {
	gatewayCmd.Flags().IntVarP(&gatewayPort, "port", "p", 0, "Health endpoint port (overrides config)")
	gatewayCmd.Flags().BoolVarP(&gatewayVerbose, "verbose", "v", false, "Verbose logging")
}

func runGateway(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if gatewayVerbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	container, err := dependency.New(cfg, dependency.Options{})
	if err != nil {
		return err
	}

	port := cfg.Gateway.Port
	if gatewayPort != 0 {
		port = gatewayPort
	}
	fmt.Printf("%s Starting amberlynx gateway on port %d...\n", logo, port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return ignoreCanceled(container.Service().Run(gctx)) })
	g.Go(func() error { return ignoreCanceled(container.Reminders().Start(gctx)) })
	g.Go(func() error { return ignoreCanceled(container.ChannelManager().StartAll(gctx)) })
	g.Go(func() error { return runHealthServer(gctx, port, container) })

	fmt.Printf("%s Gateway running. Press Ctrl+C to stop.\n", logo)

	err = g.Wait()

	// Let in-flight jobs and compaction passes finish before exiting.
	container.Dispatcher().Close()
	container.Compactor().Wait()

	if err != nil {
		fmt.Fprintf(os.Stderr, "gateway error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}

func runHealthServer(ctx context.Context, port int, container *dependency.Container) error {
	mux := http.NewServeMux()
	health := func(w http.ResponseWriter, _ *http.Request) {
		failed := len(container.Dispatcher().FailedJobs())
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","failedJobs":%d}`+"\n", failed)
	}
	mux.HandleFunc("/", health)
	mux.HandleFunc("/health", health)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
