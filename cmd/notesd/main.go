package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Makepad-fr/notes/internal/config"
	"github.com/Makepad-fr/notes/internal/gateway"
	"github.com/Makepad-fr/notes/internal/gateway/memory"
	"github.com/Makepad-fr/notes/internal/gateway/sqlite"
	"github.com/Makepad-fr/notes/internal/logger"
	"github.com/Makepad-fr/notes/internal/server"
	"github.com/Makepad-fr/notes/internal/telemetry"
)

const serviceName = "notesd"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr, storeKind, dbPath string
	var dev bool
	cmd := &cobra.Command{
		Use:          "notesd",
		Short:        "Serve a shared note list over HTTP with websocket change feeds",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}
			if storeKind != "" {
				cfg.Store = storeKind
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return mainInner(cfg, dev)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "the address to listen on (overrides NOTES_LISTEN_ADDR)")
	cmd.Flags().StringVar(&storeKind, "store", "", "memory or sqlite (overrides NOTES_STORE)")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database path (overrides NOTES_DB_PATH)")
	cmd.Flags().BoolVar(&dev, "dev", false, "console logging instead of JSON")
	return cmd
}

func mainInner(cfg *config.Config, dev bool) error {
	newLogger := logger.NewProductionLogger
	if dev {
		newLogger = logger.NewDevelopmentLogger
	}
	log, err := newLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync(log) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error("store_close_failed", zap.Error(err))
		}
	}()

	opts := []server.Option{server.WithLogger(log), server.WithAllowedOrigins(cfg.AllowedOrigins...)}
	if rate, ok, err := cfg.Rate(); err != nil {
		return err
	} else if ok {
		opts = append(opts, server.WithRateLimit(rate))
	}
	if cfg.OTLPEndpoint != "" {
		tp, err := telemetry.InitTracer(ctx, serviceName, cfg.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
				log.Warn("tracer_shutdown_failed", zap.Error(err))
			}
		}()
		opts = append(opts, server.WithTracing(serviceName))
	}
	if cfg.ServerToken != "" {
		opts = append(opts, server.WithToken(cfg.ServerToken))
	} else {
		log.Warn("auth_disabled", zap.String("hint", "set NOTES_SERVER_TOKEN to require a bearer token"))
	}
	s := server.New(gw, opts...)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpServer.RegisterOnShutdown(s.Close)

	wg := new(sync.WaitGroup)
	listenErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("listening", zap.String("addr", cfg.ListenAddr), zap.String("store", cfg.Store))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(exit)
	select {
	case sig := <-exit:
		log.Info("signal_caught", zap.String("signal", sig.String()))
	case err := <-listenErr:
		wg.Wait()
		return fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()
	httpServer.SetKeepAlivesEnabled(false)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown_incomplete", zap.Error(err))
		_ = httpServer.Close()
	}
	// shutdown hooks run asynchronously; make sure feeds are gone
	s.Close()
	wg.Wait()
	log.Info("stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (gateway.Gateway, func() error, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		log.Info("opening_database", zap.String("path", cfg.DBPath))
		st, err := sqlite.Open(ctx, cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		return st, st.Close, nil
	default:
		hub := memory.NewHub()
		return hub, hub.Close, nil
	}
}
