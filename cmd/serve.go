package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/bean-lens/beanlens/internal/handlers"
	"github.com/bean-lens/beanlens/internal/metrics"
	"github.com/bean-lens/beanlens/internal/normalizer"
	"github.com/bean-lens/beanlens/internal/queue"
	"github.com/bean-lens/beanlens/internal/storage"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	var token string
	var databaseURL string
	var queuePath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the unknown queue receiver and normalization API",
		Long: `Starts an HTTP server that receives unknown queue events from remote
normalizers and normalizes bean records on request.

Endpoints:
  POST /unknown-queue          store one event (token protected when configured)
  GET  /unknown-queue/recent   most recently received events, ?limit=1..500
  GET  /unknown-queue/events/  one received event by id
  POST /normalize              normalize one bean record, ?version=
  GET  /health                 liveness
  GET  /metrics                prometheus metrics

Received events are appended to the PostgreSQL table when --database-url is set,
and to the local queue file otherwise.`,
		Example: `  # Receiver on the default port writing to the local queue file
  beanlens serve

  # Token protected receiver backed by PostgreSQL
  beanlens serve --addr :9000 --token "$UNKNOWN_QUEUE_RECEIVER_TOKEN" --database-url "$DATABASE_URL"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.Receiver.Addr
			}
			if !cmd.Flags().Changed("token") {
				token = a.cfg.Receiver.Token
			}
			if !cmd.Flags().Changed("database-url") {
				databaseURL = a.cfg.Receiver.DatabaseURL
			}
			if cmd.Flags().Changed("queue-path") {
				a.cfg.Queue.Path = queuePath
			}
			return runServer(cmd.Context(), a, addr, token, databaseURL)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (defaults to receiver.addr, :8100)")
	cmd.Flags().StringVar(&token, "token", "", "Webhook token required from senders")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL for received events")
	cmd.Flags().StringVar(&queuePath, "queue-path", "", "Local queue file when no database is configured")

	return cmd
}

func runServer(ctx context.Context, a *app, addr, token, databaseURL string) error {
	rec := metrics.New()

	var sink queue.Sink
	if databaseURL != "" {
		pool, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		store := queue.NewPostgresStore(pool, queue.DefaultTable)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sink = store
		slog.Info("Storing received events in PostgreSQL", "table", queue.DefaultTable)
	} else {
		if a.cfg.Queue.Path == "" {
			return errors.New("a queue path or database URL is required")
		}
		sink = queue.NewFileSink(a.cfg.Queue.Path)
		slog.Info("Storing received events in queue file", "path", a.cfg.Queue.Path)
	}

	catalog, err := a.catalog()
	if err != nil {
		return err
	}
	if _, err := catalog.Get(a.cfg.DictionaryVersion); err != nil {
		return err
	}
	// Misses from /normalize share the receiver's sink.
	service := normalizer.NewService(catalog, a.cfg.MatcherConfig(), a.cfg.NormalizerConfig(), a.emitter(sink, rec), rec)

	handler := handlers.New(handlers.Options{
		Sink:           sink,
		Store:          storage.New(a.cfg.Receiver.RecentCapacity),
		Token:          token,
		Recorder:       rec,
		Service:        service,
		DefaultVersion: a.cfg.DictionaryVersion,
	})
	if token == "" {
		slog.Warn("Receiver accepts events without a token")
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Beanlens receiver available", "addr", addr, "dictionary_version", a.cfg.DictionaryVersion, "versions", catalog.Versions())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for context cancellation (Ctrl+C) or server error
	select {
	case <-ctx.Done():
		slog.Info("Shutting down server...")
		// Give server 5 seconds to shut down gracefully
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "err", err)
			return err
		}
		slog.Info("Server stopped")
		return nil
	case err := <-serverErr:
		return err
	}
}
