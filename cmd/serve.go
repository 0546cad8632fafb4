package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/labeler/internal/handlers"
	"github.com/lehigh-university-libraries/labeler/internal/journal"
	"github.com/lehigh-university-libraries/labeler/internal/queue"
	"github.com/lehigh-university-libraries/labeler/internal/records"
	"github.com/lehigh-university-libraries/labeler/internal/storage"
	"github.com/lehigh-university-libraries/labeler/internal/workflow"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the review API server",
		Long: `Starts the Labeler JSON API on the configured port.

The API opens review sessions for queued crops, accepts metadata and
pick-point edits, and commits them to the record store and labeling queue.`,
		Example: `  # Start server on default port 8888
  labeler serve

  # Start server on custom port against a remote backend
  LABELER_API_URL=https://labeling.example.com labeler serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if port != "" {
				cfg.Server.Port = port
			}

			queueClient := queue.NewClient(cfg)
			recordsClient := records.NewClient(cfg)

			var j workflow.Journal
			if cfg.Journal.Path != "" {
				store, err := journal.Open(cmd.Context(), cfg.Journal.Path)
				if err != nil {
					return err
				}
				defer store.Close()
				j = store
				slog.Info("Commit journal enabled", "path", cfg.Journal.Path)
			}

			coordinator := workflow.New(queueClient, queueClient, recordsClient, j)
			handler := handlers.New(storage.New(), coordinator, queueClient)

			// Set up routes
			mux := http.NewServeMux()
			handler.Register(mux)
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + cfg.Server.Port
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Labeler API available",
					"addr", addr,
					"url", "http://localhost"+addr,
					"api_url", cfg.API.URL,
					"records_url", cfg.API.RecordsURL)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give in-flight commits 5 seconds to finish
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
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (default from LABELER_PORT or 8888)")

	return cmd
}
