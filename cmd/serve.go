package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vetbridge/provider-cli/internal/provider"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the merged dataset for local preview",
	Long:  "Read-only HTTP preview of a merged provider dataset, for checking pipeline output before it ships to the directory view. Loads the file once at startup.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		dataPath, _ := cmd.Flags().GetString("data")
		port, _ := cmd.Flags().GetInt("port")
		if dataPath == "" {
			dataPath = cfg.Data.FinalFile
		}
		if port == 0 {
			port = cfg.Server.Port
		}

		providers, err := provider.Load(dataPath)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: previewRouter(providers),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down preview server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting preview server",
			zap.Int("port", port),
			zap.String("data", dataPath),
			zap.Int("records", len(providers)),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "serve: listen")
		}

		return nil
	},
}

func previewRouter(providers []provider.Provider) http.Handler {
	byID := make(map[string]provider.Provider, len(providers))
	for _, p := range providers {
		byID[p.ID] = p
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/providers", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, providers)
	})

	r.Get("/providers/{id}", func(w http.ResponseWriter, req *http.Request) {
		p, ok := byID[chi.URLParam(req, "id")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "provider not found"})
			return
		}
		writeJSON(w, http.StatusOK, p)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().String("data", "", "merged dataset path (defaults to data.final_file)")
	serveCmd.Flags().Int("port", 0, "listen port (defaults to server.port)")
	rootCmd.AddCommand(serveCmd)
}
