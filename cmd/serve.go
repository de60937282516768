package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crestline-hoa/invoice-cli/internal/model"
	"github.com/crestline-hoa/invoice-cli/internal/pipeline"
	"github.com/crestline-hoa/invoice-cli/internal/store"
)

var servePort int

const shutdownGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the invoice processing HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env, cfg.Server.AllowedOrigins),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			if err := drainServer(srv); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// drainServer gives in-flight requests a grace period to finish. The signal
// context is already canceled by the time shutdown starts, so the drain
// needs its own deadline.
func drainServer(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(ctx)
}

// newRouter builds the HTTP API. Processing is synchronous: the response
// carries the structured invoice or the typed error.
func newRouter(env *pipelineEnv, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		status := "ok"
		code := http.StatusOK
		if err := env.Store.Ping(req.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]string{"status": status})
	})

	r.Post("/api/invoices/process", func(w http.ResponseWriter, req *http.Request) {
		var body pipeline.Request
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}

		invoice, err := env.Pipeline.Run(req.Context(), body)
		if err != nil {
			code := http.StatusInternalServerError
			if model.KindOf(err) == model.ErrKindValidation {
				code = http.StatusBadRequest
			}
			writeError(w, code, string(model.KindOf(err)), err)
			return
		}

		writeJSON(w, http.StatusOK, invoice)
	})

	r.Get("/api/queue", func(w http.ResponseWriter, req *http.Request) {
		filter := store.QueueFilter{
			Status:        model.QueueStatus(req.URL.Query().Get("status")),
			AssociationID: req.URL.Query().Get("association_id"),
			Limit:         queryInt(req, "limit", 50),
			Offset:        queryInt(req, "offset", 0),
		}
		entries, err := env.Store.ListQueueEntries(req.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list queue", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	})

	r.Get("/api/queue/{id}", func(w http.ResponseWriter, req *http.Request) {
		entry, err := env.Store.GetQueueEntry(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "queue entry not found", err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	})

	r.Get("/api/results/{id}", func(w http.ResponseWriter, req *http.Request) {
		result, err := env.Store.GetResult(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "result not found", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	r.Get("/api/results", func(w http.ResponseWriter, req *http.Request) {
		associationID := req.URL.Query().Get("association_id")
		if associationID == "" {
			writeError(w, http.StatusBadRequest, "association_id is required", nil)
			return
		}
		results, err := env.Store.ListResults(req.Context(), associationID, queryInt(req, "limit", 50))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list results", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string, err error) {
	body := map[string]string{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	writeJSON(w, code, body)
}

func queryInt(req *http.Request, key string, fallback int) int {
	v := req.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
