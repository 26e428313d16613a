package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/serp-scraper/internal/export"
	"github.com/sells-group/serp-scraper/internal/job"
	"github.com/sells-group/serp-scraper/internal/model"
	"github.com/sells-group/serp-scraper/internal/session"
)

const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for scrape jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		host, err := initHost(cfg, "serve")
		if err != nil {
			return err
		}
		sess := session.New(host)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(context.WithoutCancel(ctx), sess, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			sess.Stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return eris.Wrap(err, "server shutdown")
			}
			_ = sess.Wait(shutdownCtx)
			return nil
		})

		return g.Wait()
	},
}

// startRequest is the POST /jobs body.
type startRequest struct {
	Keywords    int    `json:"keywords"`
	Results     int    `json:"results"`
	Description string `json:"description"`
}

// buildRouter wires the job API over sess. Jobs run under jobCtx rather than
// the request context, which ends once the 202 is written.
func buildRouter(jobCtx context.Context, sess *session.Session, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			var body startRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}

			id, err := sess.Start(jobCtx, model.ScrapeRequest{
				KeywordCount:      body.Keywords,
				ResultsPerKeyword: body.Results,
				Description:       body.Description,
			})
			switch {
			case eris.Is(err, job.ErrAlreadyRunning):
				writeError(w, http.StatusConflict, "a scrape is already running")
				return
			case err != nil:
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}

			writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
		})

		r.Get("/current", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, sess.Snapshot())
		})

		r.Delete("/current", func(w http.ResponseWriter, _ *http.Request) {
			sess.Stop()
			w.WriteHeader(http.StatusNoContent)
		})
	})

	r.Get("/results", func(w http.ResponseWriter, _ *http.Request) {
		rows := sess.Rows()
		if rows == nil {
			rows = []model.ResultRow{}
		}
		writeJSON(w, http.StatusOK, rows)
	})

	r.Get("/results.csv", func(w http.ResponseWriter, req *http.Request) {
		rows, ok := selectedRows(w, req, sess.Rows())
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="results.csv"`)
		if err := export.WriteCSV(w, rows); err != nil {
			zap.L().Error("serve: write csv", zap.Error(err))
		}
	})

	r.Get("/results.xlsx", func(w http.ResponseWriter, req *http.Request) {
		rows, ok := selectedRows(w, req, sess.Rows())
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="results.xlsx"`)
		if err := export.WriteXLSX(w, rows); err != nil {
			zap.L().Error("serve: write xlsx", zap.Error(err))
		}
	})

	r.Get("/results/urls", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, export.URLList(sess.Rows()))
	})

	return r
}

// selectedRows applies the optional ?rows=0,2 subset. It writes a 400 and
// returns false on a bad selection.
func selectedRows(w http.ResponseWriter, req *http.Request, rows []model.ResultRow) ([]model.ResultRow, bool) {
	if !req.URL.Query().Has("rows") {
		return rows, true
	}
	sel, err := parseSelection(req.URL.Query().Get("rows"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	out, err := export.Select(rows, sel)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return out, true
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("serve: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("serve: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
