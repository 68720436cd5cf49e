package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/demand-cli/internal/config"
	"github.com/sells-group/demand-cli/internal/model"
	"github.com/sells-group/demand-cli/internal/pipeline"
	"github.com/sells-group/demand-cli/internal/store"
)

var servePort int

// artifactTypes lists the files served per region and their content types.
var artifactTypes = map[string]string{
	pipeline.IndexFile:       "application/json",
	pipeline.DemandFile:      "application/json",
	pipeline.RoadsFile:       "application/geo+json",
	pipeline.TerritoriesFile: "application/geo+json",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve processed region artifacts over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initOptionalStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(cfg, st),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
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

// regionSummary is one entry of GET /regions.
type regionSummary struct {
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	BBox        [4]float64 `json:"bbox"`
	Population  int        `json:"population,omitempty"`
	Artifacts   []string   `json:"artifacts"`
}

// buildRouter wires the read-only artifact API. st may be nil, in which case
// the run endpoints report the ledger as unavailable.
func buildRouter(c *config.Config, st store.Store) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: c.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/regions", func(rr chi.Router) {
		rr.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			out := make([]regionSummary, 0, len(c.Regions))
			for _, reg := range c.Regions {
				out = append(out, regionSummary{
					Code:        reg.Code,
					Name:        reg.Name,
					Description: reg.Description,
					BBox:        reg.BBox,
					Population:  reg.Population,
					Artifacts:   availableArtifacts(c.Paths.ProcessedDir, reg.Code),
				})
			}
			writeJSON(w, http.StatusOK, out)
		})

		rr.Get("/{code}/{artifact}", func(w http.ResponseWriter, req *http.Request) {
			code := chi.URLParam(req, "code")
			name := chi.URLParam(req, "artifact")
			if _, err := c.Region(code); err != nil {
				writeError(w, http.StatusNotFound, "unknown region")
				return
			}
			contentType, ok := artifactTypes[name]
			if !ok {
				writeError(w, http.StatusNotFound, "unknown artifact")
				return
			}
			serveArtifact(w, req, filepath.Join(c.Paths.ProcessedDir, code, name), contentType)
		})
	})

	r.Route("/runs", func(rr chi.Router) {
		rr.Get("/", func(w http.ResponseWriter, req *http.Request) {
			if st == nil {
				writeError(w, http.StatusServiceUnavailable, "run ledger not configured")
				return
			}
			q := req.URL.Query()
			limit, _ := strconv.Atoi(q.Get("limit"))
			runs, err := st.ListRuns(req.Context(), store.RunFilter{
				Status: model.RunStatus(q.Get("status")),
				Region: q.Get("region"),
				Limit:  limit,
			})
			if err != nil {
				zap.L().Error("serve: list runs", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "list runs failed")
				return
			}
			if runs == nil {
				runs = []model.Run{}
			}
			writeJSON(w, http.StatusOK, runs)
		})

		rr.Get("/{id}/territories", func(w http.ResponseWriter, req *http.Request) {
			if st == nil {
				writeError(w, http.StatusServiceUnavailable, "run ledger not configured")
				return
			}
			id := chi.URLParam(req, "id")
			if _, err := st.GetRun(req.Context(), id); err != nil {
				writeError(w, http.StatusNotFound, "run not found")
				return
			}
			recs, err := st.ListTerritories(req.Context(), id)
			if err != nil {
				zap.L().Error("serve: list territories", zap.String("run_id", id), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "list territories failed")
				return
			}
			if recs == nil {
				recs = []store.TerritoryRecord{}
			}
			writeJSON(w, http.StatusOK, recs)
		})
	})

	return r
}

func availableArtifacts(processedDir, code string) []string {
	out := []string{}
	for _, name := range []string{pipeline.IndexFile, pipeline.DemandFile, pipeline.RoadsFile, pipeline.TerritoriesFile} {
		if _, err := os.Stat(filepath.Join(processedDir, code, name)); err == nil {
			out = append(out, name)
		}
	}
	return out
}

func serveArtifact(w http.ResponseWriter, req *http.Request, path, contentType string) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "artifact not built")
			return
		}
		zap.L().Error("serve: open artifact", zap.String("path", path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "open artifact failed")
		return
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stat artifact failed")
		return
	}
	w.Header().Set("Content-Type", contentType)
	http.ServeContent(w, req, filepath.Base(path), info.ModTime(), f)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
