package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/demand-cli/internal/export"
	"github.com/sells-group/demand-cli/internal/geometry"
	"github.com/sells-group/demand-cli/internal/model"
	"github.com/sells-group/demand-cli/internal/osm"
)

// File names under raw/<code>/ and processed/<code>/.
const (
	BuildingsFile   = "buildings.json"
	PlacesFile      = "places.json"
	RoadsFile       = "roads.geojson"
	IndexFile       = "buildings_index.json"
	DemandFile      = "demand_data.json"
	FootprintsFile  = "footprints.shp"
	TerritoriesFile = "territories.geojson"
)

// Recorder receives the ledger entries of each region run.
type Recorder interface {
	CreateRun(ctx context.Context, region string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, stats *model.RegionStats) error
	FailRun(ctx context.Context, runID string, msg string) error
	SaveTerritories(ctx context.Context, runID string, territories []*model.Territory) error
}

// Region names one region to process.
type Region struct {
	Code string
	BBox geometry.BBox
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	RawDir            string
	ProcessedDir      string
	MaxConcurrent     int
	Options           Options
	ExportShapefile   bool
	ExportTerritories bool
}

// Outcome is the result of one region run.
type Outcome struct {
	Code  string
	RunID string
	Stats *model.RegionStats
	Err   error
}

// Runner processes regions from raw files to artifact directories.
type Runner struct {
	cfg RunnerConfig
	rec Recorder
	log *zap.Logger
}

// NewRunner creates a Runner. rec may be nil to skip the ledger.
func NewRunner(cfg RunnerConfig, rec Recorder) *Runner {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &Runner{
		cfg: cfg,
		rec: rec,
		log: zap.L().With(zap.String("component", "pipeline")),
	}
}

// Run processes regions concurrently. A failing region does not stop the
// others; the returned error reports how many failed. Outcomes are in input
// order.
func (r *Runner) Run(ctx context.Context, regions []Region) ([]Outcome, error) {
	outcomes := make([]Outcome, len(regions))

	var (
		mu     sync.Mutex
		failed int
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrent)

	for i, region := range regions {
		g.Go(func() error {
			outcomes[i] = r.runRegion(gCtx, region)
			if outcomes[i].Err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()

	if failed > 0 {
		return outcomes, eris.Errorf("pipeline: %d of %d regions failed", failed, len(regions))
	}
	return outcomes, nil
}

func (r *Runner) runRegion(ctx context.Context, region Region) Outcome {
	log := r.log.With(zap.String("region", region.Code))
	out := Outcome{Code: region.Code}

	if err := ctx.Err(); err != nil {
		out.Err = eris.Wrapf(err, "pipeline: region %s", region.Code)
		return out
	}

	if r.rec != nil {
		run, err := r.rec.CreateRun(ctx, region.Code)
		if err != nil {
			log.Warn("pipeline: ledger unavailable, continuing without it", zap.Error(err))
		} else {
			out.RunID = run.ID
		}
	}

	start := time.Now()
	res, err := r.processRegion(ctx, region)
	if err != nil {
		out.Err = err
		log.Error("pipeline: region failed", zap.Error(err))
		if out.RunID != "" {
			if ferr := r.rec.FailRun(context.WithoutCancel(ctx), out.RunID, err.Error()); ferr != nil {
				log.Warn("pipeline: record failure", zap.Error(ferr))
			}
		}
		return out
	}

	out.Stats = &res.Stats
	log.Info("pipeline: region complete",
		zap.Int("buildings", res.Stats.Buildings),
		zap.Int("dropped", res.Stats.DroppedBuildings),
		zap.Int("cells", res.Stats.Cells),
		zap.Int("territories", res.Stats.Territories),
		zap.Int("unavailable_anchors", res.Stats.UnavailableAnchors),
		zap.Int("edges", res.Stats.Edges),
		zap.Int("population", res.Stats.Population),
		zap.Int("jobs", res.Stats.Jobs),
		zap.Duration("elapsed", time.Since(start)),
	)

	if out.RunID != "" {
		if err := r.rec.SaveTerritories(ctx, out.RunID, res.Partition.Territories); err != nil {
			log.Warn("pipeline: save territories", zap.Error(err))
		}
		if err := r.rec.CompleteRun(ctx, out.RunID, out.Stats); err != nil {
			log.Warn("pipeline: record completion", zap.Error(err))
		}
	}
	return out
}

func (r *Runner) processRegion(ctx context.Context, region Region) (*Result, error) {
	rawDir := filepath.Join(r.cfg.RawDir, region.Code)

	buildings, err := osm.ReadElements(ctx, filepath.Join(rawDir, BuildingsFile))
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load buildings for %s", region.Code)
	}
	places, err := osm.ReadElements(ctx, filepath.Join(rawDir, PlacesFile))
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load places for %s", region.Code)
	}

	res := ProcessRegion(Input{
		Code:      region.Code,
		BBox:      region.BBox,
		Buildings: buildings,
		Places:    places,
	}, r.cfg.Options)

	outDir := filepath.Join(r.cfg.ProcessedDir, region.Code)
	if err := os.RemoveAll(outDir); err != nil {
		return nil, eris.Wrapf(err, "pipeline: clear %s", outDir)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "pipeline: create %s", outDir)
	}

	if err := writeJSON(filepath.Join(outDir, IndexFile), res.Index.Artifact()); err != nil {
		return nil, err
	}
	if err := writeJSON(filepath.Join(outDir, DemandFile), res.Graph.Artifact()); err != nil {
		return nil, err
	}

	err = copyFile(filepath.Join(rawDir, RoadsFile), filepath.Join(outDir, RoadsFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		r.log.Warn("pipeline: no road data, skipping copy", zap.String("region", region.Code))
	case err != nil:
		return nil, err
	}

	if r.cfg.ExportShapefile {
		if err := export.WriteFootprints(filepath.Join(outDir, FootprintsFile), res.Buildings); err != nil {
			return nil, err
		}
	}
	if r.cfg.ExportTerritories {
		if err := export.WriteTerritories(filepath.Join(outDir, TerritoriesFile), res.Partition.Territories); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "pipeline: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := bufio.NewWriter(f)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return eris.Wrapf(err, "pipeline: encode %s", path)
	}
	if err := w.Flush(); err != nil {
		return eris.Wrapf(err, "pipeline: flush %s", path)
	}
	return f.Close()
}

// copyFile copies src to dst. A missing src is reported as fs.ErrNotExist.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return eris.Wrapf(err, "pipeline: open %s", src)
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return eris.Wrapf(err, "pipeline: create %s", dst)
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, in); err != nil {
		return eris.Wrapf(err, "pipeline: copy %s", src)
	}
	return out.Close()
}
