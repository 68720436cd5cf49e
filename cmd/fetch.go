package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/demand-cli/internal/config"
	"github.com/sells-group/demand-cli/internal/geometry"
	"github.com/sells-group/demand-cli/internal/osm"
	"github.com/sells-group/demand-cli/internal/overpass"
	"github.com/sells-group/demand-cli/internal/pipeline"
	"github.com/sells-group/demand-cli/internal/resilience"
)

// featureSource supplies raw features for a bounding box.
type featureSource interface {
	Buildings(ctx context.Context, bbox geometry.BBox) ([]osm.Element, error)
	Places(ctx context.Context, bbox geometry.BBox) ([]osm.Element, error)
	Roads(ctx context.Context, bbox geometry.BBox, locale string) (*geojson.FeatureCollection, error)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download raw buildings, places and roads for configured regions",
	Long:  "Queries Overpass for each region's bounding box and writes buildings.json, places.json and roads.geojson to raw/<code>/.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		codes, _ := cmd.Flags().GetStringSlice("region")
		regions, err := cfg.SelectRegions(codes)
		if err != nil {
			return err
		}

		client := overpass.New(overpassConfig(cfg.Overpass))

		var failed int
		for _, r := range regions {
			if err := fetchRegion(ctx, client, r, cfg.Paths.RawDir, cfg.Locale); err != nil {
				if ctx.Err() != nil {
					return err
				}
				zap.L().Error("fetch: region failed", zap.String("region", r.Code), zap.Error(err))
				failed++
			}
		}
		if failed > 0 {
			return eris.Errorf("fetch: %d of %d regions failed", failed, len(regions))
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringSlice("region", nil, "region codes to fetch (default all configured)")
	rootCmd.AddCommand(fetchCmd)
}

func overpassConfig(c config.OverpassConfig) overpass.Config {
	backoff := resilience.DefaultBackoff()
	if c.MaxAttempts > 0 {
		backoff.MaxAttempts = c.MaxAttempts
	}
	var breaker *resilience.Breaker
	if c.BreakerThreshold > 0 {
		breaker = resilience.NewBreaker(c.BreakerThreshold, time.Duration(c.BreakerCooldownSecs)*time.Second)
	}
	return overpass.Config{
		Endpoint:    c.Endpoint,
		Timeout:     time.Duration(c.TimeoutSecs) * time.Second,
		MaxParallel: c.MaxParallel,
		MinInterval: time.Duration(c.MinIntervalMs) * time.Millisecond,
		Backoff:     backoff,
		Breaker:     breaker,
	}
}

// fetchRegion writes one region's raw files. Files are written only after all
// three downloads succeed, so a failed fetch leaves earlier data in place.
func fetchRegion(ctx context.Context, src featureSource, r config.RegionConfig, rawDir, locale string) error {
	log := zap.L().With(zap.String("component", "fetch"), zap.String("region", r.Code))
	bbox := r.Bounds()
	start := time.Now()

	buildings, err := src.Buildings(ctx, bbox)
	if err != nil {
		return eris.Wrapf(err, "fetch: buildings for %s", r.Code)
	}
	places, err := src.Places(ctx, bbox)
	if err != nil {
		return eris.Wrapf(err, "fetch: places for %s", r.Code)
	}
	roads, err := src.Roads(ctx, bbox, locale)
	if err != nil {
		return eris.Wrapf(err, "fetch: roads for %s", r.Code)
	}

	dir := filepath.Join(rawDir, r.Code)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "fetch: create %s", dir)
	}
	if err := osm.WriteElements(filepath.Join(dir, pipeline.BuildingsFile), buildings); err != nil {
		return err
	}
	if err := osm.WriteElements(filepath.Join(dir, pipeline.PlacesFile), places); err != nil {
		return err
	}
	data, err := json.Marshal(roads)
	if err != nil {
		return eris.Wrap(err, "fetch: marshal roads")
	}
	if err := os.WriteFile(filepath.Join(dir, pipeline.RoadsFile), data, 0o644); err != nil {
		return eris.Wrapf(err, "fetch: write roads for %s", r.Code)
	}

	log.Info("fetch: region complete",
		zap.Int("buildings", len(buildings)),
		zap.Int("places", len(places)),
		zap.Int("roads", len(roads.Features)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
