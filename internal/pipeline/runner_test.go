package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/demand-cli/internal/model"
	"github.com/sells-group/demand-cli/internal/osm"
)

type fakeRecorder struct {
	mu          sync.Mutex
	created     []string
	completed   map[string]*model.RegionStats
	failed      map[string]string
	territories map[string]int
	createErr   error
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		completed:   make(map[string]*model.RegionStats),
		failed:      make(map[string]string),
		territories: make(map[string]int),
	}
}

func (f *fakeRecorder) CreateRun(_ context.Context, region string) (*model.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, region)
	return &model.Run{ID: region + "-" + uuid.NewString(), Region: region, Status: model.RunStatusRunning}, nil
}

func (f *fakeRecorder) CompleteRun(_ context.Context, runID string, stats *model.RegionStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[runID] = stats
	return nil
}

func (f *fakeRecorder) FailRun(_ context.Context, runID string, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[runID] = msg
	return nil
}

func (f *fakeRecorder) SaveTerritories(_ context.Context, runID string, territories []*model.Territory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.territories[runID] = len(territories)
	return nil
}

// writeRaw lays out raw/<code>/ with two buildings and one anchor.
func writeRaw(t *testing.T, rawDir, code string, withRoads bool) {
	t.Helper()
	dir := filepath.Join(rawDir, code)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, osm.WriteElements(filepath.Join(dir, BuildingsFile), []osm.Element{
		squareElement(1, "apartments", 0, 0, 7),
		squareElement(2, "office", 40, 20, 7),
	}))
	require.NoError(t, osm.WriteElements(filepath.Join(dir, PlacesFile), []osm.Element{
		placeNode(100, "Centre", 20, 10),
	}))
	if withRoads {
		require.NoError(t, os.WriteFile(filepath.Join(dir, RoadsFile), []byte(`{"type":"FeatureCollection","features":[]}`), 0o644))
	}
}

func testRunnerConfig(t *testing.T) RunnerConfig {
	t.Helper()
	root := t.TempDir()
	return RunnerConfig{
		RawDir:        filepath.Join(root, "raw"),
		ProcessedDir:  filepath.Join(root, "processed"),
		MaxConcurrent: 2,
		Options:       defaultOptions(),
	}
}

func readJSON(t *testing.T, path string) map[string]json.RawMessage {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestRunner_WritesArtifacts(t *testing.T) {
	cfg := testRunnerConfig(t)
	writeRaw(t, cfg.RawDir, "tor", true)

	outcomes, err := NewRunner(cfg, nil).Run(context.Background(), []Region{{Code: "tor"}})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, 2, outcomes[0].Stats.Population)
	assert.Equal(t, 3, outcomes[0].Stats.Jobs)

	outDir := filepath.Join(cfg.ProcessedDir, "tor")
	index := readJSON(t, filepath.Join(outDir, IndexFile))
	assert.Contains(t, index, "cells")
	assert.Contains(t, index, "buildings")

	graph := readJSON(t, filepath.Join(outDir, DemandFile))
	var pops []map[string]any
	require.NoError(t, json.Unmarshal(graph["pops"], &pops))
	require.Len(t, pops, 1)
	assert.InDelta(t, 2, pops[0]["size"], 0)

	roads, err := os.ReadFile(filepath.Join(outDir, RoadsFile))
	require.NoError(t, err)
	assert.Contains(t, string(roads), "FeatureCollection")

	assert.NoFileExists(t, filepath.Join(outDir, FootprintsFile))
	assert.NoFileExists(t, filepath.Join(outDir, TerritoriesFile))
}

func TestRunner_MissingRoadsIsNotFatal(t *testing.T) {
	cfg := testRunnerConfig(t)
	writeRaw(t, cfg.RawDir, "tor", false)

	outcomes, err := NewRunner(cfg, nil).Run(context.Background(), []Region{{Code: "tor"}})
	require.NoError(t, err)
	require.NoError(t, outcomes[0].Err)
	assert.FileExists(t, filepath.Join(cfg.ProcessedDir, "tor", DemandFile))
	assert.NoFileExists(t, filepath.Join(cfg.ProcessedDir, "tor", RoadsFile))
}

func TestRunner_RecreatesOutputDir(t *testing.T) {
	cfg := testRunnerConfig(t)
	writeRaw(t, cfg.RawDir, "tor", false)
	stale := filepath.Join(cfg.ProcessedDir, "tor", "stale.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("{}"), 0o644))

	_, err := NewRunner(cfg, nil).Run(context.Background(), []Region{{Code: "tor"}})
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
}

func TestRunner_OptionalExports(t *testing.T) {
	cfg := testRunnerConfig(t)
	cfg.ExportShapefile = true
	cfg.ExportTerritories = true
	writeRaw(t, cfg.RawDir, "tor", false)

	_, err := NewRunner(cfg, nil).Run(context.Background(), []Region{{Code: "tor"}})
	require.NoError(t, err)

	outDir := filepath.Join(cfg.ProcessedDir, "tor")
	assert.FileExists(t, filepath.Join(outDir, FootprintsFile))
	assert.FileExists(t, filepath.Join(outDir, "footprints.dbf"))
	terr := readJSON(t, filepath.Join(outDir, TerritoriesFile))
	assert.Contains(t, terr, "features")
}

func TestRunner_FailedRegionDoesNotStopOthers(t *testing.T) {
	cfg := testRunnerConfig(t)
	writeRaw(t, cfg.RawDir, "tor", false)
	writeRaw(t, cfg.RawDir, "mtl", false)
	rec := newFakeRecorder()

	regions := []Region{{Code: "tor"}, {Code: "missing"}, {Code: "mtl"}}
	outcomes, err := NewRunner(cfg, rec).Run(context.Background(), regions)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 regions failed")

	require.Len(t, outcomes, 3)
	assert.Equal(t, "tor", outcomes[0].Code)
	assert.NoError(t, outcomes[0].Err)
	assert.Error(t, outcomes[1].Err)
	assert.Contains(t, outcomes[1].Err.Error(), "load buildings for missing")
	assert.NoError(t, outcomes[2].Err)

	assert.FileExists(t, filepath.Join(cfg.ProcessedDir, "tor", IndexFile))
	assert.FileExists(t, filepath.Join(cfg.ProcessedDir, "mtl", IndexFile))

	assert.ElementsMatch(t, []string{"tor", "missing", "mtl"}, rec.created)
	assert.Len(t, rec.completed, 2)
	require.Len(t, rec.failed, 1)
	assert.Contains(t, rec.failed[outcomes[1].RunID], "missing")
	assert.Equal(t, 1, rec.territories[outcomes[0].RunID])
	assert.Equal(t, 2, rec.completed[outcomes[2].RunID].Buildings)
}

func TestRunner_LedgerFailureIsNotFatal(t *testing.T) {
	cfg := testRunnerConfig(t)
	writeRaw(t, cfg.RawDir, "tor", false)
	rec := newFakeRecorder()
	rec.createErr = eris.New("database is locked")

	outcomes, err := NewRunner(cfg, rec).Run(context.Background(), []Region{{Code: "tor"}})
	require.NoError(t, err)
	assert.Empty(t, outcomes[0].RunID)
	assert.Empty(t, rec.completed)
}

func TestRunner_CancelledContext(t *testing.T) {
	cfg := testRunnerConfig(t)
	writeRaw(t, cfg.RawDir, "tor", false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := NewRunner(cfg, nil).Run(ctx, []Region{{Code: "tor"}})
	require.Error(t, err)
	assert.ErrorIs(t, outcomes[0].Err, context.Canceled)
	assert.NoDirExists(t, filepath.Join(cfg.ProcessedDir, "tor"))
}
