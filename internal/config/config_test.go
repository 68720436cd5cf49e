package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/demand-cli/internal/geometry"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.Regions)
	assert.Equal(t, "raw", cfg.Paths.RawDir)
	assert.Equal(t, "processed", cfg.Paths.ProcessedDir)
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, "https://overpass-api.de/api/interpreter", cfg.Overpass.Endpoint)
	assert.Equal(t, 180, cfg.Overpass.TimeoutSecs)
	assert.Equal(t, 1, cfg.Overpass.MaxParallel)
	assert.Equal(t, 1000, cfg.Overpass.MinIntervalMs)
	assert.Equal(t, 4, cfg.Overpass.MaxAttempts)
	assert.Equal(t, 5, cfg.Overpass.BreakerThreshold)
	assert.Equal(t, 60, cfg.Overpass.BreakerCooldownSecs)
	assert.Equal(t, 4, cfg.Pipeline.MaxConcurrentRegions)
	assert.Empty(t, cfg.Pipeline.DensityTables)
	assert.False(t, cfg.Pipeline.IncludeAmenities)
	assert.Empty(t, cfg.Store.DatabaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
regions:
  - code: tor
    name: Toronto
    description: Downtown core
    bbox: [-79.42, 43.63, -79.36, 43.67]
    population: 2794356
  - code: mtl
    name: Montreal
    bbox: [-73.62, 45.48, -73.54, 45.53]
paths:
  raw_dir: data/raw
log:
  level: debug
  format: console
server:
  port: 9090
pipeline:
  max_concurrent_regions: 2
  include_amenities: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.Regions, 2)
	assert.Equal(t, "tor", cfg.Regions[0].Code)
	assert.Equal(t, "Toronto", cfg.Regions[0].Name)
	assert.Equal(t, "Downtown core", cfg.Regions[0].Description)
	assert.Equal(t, [4]float64{-79.42, 43.63, -79.36, 43.67}, cfg.Regions[0].BBox)
	assert.Equal(t, 2794356, cfg.Regions[0].Population)
	assert.Equal(t, "data/raw", cfg.Paths.RawDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Pipeline.MaxConcurrentRegions)
	assert.True(t, cfg.Pipeline.IncludeAmenities)
	// Defaults still apply for unset values
	assert.Equal(t, "processed", cfg.Paths.ProcessedDir)
	assert.Equal(t, 180, cfg.Overpass.TimeoutSecs)

	require.NoError(t, cfg.Validate("process"))
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
locale: fr
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("DEMAND_LOCALE", "de")
	t.Setenv("DEMAND_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "de", cfg.Locale)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("DEMAND_SERVER_PORT", "3000")
	t.Setenv("DEMAND_STORE_DATABASE_URL", "runs.db")
	t.Setenv("DEMAND_OVERPASS_MAX_ATTEMPTS", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "runs.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 7, cfg.Overpass.MaxAttempts)
}

func TestLoadFile_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demand.yml")
	require.NoError(t, os.WriteFile(path, []byte("locale: es\nserver:\n  port: 7070\n"), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "es", cfg.Locale)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "raw", cfg.Paths.RawDir)
}

func TestLoadFile_MissingPath(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("regions: [\n"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Regions = []RegionConfig{
		{Code: "tor", Name: "Toronto", BBox: [4]float64{-79.42, 43.63, -79.36, 43.67}},
	}
	cfg.Paths.RawDir = "raw"
	cfg.Paths.ProcessedDir = "processed"
	cfg.Overpass.Endpoint = "https://overpass.example/api/interpreter"
	cfg.Overpass.TimeoutSecs = 180
	cfg.Pipeline.MaxConcurrentRegions = 4
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_AllModesPass(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = "runs.db"

	for _, mode := range []string{"process", "fetch", "serve", "runs", "tables"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidateProcess_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Regions = nil
	cfg.Paths = PathsConfig{}

	err := cfg.Validate("process")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "at least one region is required")
	assert.Contains(t, err.Error(), "paths.raw_dir is required")
	assert.Contains(t, err.Error(), "paths.processed_dir is required")
}

func TestValidateFetch_MissingEndpoint(t *testing.T) {
	cfg := validDefaults()
	cfg.Overpass.Endpoint = ""
	cfg.Overpass.TimeoutSecs = 0

	err := cfg.Validate("fetch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "overpass.endpoint is required")
	assert.Contains(t, err.Error(), "overpass.timeout_secs must be > 0")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_NoRegionsNeeded(t *testing.T) {
	cfg := validDefaults()
	cfg.Regions = nil

	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateRuns_NoDB(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("runs")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Pipeline.MaxConcurrentRegions = 0
	err := cfg.Validate("process")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent_regions must be between 1 and 64")

	cfg.Pipeline.MaxConcurrentRegions = 65
	err = cfg.Validate("process")
	assert.Error(t, err)

	cfg.Pipeline.MaxConcurrentRegions = 64
	assert.NoError(t, cfg.Validate("process"))
}

func TestValidateRegions(t *testing.T) {
	tests := []struct {
		name   string
		region RegionConfig
		errMsg string
	}{
		{"missing code", RegionConfig{BBox: [4]float64{0, 0, 1, 1}}, "regions[1].code is required"},
		{"duplicate code", RegionConfig{Code: "tor", BBox: [4]float64{0, 0, 1, 1}}, "region tor is listed twice"},
		{"inverted bbox", RegionConfig{Code: "x", BBox: [4]float64{1, 0, 0, 1}}, "region x bbox"},
		{"zero bbox", RegionConfig{Code: "x"}, "region x bbox"},
		{"latitude out of range", RegionConfig{Code: "x", BBox: [4]float64{0, -91, 1, 1}}, "region x bbox"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			cfg.Regions = append(cfg.Regions, tt.region)

			err := cfg.Validate("process")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestRegion(t *testing.T) {
	cfg := validDefaults()

	r, err := cfg.Region("tor")
	require.NoError(t, err)
	assert.Equal(t, "Toronto", r.Name)
	assert.Equal(t, geometry.BBox{MinLon: -79.42, MinLat: 43.63, MaxLon: -79.36, MaxLat: 43.67}, r.Bounds())

	_, err = cfg.Region("nyc")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown region")
}

func TestSelectRegions(t *testing.T) {
	cfg := validDefaults()
	cfg.Regions = append(cfg.Regions, RegionConfig{Code: "mtl", BBox: [4]float64{-73.62, 45.48, -73.54, 45.53}})

	all, err := cfg.SelectRegions(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	some, err := cfg.SelectRegions([]string{"mtl"})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "mtl", some[0].Code)

	_, err = cfg.SelectRegions([]string{"mtl", "nyc"})
	assert.Error(t, err)
}
