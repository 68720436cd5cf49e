package config

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/demand-cli/internal/geometry"
)

// Config holds the full application configuration.
type Config struct {
	Regions  []RegionConfig `yaml:"regions" mapstructure:"regions"`
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Locale   string         `yaml:"locale" mapstructure:"locale"`
	Overpass OverpassConfig `yaml:"overpass" mapstructure:"overpass"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// RegionConfig describes one processable region.
type RegionConfig struct {
	Code        string `yaml:"code" mapstructure:"code"`
	Name        string `yaml:"name" mapstructure:"name"`
	Description string `yaml:"description" mapstructure:"description"`
	// BBox is [minLon, minLat, maxLon, maxLat].
	BBox       [4]float64 `yaml:"bbox" mapstructure:"bbox"`
	Population int        `yaml:"population" mapstructure:"population"`
}

// Bounds returns the region box.
func (r RegionConfig) Bounds() geometry.BBox {
	return geometry.BBoxFromArray(r.BBox)
}

// PathsConfig locates raw inputs and processed outputs. Each region uses a
// subdirectory named after its code.
type PathsConfig struct {
	RawDir       string `yaml:"raw_dir" mapstructure:"raw_dir"`
	ProcessedDir string `yaml:"processed_dir" mapstructure:"processed_dir"`
}

// OverpassConfig configures the feature source.
type OverpassConfig struct {
	Endpoint            string `yaml:"endpoint" mapstructure:"endpoint"`
	TimeoutSecs         int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxParallel         int    `yaml:"max_parallel" mapstructure:"max_parallel"`
	MinIntervalMs       int    `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	MaxAttempts         int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	BreakerThreshold    int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int    `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// PipelineConfig configures region processing.
type PipelineConfig struct {
	MaxConcurrentRegions int    `yaml:"max_concurrent_regions" mapstructure:"max_concurrent_regions"`
	DensityTables        string `yaml:"density_tables" mapstructure:"density_tables"`
	IncludeAmenities     bool   `yaml:"include_amenities" mapstructure:"include_amenities"`
	ExportShapefile      bool   `yaml:"export_shapefile" mapstructure:"export_shapefile"`
	ExportTerritories    bool   `yaml:"export_territories" mapstructure:"export_territories"`
}

// StoreConfig configures the run ledger. An empty DatabaseURL disables it.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the artifact server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// working directory for an optional config.yaml; a named file must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("DEMAND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("paths.raw_dir", "raw")
	v.SetDefault("paths.processed_dir", "processed")
	v.SetDefault("locale", "en")
	v.SetDefault("overpass.endpoint", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.timeout_secs", 180)
	v.SetDefault("overpass.max_parallel", 1)
	v.SetDefault("overpass.min_interval_ms", 1000)
	v.SetDefault("overpass.max_attempts", 4)
	v.SetDefault("overpass.breaker_threshold", 5)
	v.SetDefault("overpass.breaker_cooldown_secs", 60)
	v.SetDefault("pipeline.max_concurrent_regions", 4)
	v.SetDefault("pipeline.density_tables", "")
	v.SetDefault("pipeline.include_amenities", false)
	v.SetDefault("pipeline.export_shapefile", false)
	v.SetDefault("pipeline.export_territories", false)
	v.SetDefault("store.database_url", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings the given command needs. Every problem is
// reported at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	if n := c.Pipeline.MaxConcurrentRegions; n < 1 || n > 64 {
		problems = append(problems, "pipeline.max_concurrent_regions must be between 1 and 64")
	}
	problems = append(problems, c.regionProblems()...)

	switch mode {
	case "process":
		if len(c.Regions) == 0 {
			problems = append(problems, "at least one region is required")
		}
		if c.Paths.RawDir == "" {
			problems = append(problems, "paths.raw_dir is required")
		}
		if c.Paths.ProcessedDir == "" {
			problems = append(problems, "paths.processed_dir is required")
		}
	case "fetch":
		if len(c.Regions) == 0 {
			problems = append(problems, "at least one region is required")
		}
		if c.Paths.RawDir == "" {
			problems = append(problems, "paths.raw_dir is required")
		}
		if c.Overpass.Endpoint == "" {
			problems = append(problems, "overpass.endpoint is required")
		}
		if c.Overpass.TimeoutSecs <= 0 {
			problems = append(problems, "overpass.timeout_secs must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Paths.ProcessedDir == "" {
			problems = append(problems, "paths.processed_dir is required")
		}
	case "runs":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	case "tables":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) regionProblems() []string {
	var problems []string
	seen := make(map[string]bool, len(c.Regions))
	for i, r := range c.Regions {
		if r.Code == "" {
			problems = append(problems, "regions["+strconv.Itoa(i)+"].code is required")
			continue
		}
		if seen[r.Code] {
			problems = append(problems, "region "+r.Code+" is listed twice")
		}
		seen[r.Code] = true
		if !validBBox(r.BBox) {
			problems = append(problems, "region "+r.Code+" bbox must be [minLon, minLat, maxLon, maxLat] with min < max")
		}
	}
	return problems
}

func validBBox(b [4]float64) bool {
	for _, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b[0] >= -180 && b[2] <= 180 && b[1] >= -90 && b[3] <= 90 && b[0] < b[2] && b[1] < b[3]
}

// Region returns the region with the given code.
func (c *Config) Region(code string) (*RegionConfig, error) {
	for i := range c.Regions {
		if c.Regions[i].Code == code {
			return &c.Regions[i], nil
		}
	}
	return nil, eris.Errorf("config: unknown region %q", code)
}

// SelectRegions returns the regions named by codes, or all regions when codes
// is empty.
func (c *Config) SelectRegions(codes []string) ([]RegionConfig, error) {
	if len(codes) == 0 {
		return c.Regions, nil
	}
	out := make([]RegionConfig, 0, len(codes))
	for _, code := range codes {
		r, err := c.Region(code)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
