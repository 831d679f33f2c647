package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Power      PowerConfig      `yaml:"power" mapstructure:"power"`
	NDVI       NDVIConfig       `yaml:"ndvi" mapstructure:"ndvi"`
	Population PopulationConfig `yaml:"population" mapstructure:"population"`
	Overpass   OverpassConfig   `yaml:"overpass" mapstructure:"overpass"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// PowerConfig configures the daily climate service.
type PowerConfig struct {
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Parameters string `yaml:"parameters" mapstructure:"parameters"`
}

// NDVIConfig configures the vegetation index subset service.
type NDVIConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PopulationConfig configures the population statistics service.
type PopulationConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OverpassConfig configures the road/water feature queries.
type OverpassConfig struct {
	Endpoint     string `yaml:"endpoint" mapstructure:"endpoint"`
	RadiusMeters int    `yaml:"radius_meters" mapstructure:"radius_meters"`
}

// CacheConfig selects and tunes the signal cache backend.
type CacheConfig struct {
	Backend            string `yaml:"backend" mapstructure:"backend"` // memory or sqlite
	Path               string `yaml:"path" mapstructure:"path"`
	ClimateTTLHours    int    `yaml:"climate_ttl_hours" mapstructure:"climate_ttl_hours"`
	ProximityTTLHours  int    `yaml:"proximity_ttl_hours" mapstructure:"proximity_ttl_hours"`
	PopulationTTLHours int    `yaml:"population_ttl_hours" mapstructure:"population_ttl_hours"`
}

// FetchConfig bounds individual sub-fetches.
type FetchConfig struct {
	TimeoutSecs   int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RetryAttempts int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// BatchConfig configures batch scoring.
type BatchConfig struct {
	MaxPoints           int `yaml:"max_points" mapstructure:"max_points"`
	MaxConcurrentPoints int `yaml:"max_concurrent_points" mapstructure:"max_concurrent_points"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SITEPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("power.base_url", "https://power.larc.nasa.gov/api/temporal/daily/point")
	v.SetDefault("power.parameters", "T2M,PRECTOTCORR,RH2M,ALLSKY_SFC_SW_DWN,WS2M")
	v.SetDefault("ndvi.base_url", "https://modis.ornl.gov/rst/api/v1")
	v.SetDefault("population.base_url", "https://api.worldpop.org/v1/services/stats")
	v.SetDefault("overpass.endpoint", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.radius_meters", 2500)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.path", "siteplan-cache.db")
	v.SetDefault("cache.climate_ttl_hours", 1)
	v.SetDefault("cache.proximity_ttl_hours", 1)
	v.SetDefault("cache.population_ttl_hours", 24)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.retry_attempts", 3)
	v.SetDefault("batch.max_points", 50)
	v.SetDefault("batch.max_concurrent_points", 8)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that cannot produce a working process.
// A misconfigured cache backend is fatal at startup, never a silent default.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory":
	case "sqlite":
		if c.Cache.Path == "" {
			return eris.New("config: cache.path is required for the sqlite backend")
		}
	default:
		return eris.Errorf("config: unknown cache backend %q (want memory or sqlite)", c.Cache.Backend)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Overpass.RadiusMeters <= 0 {
		return eris.Errorf("config: overpass radius must be positive, got %d", c.Overpass.RadiusMeters)
	}
	if c.Batch.MaxPoints <= 0 {
		return eris.Errorf("config: batch max_points must be positive, got %d", c.Batch.MaxPoints)
	}
	return nil
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
