package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the timtro API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	AI        AIConfig        `yaml:"ai"`
	Geocode   GeocodeConfig   `yaml:"geocode"`
	Search    SearchConfig    `yaml:"search"`
	Index     IndexConfig     `yaml:"index"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	TimeoutMsec int    `yaml:"timeout_msec"`
	CacheTTLSec int    `yaml:"cache_ttl_sec"`
}

// AIConfig holds the chat-completion provider used by the query parser's AI
// path and the rerank stage.
type AIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	ParseTimeoutMsec  int `yaml:"parse_timeout_msec"`
	RerankTimeoutMsec int `yaml:"rerank_timeout_msec"`

	BreakerFailures    int `yaml:"breaker_failures"`
	BreakerIntervalSec int `yaml:"breaker_interval_sec"`
	BreakerCooldownSec int `yaml:"breaker_cooldown_sec"`
}

// GeocodeConfig holds the POI geocoder settings. The service-area box rejects
// geocode hits outside the supported region.
type GeocodeConfig struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLon float64 `yaml:"min_lon"`
	MaxLon float64 `yaml:"max_lon"`

	TimeoutMsec int `yaml:"timeout_msec"`
	CacheTTLSec int `yaml:"cache_ttl_sec"`
}

// SearchConfig holds retrieval and rerank tuning.
type SearchConfig struct {
	MinResultsFloor int     `yaml:"min_results_floor"`
	PrefetchPages   int     `yaml:"prefetch_pages"`
	DefaultLimit    int     `yaml:"default_limit"`
	MaxLimit        int     `yaml:"max_limit"`
	MaxWindow       int     `yaml:"max_window"`
	PriceLoosening  float64 `yaml:"price_loosening"`
	ResultTTLSec    int     `yaml:"result_cache_ttl_sec"`

	PerRoomCap     int `yaml:"per_room_cap"`
	PerBuildingCap int `yaml:"per_building_cap"`

	RerankWindowFloor   int     `yaml:"rerank_window_floor"`
	RerankTokenMax      int     `yaml:"rerank_token_max"`
	RerankMaxCandidates int     `yaml:"rerank_max_candidates"`
	PopularityWeight    float64 `yaml:"popularity_weight"`

	ParseTokenCeiling int `yaml:"parse_token_ceiling"`
	ParseMinSignals   int `yaml:"parse_min_signals"`
	ParseCacheSize    int `yaml:"parse_cache_size"`
	DefaultRadius     int `yaml:"default_radius_meters"`
}

// IndexConfig holds HNSW settings for the listing index bootstrap.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
	VectorDim       int `yaml:"vector_dimensions"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values. The geocode box
// defaults to the Ho Chi Minh City metro area.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.TimeoutMsec <= 0 {
		c.Embedding.TimeoutMsec = 5000
	}
	if c.Embedding.CacheTTLSec <= 0 {
		c.Embedding.CacheTTLSec = 24 * 3600
	}
	if c.AI.ParseTimeoutMsec <= 0 {
		c.AI.ParseTimeoutMsec = 1200
	}
	if c.AI.RerankTimeoutMsec <= 0 {
		c.AI.RerankTimeoutMsec = 2500
	}
	if c.AI.BreakerFailures <= 0 {
		c.AI.BreakerFailures = 3
	}
	if c.AI.BreakerIntervalSec <= 0 {
		c.AI.BreakerIntervalSec = 60
	}
	if c.AI.BreakerCooldownSec <= 0 {
		c.AI.BreakerCooldownSec = 120
	}
	if c.Geocode.MinLat == 0 && c.Geocode.MaxLat == 0 {
		c.Geocode.MinLat, c.Geocode.MaxLat = 10.35, 11.20
		c.Geocode.MinLon, c.Geocode.MaxLon = 106.35, 107.05
	}
	if c.Geocode.TimeoutMsec <= 0 {
		c.Geocode.TimeoutMsec = 1500
	}
	if c.Geocode.CacheTTLSec <= 0 {
		c.Geocode.CacheTTLSec = 7 * 24 * 3600
	}
	if c.Search.MinResultsFloor <= 0 {
		c.Search.MinResultsFloor = 10
	}
	if c.Search.PrefetchPages <= 0 {
		c.Search.PrefetchPages = 3
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 20
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 100
	}
	if c.Search.MaxWindow <= 0 {
		c.Search.MaxWindow = 500
	}
	if c.Search.PriceLoosening <= 0 {
		c.Search.PriceLoosening = 0.15
	}
	if c.Search.ResultTTLSec <= 0 {
		c.Search.ResultTTLSec = 60
	}
	if c.Search.PerRoomCap <= 0 {
		c.Search.PerRoomCap = 2
	}
	if c.Search.PerBuildingCap <= 0 {
		c.Search.PerBuildingCap = 3
	}
	if c.Search.RerankWindowFloor <= 0 {
		c.Search.RerankWindowFloor = 12
	}
	if c.Search.RerankTokenMax <= 0 {
		c.Search.RerankTokenMax = 6
	}
	if c.Search.RerankMaxCandidates <= 0 {
		c.Search.RerankMaxCandidates = 30
	}
	if c.Search.PopularityWeight <= 0 {
		c.Search.PopularityWeight = 0.3
	}
	if c.Search.ParseTokenCeiling <= 0 {
		c.Search.ParseTokenCeiling = 12
	}
	if c.Search.ParseMinSignals <= 0 {
		c.Search.ParseMinSignals = 2
	}
	if c.Search.ParseCacheSize <= 0 {
		c.Search.ParseCacheSize = 2048
	}
	if c.Search.DefaultRadius <= 0 {
		c.Search.DefaultRadius = 3000
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 32
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 400
	}
	if c.Index.VectorDim <= 0 {
		c.Index.VectorDim = 1024
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Geocode.MinLat >= c.Geocode.MaxLat {
		return fmt.Errorf("geocode box: min_lat must be below max_lat")
	}
	if c.Geocode.MinLon >= c.Geocode.MaxLon {
		return fmt.Errorf("geocode box: min_lon must be below max_lon")
	}
	if c.Search.PriceLoosening >= 1 {
		return fmt.Errorf("search.price_loosening must be below 1, got %v", c.Search.PriceLoosening)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
