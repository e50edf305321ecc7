package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the dirdex service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Directory DirectoryConfig `yaml:"directory"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Parser    ParserConfig    `yaml:"parser"`
	Search    SearchConfig    `yaml:"search"`
	Sync      SyncConfig      `yaml:"sync"`
	Auth      AuthConfig      `yaml:"auth"`
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

// DatabaseConfig holds the Valkey/Redis connection used for embeddings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
}

// DirectoryConfig points at the SQL store holding profiles and projects.
type DirectoryConfig struct {
	Driver       string `yaml:"driver"` // postgres, sqlite
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Vectorizer  string                      `yaml:"vectorizer"`
	Providers   map[string]ProviderConfig   `yaml:"providers"`
	Vectorizers map[string]VectorizerConfig `yaml:"vectorizers"`
	Cache       EmbeddingCacheConfig        `yaml:"cache"`
}

// ProviderConfig holds an OpenAI-compatible endpoint.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// VectorizerConfig holds vectorizer settings.
type VectorizerConfig struct {
	Provider            string `yaml:"provider"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// EmbeddingCacheConfig controls the store-backed embedding cache.
type EmbeddingCacheConfig struct {
	Enabled       bool `yaml:"enabled"`
	TTLHours      int  `yaml:"ttl_hours"`
	HalfPrecision bool `yaml:"half_precision"`
}

// RerankConfig points at a /v1/rerank compatible endpoint.
type RerankConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	TopK      int    `yaml:"top_k"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ParserConfig configures the LLM query parser.
type ParserConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Provider    string `yaml:"provider"` // key into embedding.providers
	Model       string `yaml:"model"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	MaxAttempts int    `yaml:"max_attempts"`
	CacheSize   int    `yaml:"cache_size"`
	CacheTTLSec int    `yaml:"cache_ttl_sec"`
}

// SearchConfig holds the default ranking knobs. Nil pointers take defaults.
type SearchConfig struct {
	WeightBM25      *float64 `yaml:"weight_bm25"`
	WeightVector    *float64 `yaml:"weight_vector"`
	WeightFilter    *float64 `yaml:"weight_filter"`
	VectorThreshold *float64 `yaml:"vector_threshold"`
	BM25MinScore    *float64 `yaml:"bm25_min_score"`
	StageTimeoutMs  int      `yaml:"stage_timeout_ms"`
	ProjectShare    float64  `yaml:"project_share"`
}

// SyncConfig tunes the index sync worker.
type SyncConfig struct {
	QueueSize          int `yaml:"queue_size"`
	Workers            int `yaml:"workers"`
	MaxAttempts        int `yaml:"max_attempts"`
	RetryBaseMs        int `yaml:"retry_base_ms"`
	RebuildIntervalSec int `yaml:"rebuild_interval_sec"` // 0 disables the periodic rebuild
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, if present, is loaded first.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := findConfigPath(env)
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands environment variables in data and decodes it.
func Parse(data []byte) (Config, error) {
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

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

func floatPtr(v float64) *float64 { return &v }

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "dirdex:"
	}
	if c.Database.HNSWM <= 0 {
		c.Database.HNSWM = 16
	}
	if c.Database.HNSWEFConstruct <= 0 {
		c.Database.HNSWEFConstruct = 200
	}

	if c.Directory.Driver == "" {
		c.Directory.Driver = "postgres"
	}
	if c.Directory.MaxOpenConns <= 0 {
		c.Directory.MaxOpenConns = 10
	}

	if c.Embedding.Cache.TTLHours <= 0 {
		c.Embedding.Cache.TTLHours = 24 * 30
	}

	if c.Rerank.TopK <= 0 {
		c.Rerank.TopK = 20
	}
	if c.Rerank.TimeoutMs <= 0 {
		c.Rerank.TimeoutMs = 5000
	}

	if c.Parser.TimeoutMs <= 0 {
		c.Parser.TimeoutMs = 4000
	}
	if c.Parser.MaxAttempts <= 0 {
		c.Parser.MaxAttempts = 3
	}
	if c.Parser.CacheSize <= 0 {
		c.Parser.CacheSize = 1000
	}
	if c.Parser.CacheTTLSec <= 0 {
		c.Parser.CacheTTLSec = 3600
	}

	if c.Search.WeightBM25 == nil {
		c.Search.WeightBM25 = floatPtr(0.4)
	}
	if c.Search.WeightVector == nil {
		c.Search.WeightVector = floatPtr(0.4)
	}
	if c.Search.WeightFilter == nil {
		c.Search.WeightFilter = floatPtr(0.2)
	}
	if c.Search.VectorThreshold == nil {
		c.Search.VectorThreshold = floatPtr(0.3)
	}
	if c.Search.BM25MinScore == nil {
		c.Search.BM25MinScore = floatPtr(0.1)
	}
	if c.Search.StageTimeoutMs <= 0 {
		c.Search.StageTimeoutMs = 3000
	}
	if c.Search.ProjectShare <= 0 {
		c.Search.ProjectShare = 0.3
	}

	if c.Sync.QueueSize <= 0 {
		c.Sync.QueueSize = 1024
	}
	if c.Sync.Workers <= 0 {
		c.Sync.Workers = 4
	}
	if c.Sync.MaxAttempts <= 0 {
		c.Sync.MaxAttempts = 5
	}
	if c.Sync.RetryBaseMs <= 0 {
		c.Sync.RetryBaseMs = 500
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

	switch c.Directory.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("directory.driver must be \"postgres\" or \"sqlite\", got %q", c.Directory.Driver)
	}
	if c.Directory.DSN == "" {
		return fmt.Errorf("directory.dsn is required")
	}

	if err := c.validateEmbedding(); err != nil {
		return err
	}

	if c.Rerank.Enabled && c.Rerank.BaseURL == "" {
		return fmt.Errorf("rerank.base_url is required when rerank is enabled")
	}
	if c.Parser.Enabled {
		if _, ok := c.Embedding.Providers[c.Parser.Provider]; !ok {
			return fmt.Errorf("parser.provider %q is not a configured provider", c.Parser.Provider)
		}
		if c.Parser.Model == "" {
			return fmt.Errorf("parser.model is required when the parser is enabled")
		}
	}

	for name, v := range map[string]*float64{
		"weight_bm25": c.Search.WeightBM25, "weight_vector": c.Search.WeightVector,
		"weight_filter": c.Search.WeightFilter, "bm25_min_score": c.Search.BM25MinScore,
	} {
		if v != nil && (*v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("search.%s must be a finite non-negative number", name)
		}
	}
	if t := c.Search.VectorThreshold; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("search.vector_threshold must be between 0 and 1, got %v", *t)
	}
	if c.Search.ProjectShare >= 1 {
		return fmt.Errorf("search.project_share must be below 1, got %v", c.Search.ProjectShare)
	}
	if c.Sync.RebuildIntervalSec < 0 {
		return fmt.Errorf("sync.rebuild_interval_sec must not be negative")
	}
	return nil
}

func (c *Config) validateEmbedding() error {
	name := c.Embedding.Vectorizer
	if name == "" {
		return fmt.Errorf("embedding.vectorizer is required")
	}
	v, ok := c.Embedding.Vectorizers[name]
	if !ok {
		return fmt.Errorf("embedding.vectorizer %q is not defined in embedding.vectorizers", name)
	}
	if _, ok := c.Embedding.Providers[v.Provider]; !ok {
		return fmt.Errorf("embedding.vectorizers.%s.provider %q is not a configured provider", name, v.Provider)
	}
	if v.Model == "" {
		return fmt.Errorf("embedding.vectorizers.%s.model is required", name)
	}
	if v.Dimensions <= 0 {
		return fmt.Errorf("embedding.vectorizers.%s.dimensions must be positive", name)
	}
	return nil
}

// ActiveVectorizer returns the selected vectorizer and its provider.
func (c *Config) ActiveVectorizer() (VectorizerConfig, ProviderConfig) {
	v := c.Embedding.Vectorizers[c.Embedding.Vectorizer]
	return v, c.Embedding.Providers[v.Provider]
}

// StageTimeout is the per-stage search budget.
func (s SearchConfig) StageTimeout() time.Duration {
	return time.Duration(s.StageTimeoutMs) * time.Millisecond
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := env + ".yaml"

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// Relative to this source file, for tests and `go run` from subdirectories.
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b)))
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// envVarRegex matches ${VAR} and ${VAR:-default}.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
