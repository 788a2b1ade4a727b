// Package config loads and validates application configuration from YAML files
// with .env and environment-variable overrides. It provides typed structs for
// every subsystem (Server, Postgres, Kafka, Redis, Corpus, Indexer, Search, etc.).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Search    SearchConfig    `yaml:"search"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// RateLimit is the number of requests a client IP may make per
	// RateLimitWindow. 0 disables limiting.
	RateLimit       int           `yaml:"rateLimit"`
	RateLimitWindow time.Duration `yaml:"rateLimitWindow"`

	// CORSOrigins lists browser origins allowed to call the API; "*"
	// allows any. Empty disables CORS headers.
	CORSOrigins []string `yaml:"corsOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete string `yaml:"indexComplete"`
	QueryEvents   string `yaml:"queryEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// CorpusConfig describes where the wide disease/symptom table comes from and
// how its columns are named.
type CorpusConfig struct {
	// Source is "csv" or "postgres".
	Source        string `yaml:"source"`
	Path          string `yaml:"path"`
	Table         string `yaml:"table"`
	DiseaseColumn string `yaml:"diseaseColumn"`
	SymptomPrefix string `yaml:"symptomPrefix"`
	MaxSymptoms   int    `yaml:"maxSymptoms"`
}

// IndexerConfig controls where snapshots live and the build-time bounds of
// the combination pass.
type IndexerConfig struct {
	DataDir          string `yaml:"dataDir"`
	SnapshotPrefix   string `yaml:"snapshotPrefix"`
	MaxComboSymptoms int    `yaml:"maxComboSymptoms"`
	WatchSnapshots   bool   `yaml:"watchSnapshots"`
}

// PrefixPath joins DataDir and SnapshotPrefix into the artifact prefix.
func (c IndexerConfig) PrefixPath() string {
	if c.DataDir == "" {
		return c.SnapshotPrefix
	}
	return filepath.Join(c.DataDir, c.SnapshotPrefix)
}

// SearchConfig controls result limits and the scoring weights.
type SearchConfig struct {
	DefaultTopK       int     `yaml:"defaultTopK"`
	MaxTopK           int     `yaml:"maxTopK"`
	MaxSuggestions    int     `yaml:"maxSuggestions"`
	ExactWeight       float64 `yaml:"exactWeight"`
	ComboWeight       float64 `yaml:"comboWeight"`
	SemanticWeight    float64 `yaml:"semanticWeight"`
	PairBoost         float64 `yaml:"pairBoost"`
	TripleBoost       float64 `yaml:"tripleBoost"`
	SemanticThreshold float64 `yaml:"semanticThreshold"`
	SemanticScale     float64 `yaml:"semanticScale"`
	SpellingThreshold float64 `yaml:"spellingThreshold"`

	// SuggestTopDiseases is how many ranked diseases feed a suggestion
	// request that does not name its own.
	SuggestTopDiseases int           `yaml:"suggestTopDiseases"`
	QueryTimeout       time.Duration `yaml:"queryTimeout"`
}

// AnalyticsConfig controls the in-process query analytics and, when Publish
// is set and Kafka is enabled, the batched export of query events.
type AnalyticsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Publish       bool          `yaml:"publish"`
	BufferSize    int           `yaml:"bufferSize"`
	BatchSize     int           `yaml:"batchSize"`
	FlushInterval time.Duration `yaml:"flushInterval"`
	TopN          int           `yaml:"topN"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a .env file from the working directory (if present), then a YAML
// config file (if provided), and finally applies SSP_* environment overrides.
// Missing values keep their defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env file: %w", err)
	}
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Corpus.Source {
	case "csv", "postgres":
	default:
		return fmt.Errorf("corpus.source must be csv or postgres, got %q", c.Corpus.Source)
	}
	if c.Indexer.SnapshotPrefix == "" {
		return fmt.Errorf("indexer.snapshotPrefix is required")
	}
	if c.Indexer.MaxComboSymptoms < 0 {
		return fmt.Errorf("indexer.maxComboSymptoms must be >= 0, got %d", c.Indexer.MaxComboSymptoms)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rateLimit must be >= 0, got %d", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("server.rateLimitWindow must be positive when rateLimit is set")
	}
	if c.Search.DefaultTopK < 1 || c.Search.MaxTopK < c.Search.DefaultTopK {
		return fmt.Errorf("search.defaultTopK must be in [1, maxTopK], got %d (max %d)",
			c.Search.DefaultTopK, c.Search.MaxTopK)
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development. The
// search weights are the standard scoring constants.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimitWindow: time.Minute,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "symptomsearch",
			User:            "symptomsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "symptomsearch-group",
			Topics: KafkaTopics{
				IndexComplete: "index.complete",
				QueryEvents:   "query.events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: time.Hour,
		},
		Corpus: CorpusConfig{
			Source:        "csv",
			Path:          "data/dataset.csv",
			Table:         "disease_symptoms",
			DiseaseColumn: "Disease",
			SymptomPrefix: "Symptom_",
			MaxSymptoms:   17,
		},
		Indexer: IndexerConfig{
			DataDir:        "data/index",
			SnapshotPrefix: "medical_rag",
		},
		Search: SearchConfig{
			DefaultTopK:       10,
			MaxTopK:           100,
			MaxSuggestions:    10,
			ExactWeight:       0.5,
			ComboWeight:       0.3,
			SemanticWeight:    0.2,
			PairBoost:         1.5,
			TripleBoost:       2.0,
			SemanticThreshold: 0.1,
			SemanticScale:     10,
			SpellingThreshold: 0.85,

			SuggestTopDiseases: 5,
			QueryTimeout:       2 * time.Second,
		},
		Analytics: AnalyticsConfig{
			Enabled:       true,
			BufferSize:    10000,
			BatchSize:     100,
			FlushInterval: 5 * time.Second,
			TopN:          10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SSP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SSP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SSP_SERVER_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = n
		}
	}
	if v := os.Getenv("SSP_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("SSP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SSP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SSP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SSP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SSP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SSP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SSP_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v, cfg.Kafka.Enabled)
	}
	if v := os.Getenv("SSP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SSP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SSP_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v, cfg.Redis.Enabled)
	}
	if v := os.Getenv("SSP_CORPUS_SOURCE"); v != "" {
		cfg.Corpus.Source = v
	}
	if v := os.Getenv("SSP_CORPUS_PATH"); v != "" {
		cfg.Corpus.Path = v
	}
	if v := os.Getenv("SSP_INDEXER_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("SSP_INDEXER_SNAPSHOT_PREFIX"); v != "" {
		cfg.Indexer.SnapshotPrefix = v
	}
	if v := os.Getenv("SSP_INDEXER_MAX_COMBO_SYMPTOMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.MaxComboSymptoms = n
		}
	}
	if v := os.Getenv("SSP_ANALYTICS_ENABLED"); v != "" {
		cfg.Analytics.Enabled = parseBool(v, cfg.Analytics.Enabled)
	}
	if v := os.Getenv("SSP_ANALYTICS_PUBLISH"); v != "" {
		cfg.Analytics.Publish = parseBool(v, cfg.Analytics.Publish)
	}
	if v := os.Getenv("SSP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SSP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
