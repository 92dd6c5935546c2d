// Package config centraliza o carregamento de configurações da aplicação.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JeanGrijp/niji-api/internal/core/domain"
)

type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	Mongo       MongoConfig
	RateLimiter RateLimiterConfig
	CDN         CDNConfig
	Log         LogConfig
	Metrics     MetricsConfig
}

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

type StorageConfig struct {
	Type  string
	Redis RedisConfig
}

type RedisConfig struct {
	URL      string
	Host     string
	Port     int
	Password string
	DB       int
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type MongoConfig struct {
	URI              string
	Database         string
	ImagesCollection string
	KeysCollection   string
	StatsCollection  string
}

type RateLimiterConfig struct {
	Rule         domain.RateLimitRule
	KeyPrefix    string
	StoreTimeout time.Duration
	Retries      int
	RetryBackoff time.Duration
}

type CDNConfig struct {
	Domain          string
	StaticDir       string
	DownloadTimeout time.Duration
	DownloadRPS     float64
	DownloadBurst   int
	MaxImageBytes   int64
}

type LogConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	SampleInterval time.Duration
}

// source resolves a key from the environment first and the optional YAML
// file second.
type source struct {
	file map[string]string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	src, err := loadFile(strings.TrimSpace(os.Getenv("CONFIG_PATH")))
	if err != nil {
		return Config{}, err
	}
	return src.build()
}

func loadFile(path string) (source, error) {
	src := source{file: map[string]string{}}
	if path == "" {
		return src, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return src, fmt.Errorf("read config file: %w", err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return src, fmt.Errorf("parse config file: %w", err)
	}
	for k, v := range raw {
		if v == nil {
			continue
		}
		src.file[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(fmt.Sprint(v))
	}
	return src, nil
}

func (s source) build() (Config, error) {
	var cfg Config
	var err error

	cfg.Server.Port = s.get("SERVER_PORT", "7000")
	if cfg.Server.ShutdownTimeout, err = s.duration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return Config{}, err
	}

	cfg.Storage.Type = strings.ToLower(s.get("STORAGE_TYPE", "redis"))
	if cfg.Storage.Redis, err = s.buildRedisConfig(); err != nil {
		return Config{}, err
	}

	if cfg.Mongo, err = s.buildMongoConfig(); err != nil {
		return Config{}, err
	}
	if cfg.RateLimiter, err = s.buildRateLimiterConfig(); err != nil {
		return Config{}, err
	}
	if cfg.CDN, err = s.buildCDNConfig(); err != nil {
		return Config{}, err
	}

	cfg.Log = LogConfig{Level: s.get("LOG_LEVEL", "info"), Format: s.get("LOG_FORMAT", "text")}
	if cfg.Metrics.SampleInterval, err = s.duration("METRICS_SAMPLE_INTERVAL", "1s"); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (s source) buildRedisConfig() (RedisConfig, error) {
	port, err := s.integer("REDIS_PORT", "6379")
	if err != nil {
		return RedisConfig{}, err
	}
	db, err := s.integer("REDIS_DB", "0")
	if err != nil {
		return RedisConfig{}, err
	}

	return RedisConfig{
		URL:      s.get("REDIS_URL", ""),
		Host:     s.get("REDIS_HOST", "localhost"),
		Port:     port,
		Password: s.get("REDIS_PASSWORD", ""),
		DB:       db,
	}, nil
}

func (s source) buildMongoConfig() (MongoConfig, error) {
	cfg := MongoConfig{
		URI:              s.get("MONGO_URI", ""),
		Database:         s.get("DB_NAME", ""),
		ImagesCollection: s.get("IMAGES_COLLECTION", "images"),
		KeysCollection:   s.get("API_KEYS_COLLECTION", "api_keys"),
		StatsCollection:  s.get("STATS_COLLECTION", "stats"),
	}
	if cfg.URI == "" {
		return MongoConfig{}, fmt.Errorf("MONGO_URI is required")
	}
	if cfg.Database == "" {
		return MongoConfig{}, fmt.Errorf("DB_NAME is required")
	}
	return cfg, nil
}

func (s source) buildRateLimiterConfig() (RateLimiterConfig, error) {
	minute, err := s.integer("RATE_LIMIT_MINUTE", "20")
	if err != nil {
		return RateLimiterConfig{}, err
	}
	day, err := s.integer("RATE_LIMIT_DAY", "5000")
	if err != nil {
		return RateLimiterConfig{}, err
	}
	if minute <= 0 || day <= 0 {
		return RateLimiterConfig{}, fmt.Errorf("RATE_LIMIT_MINUTE and RATE_LIMIT_DAY must be positive")
	}

	storeTimeout, err := s.duration("STORE_TIMEOUT", "2s")
	if err != nil {
		return RateLimiterConfig{}, err
	}
	retries, err := s.integer("STORE_RETRIES", "2")
	if err != nil {
		return RateLimiterConfig{}, err
	}
	if retries < 0 {
		return RateLimiterConfig{}, fmt.Errorf("STORE_RETRIES must not be negative")
	}
	backoff, err := s.duration("STORE_RETRY_BACKOFF", "50ms")
	if err != nil {
		return RateLimiterConfig{}, err
	}

	return RateLimiterConfig{
		Rule:         domain.RateLimitRule{MinuteCeiling: int64(minute), DayCeiling: int64(day)},
		KeyPrefix:    s.get("RATE_LIMIT_PREFIX", "rate_limit"),
		StoreTimeout: storeTimeout,
		Retries:      retries,
		RetryBackoff: backoff,
	}, nil
}

func (s source) buildCDNConfig() (CDNConfig, error) {
	domainURL := s.get("CDN_DOMAIN", "")
	if domainURL == "" {
		return CDNConfig{}, fmt.Errorf("CDN_DOMAIN is required")
	}

	timeout, err := s.duration("DOWNLOAD_TIMEOUT", "30s")
	if err != nil {
		return CDNConfig{}, err
	}
	rps, err := strconv.ParseFloat(s.get("DOWNLOAD_RPS", "5"), 64)
	if err != nil {
		return CDNConfig{}, fmt.Errorf("invalid DOWNLOAD_RPS: %w", err)
	}
	burst, err := s.integer("DOWNLOAD_BURST", "5")
	if err != nil {
		return CDNConfig{}, err
	}
	maxBytes, err := strconv.ParseInt(s.get("MAX_IMAGE_BYTES", strconv.Itoa(20<<20)), 10, 64)
	if err != nil {
		return CDNConfig{}, fmt.Errorf("invalid MAX_IMAGE_BYTES: %w", err)
	}

	return CDNConfig{
		Domain:          strings.TrimRight(domainURL, "/"),
		StaticDir:       s.get("STATIC_IMAGES_DIR", "static/images"),
		DownloadTimeout: timeout,
		DownloadRPS:     rps,
		DownloadBurst:   burst,
		MaxImageBytes:   maxBytes,
	}, nil
}

func (s source) get(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	if value := s.file[key]; value != "" {
		return value
	}
	return fallback
}

func (s source) integer(key, fallback string) (int, error) {
	n, err := strconv.Atoi(s.get(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func (s source) duration(key, fallback string) (time.Duration, error) {
	raw := s.get(key, fallback)
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
