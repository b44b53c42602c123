package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names an optional YAML file read before the environment.
const ConfigFileEnv = "PDFNARRATE_CONFIG"

type Config struct {
	Port string `yaml:"port"`

	// Auth; empty disables bearer checks.
	APIKey         string   `yaml:"api_key"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Library storage
	StorageBackend  string `yaml:"storage_backend"`
	DBPath          string `yaml:"db_path"`
	PathstoreURL    string `yaml:"pathstore_url"`
	PathstoreAPIKey string `yaml:"pathstore_api_key"`
	PathstorePrefix string `yaml:"pathstore_prefix"`
	DedupKey        string `yaml:"dedup_key"`

	// Structuring
	Tokenizer    string `yaml:"tokenizer"`
	MaxHeaderLen int    `yaml:"max_header_len"`

	// Batch worker pool
	WorkerCount  int `yaml:"worker_count"`
	MaxQueueSize int `yaml:"max_queue_size"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`
}

const (
	BackendSQLite    = "sqlite"
	BackendPathstore = "pathstore"
)

func defaults() Config {
	return Config{
		Port:                 "8000",
		AllowedOrigins:       []string{"http://localhost:5173"},
		StorageBackend:       BackendSQLite,
		DBPath:               "pdf_library.db",
		PathstoreURL:         "http://localhost:8080",
		PathstorePrefix:      "pdfnarrate",
		DedupKey:             "filename",
		Tokenizer:            "punkt",
		MaxHeaderLen:         50,
		WorkerCount:          4,
		MaxQueueSize:         100,
		MaxUploadBytes:       52428800, // 50MB
		JobTTL:               1 * time.Hour,
		PDFFallbackPdftotext: true,
	}
}

// Load builds the configuration from defaults, then the optional YAML file,
// then the environment (including a .env file when present).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	cfg.clamp()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)

	c.APIKey = envOr("PDFNARRATE_API_KEY", c.APIKey)
	c.AllowedOrigins = envList("ALLOWED_ORIGINS", c.AllowedOrigins)

	c.StorageBackend = strings.ToLower(envOr("STORAGE_BACKEND", c.StorageBackend))
	c.DBPath = envOr("DB_PATH", c.DBPath)
	c.PathstoreURL = envOr("PATHSTORE_URL", c.PathstoreURL)
	c.PathstoreAPIKey = envOr("PATHSTORE_API_KEY", c.PathstoreAPIKey)
	c.PathstorePrefix = envOr("PATHSTORE_PREFIX", c.PathstorePrefix)
	c.DedupKey = strings.ToLower(envOr("DEDUP_KEY", c.DedupKey))

	c.Tokenizer = strings.ToLower(envOr("TOKENIZER", c.Tokenizer))
	c.MaxHeaderLen = envInt("MAX_HEADER_LEN", c.MaxHeaderLen)

	c.WorkerCount = envInt("WORKER_COUNT", c.WorkerCount)
	c.MaxQueueSize = envInt("MAX_QUEUE_SIZE", c.MaxQueueSize)
	c.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.JobTTL = envDuration("JOB_TTL", c.JobTTL)
	c.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", c.PDFFallbackPdftotext)
}

func (c *Config) clamp() {
	d := defaults()
	if c.MaxHeaderLen <= 0 {
		c.MaxHeaderLen = d.MaxHeaderLen
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.JobTTL <= 0 {
		c.JobTTL = d.JobTTL
	}
}

func (c Config) Validate() error {
	switch c.StorageBackend {
	case BackendSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite backend")
		}
	case BackendPathstore:
		if c.PathstoreURL == "" {
			return fmt.Errorf("PATHSTORE_URL is required for the pathstore backend")
		}
		if c.PathstoreAPIKey == "" {
			return fmt.Errorf("PATHSTORE_API_KEY is required for the pathstore backend")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendSQLite, BackendPathstore, c.StorageBackend)
	}
	switch c.DedupKey {
	case "filename", "content_hash":
	default:
		return fmt.Errorf("DEDUP_KEY must be \"filename\" or \"content_hash\", got %q", c.DedupKey)
	}
	switch c.Tokenizer {
	case "punkt", "rules":
	default:
		return fmt.Errorf("TOKENIZER must be \"punkt\" or \"rules\", got %q", c.Tokenizer)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
