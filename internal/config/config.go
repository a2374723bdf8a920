package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers for the object-storage mirror.
const (
	StorageNone  = "none"
	StorageMinio = "minio"
	StorageS3    = "s3"
)

// Job store and queue drivers.
const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

type Config struct {
	ServerAddr  string   `yaml:"server_addr"`
	LogLevel    string   `yaml:"log_level"`
	CORSOrigins []string `yaml:"cors_origins"`

	StoreDriver string `yaml:"store_driver"`
	DBHost      string `yaml:"db_host"`
	DBPort      string `yaml:"db_port"`
	DBUser      string `yaml:"db_user"`
	DBPassword  string `yaml:"db_password"`
	DBName      string `yaml:"db_name"`

	QueueDriver string `yaml:"queue_driver"`
	RedisURL    string `yaml:"redis_url"`
	WorkerCount int    `yaml:"worker_count"`

	// Job runner
	MaxRetries    int           `yaml:"max_retries"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
	ExtractionDir string        `yaml:"extraction_dir"`
	ScratchDir    string        `yaml:"scratch_dir"`

	// External tools
	YtdlpPath         string `yaml:"ytdlp_path"`
	FFmpegPath        string `yaml:"ffmpeg_path"`
	FFprobePath       string `yaml:"ffprobe_path"`
	AudioQuality      string `yaml:"audio_quality"`
	DownloadChunkSize int    `yaml:"download_chunk_size"`
	DriveBaseURL      string `yaml:"drive_base_url"`

	// Optional Drive API lookup for file names
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	// Object storage mirror
	StorageDriver  string `yaml:"storage_driver"`
	MinioEndpoint  string `yaml:"minio_endpoint"`
	MinioAccessKey string `yaml:"minio_access_key"`
	MinioSecretKey string `yaml:"minio_secret_key"`
	MinioBucket    string `yaml:"minio_bucket"`
	MinioUseSSL    bool   `yaml:"minio_use_ssl"`
	S3Region       string `yaml:"s3_region"`
	S3Endpoint     string `yaml:"s3_endpoint"`
	S3AccessKey    string `yaml:"s3_access_key"`
	S3SecretKey    string `yaml:"s3_secret_key"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3UsePathStyle bool   `yaml:"s3_use_path_style"`

	// Submission throttling, requests per minute per client
	SubmitRateLimit float64 `yaml:"submit_rate_limit"`
	SubmitRateBurst int     `yaml:"submit_rate_burst"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		ServerAddr:        ":8080",
		LogLevel:          "info",
		CORSOrigins:       []string{"*"},
		StoreDriver:       DriverPostgres,
		DBHost:            "localhost",
		DBPort:            "5432",
		DBUser:            "auddy",
		DBPassword:        "auddy_dev_password",
		DBName:            "auddy",
		QueueDriver:       DriverRedis,
		RedisURL:          "redis://localhost:6379",
		WorkerCount:       3,
		MaxRetries:        3,
		RetryBackoff:      30 * time.Second,
		ExtractionDir:     "media/extractions",
		ScratchDir:        os.TempDir(),
		YtdlpPath:         "yt-dlp",
		FFmpegPath:        "ffmpeg",
		FFprobePath:       "ffprobe",
		AudioQuality:      "192",
		DownloadChunkSize: 8192,
		DriveBaseURL:      "https://drive.google.com",
		StorageDriver:     StorageNone,
		MinioEndpoint:     "localhost:9000",
		MinioAccessKey:    "minioadmin",
		MinioSecretKey:    "minioadmin",
		MinioBucket:       "extractions",
		S3Region:          "us-east-1",
		S3Bucket:          "extractions",
		SubmitRateLimit:   2,
		SubmitRateBurst:   5,
	}
}

// Load builds the configuration from defaults, the optional CONFIG_FILE and
// environment variables, in that order of precedence.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("CONFIG_FILE"))
}

// LoadFrom is Load with an explicit config file; an empty path skips the file.
func LoadFrom(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays YAML settings from path onto cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", cfg.ServerAddr)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	cfg.StoreDriver = getEnvOrDefault("STORE_DRIVER", cfg.StoreDriver)
	cfg.DBHost = getEnvOrDefault("DB_HOST", cfg.DBHost)
	cfg.DBPort = getEnvOrDefault("DB_PORT", cfg.DBPort)
	cfg.DBUser = getEnvOrDefault("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnvOrDefault("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = getEnvOrDefault("DB_NAME", cfg.DBName)

	cfg.QueueDriver = getEnvOrDefault("QUEUE_DRIVER", cfg.QueueDriver)
	cfg.RedisURL = getEnvOrDefault("REDIS_URL", cfg.RedisURL)

	cfg.ExtractionDir = getEnvOrDefault("EXTRACTION_DIR", cfg.ExtractionDir)
	cfg.ScratchDir = getEnvOrDefault("SCRATCH_DIR", cfg.ScratchDir)
	cfg.YtdlpPath = getEnvOrDefault("YTDLP_PATH", cfg.YtdlpPath)
	cfg.FFmpegPath = getEnvOrDefault("FFMPEG_PATH", cfg.FFmpegPath)
	cfg.FFprobePath = getEnvOrDefault("FFPROBE_PATH", cfg.FFprobePath)
	cfg.AudioQuality = getEnvOrDefault("AUDIO_QUALITY", cfg.AudioQuality)
	cfg.DriveBaseURL = getEnvOrDefault("DRIVE_BASE_URL", cfg.DriveBaseURL)
	cfg.GoogleCredentialsFile = getEnvOrDefault("GOOGLE_CREDENTIALS_FILE", cfg.GoogleCredentialsFile)

	cfg.StorageDriver = getEnvOrDefault("STORAGE_DRIVER", cfg.StorageDriver)
	cfg.MinioEndpoint = getEnvOrDefault("MINIO_ENDPOINT", cfg.MinioEndpoint)
	cfg.MinioAccessKey = getEnvOrDefault("MINIO_ACCESS_KEY", cfg.MinioAccessKey)
	cfg.MinioSecretKey = getEnvOrDefault("MINIO_SECRET_KEY", cfg.MinioSecretKey)
	cfg.MinioBucket = getEnvOrDefault("MINIO_BUCKET", cfg.MinioBucket)
	cfg.S3Region = getEnvOrDefault("S3_REGION", cfg.S3Region)
	cfg.S3Endpoint = getEnvOrDefault("S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3AccessKey = getEnvOrDefault("S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = getEnvOrDefault("S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.S3Bucket = getEnvOrDefault("S3_BUCKET", cfg.S3Bucket)

	var err error
	if cfg.WorkerCount, err = envInt("WORKER_COUNT", cfg.WorkerCount); err != nil {
		return err
	}
	if cfg.MaxRetries, err = envInt("MAX_RETRIES", cfg.MaxRetries); err != nil {
		return err
	}
	if cfg.DownloadChunkSize, err = envInt("DOWNLOAD_CHUNK_SIZE", cfg.DownloadChunkSize); err != nil {
		return err
	}
	if cfg.SubmitRateBurst, err = envInt("SUBMIT_RATE_BURST", cfg.SubmitRateBurst); err != nil {
		return err
	}
	if v := os.Getenv("RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RETRY_BACKOFF: %w", err)
		}
		cfg.RetryBackoff = d
	}
	if v := os.Getenv("SUBMIT_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SUBMIT_RATE_LIMIT: %w", err)
		}
		cfg.SubmitRateLimit = f
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MINIO_USE_SSL: %w", err)
		}
		cfg.MinioUseSSL = b
	}
	if v := os.Getenv("S3_USE_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("S3_USE_PATH_STYLE: %w", err)
		}
		cfg.S3UsePathStyle = b
	}
	return nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", c.WorkerCount)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff must not be negative, got %s", c.RetryBackoff)
	}
	if strings.TrimSpace(c.ExtractionDir) == "" {
		return fmt.Errorf("extraction dir is required")
	}
	if c.DownloadChunkSize <= 0 {
		return fmt.Errorf("download chunk size must be positive, got %d", c.DownloadChunkSize)
	}
	switch c.StoreDriver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	switch c.QueueDriver {
	case DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("unknown queue driver %q", c.QueueDriver)
	}
	switch c.StorageDriver {
	case StorageNone, StorageMinio, StorageS3:
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, current int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return current, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
