package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("Expected 3 retries, got %d", cfg.MaxRetries)
	}
	if cfg.RetryBackoff != 30*time.Second {
		t.Errorf("Expected 30s backoff, got %s", cfg.RetryBackoff)
	}
	if cfg.DownloadChunkSize != 8192 {
		t.Errorf("Expected 8192 chunk size, got %d", cfg.DownloadChunkSize)
	}
	if cfg.AudioQuality != "192" {
		t.Errorf("Expected audio quality 192, got %s", cfg.AudioQuality)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auddy.yaml")
	data := []byte("extraction_dir: /srv/audio\nworker_count: 7\nretry_backoff: 5s\nstorage_driver: minio\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("WORKER_COUNT", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ExtractionDir != "/srv/audio" {
		t.Errorf("Expected extraction dir from file, got %s", cfg.ExtractionDir)
	}
	if cfg.WorkerCount != 2 {
		t.Errorf("Expected env to override worker count, got %d", cfg.WorkerCount)
	}
	if cfg.RetryBackoff != 5*time.Second {
		t.Errorf("Expected 5s backoff, got %s", cfg.RetryBackoff)
	}
	if cfg.StorageDriver != StorageMinio {
		t.Errorf("Expected minio storage, got %s", cfg.StorageDriver)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("MAX_RETRIES", "three")

	if _, err := Load(); err == nil {
		t.Error("Expected error for non-numeric MAX_RETRIES")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.WorkerCount = 0 }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"empty extraction dir", func(c *Config) { c.ExtractionDir = " " }},
		{"unknown store", func(c *Config) { c.StoreDriver = "mysql" }},
		{"unknown queue", func(c *Config) { c.QueueDriver = "kafka" }},
		{"unknown storage", func(c *Config) { c.StorageDriver = "gcs" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}

	if err := Defaults().Validate(); err != nil {
		t.Errorf("Defaults should validate, got %v", err)
	}
}
