package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

type DB struct {
	*sql.DB
}

// New connects to Postgres with the given parameters.
func New(host, port, user, password, dbname string) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)
	return Open(connStr)
}

// Open connects to Postgres using a lib/pq connection string or URL.
func Open(connStr string) (*DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

// Ping checks the database connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS extractions (
		id UUID PRIMARY KEY,
		source_url TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		audio_format VARCHAR(10) NOT NULL DEFAULT 'mp3',
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		file_path TEXT,
		file_size BIGINT,
		duration_seconds INTEGER,
		error_message TEXT,
		task_id VARCHAR(255),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMP WITH TIME ZONE,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE
	);

	ALTER TABLE extractions ADD COLUMN IF NOT EXISTS retry_count INTEGER NOT NULL DEFAULT 0;

	CREATE INDEX IF NOT EXISTS idx_extractions_status ON extractions(status);
	CREATE INDEX IF NOT EXISTS idx_extractions_task_id ON extractions(task_id);
	CREATE INDEX IF NOT EXISTS idx_extractions_created_at ON extractions(created_at DESC) WHERE NOT is_deleted;
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
