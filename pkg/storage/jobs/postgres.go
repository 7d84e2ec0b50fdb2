package jobs

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// PostgresConfig holds configuration for the PostgreSQL job ledger
type PostgresConfig struct {
	ConnectionString string
	MaxConnections   int32
	ConnectTimeout   time.Duration
}

// PostgresStore keeps job records in PostgreSQL
type PostgresStore struct {
	pool   *pgxpool.Pool
	config *PostgresConfig
}

// NewPostgresStore connects to PostgreSQL. Call MigrateToLatest before
// first use on a fresh database.
func NewPostgresStore(ctx context.Context, config *PostgresConfig) (*PostgresStore, error) {
	if config == nil {
		return nil, fmt.Errorf("database config is required")
	}

	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	// Set defaults
	if config.MaxConnections == 0 {
		config.MaxConnections = 10
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 30 * time.Second
	}

	// Create connection pool configuration
	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = config.MaxConnections
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	// Create connection pool with timeout
	timeoutCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(timeoutCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(timeoutCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{
		pool:   pool,
		config: config,
	}, nil
}

// Close closes the database connection pool
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ping verifies database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// MigrateToLatest applies all pending migrations embedded in the binary
func (s *PostgresStore) MigrateToLatest(ctx context.Context) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	migrationDB, err := sql.Open("postgres", s.config.ConnectionString)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer migrationDB.Close()

	if err := migrationDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to reach database for migration: %w", err)
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	// Apply migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// Save inserts or replaces a job record
func (s *PostgresStore) Save(ctx context.Context, record *Record) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("record must have an ID")
	}

	stages, err := json.Marshal(record.Stages)
	if err != nil {
		return fmt.Errorf("failed to encode stages: %w", err)
	}

	query := `
		INSERT INTO compression_jobs (
			job_id, source, input_bytes, output_bytes, bit_length, symbols,
			workers, format, input_digest, cache_hit, stages, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		ON CONFLICT (job_id) DO UPDATE SET
			source = EXCLUDED.source,
			input_bytes = EXCLUDED.input_bytes,
			output_bytes = EXCLUDED.output_bytes,
			bit_length = EXCLUDED.bit_length,
			symbols = EXCLUDED.symbols,
			workers = EXCLUDED.workers,
			format = EXCLUDED.format,
			input_digest = EXCLUDED.input_digest,
			cache_hit = EXCLUDED.cache_hit,
			stages = EXCLUDED.stages`

	_, err = s.pool.Exec(ctx, query,
		record.ID,
		record.Source,
		record.InputBytes,
		record.OutputBytes,
		int64(record.BitLength),
		record.Symbols,
		record.Workers,
		record.Format,
		record.InputDigest,
		record.CacheHit,
		string(stages),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save job record: %w", err)
	}

	return nil
}

const selectColumns = `
	SELECT job_id, source, input_bytes, output_bytes, bit_length, symbols,
		   workers, format, input_digest, cache_hit, stages, created_at
	FROM compression_jobs`

// Get retrieves a job record by ID
func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	record, err := scanRecord(s.pool.QueryRow(ctx, selectColumns+` WHERE job_id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job record: %w", err)
	}
	return record, nil
}

// Recent returns up to limit records, newest first
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, selectColumns+` ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query job records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job records: %w", err)
	}

	return records, nil
}

// Count returns the number of stored job records
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM compression_jobs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count job records: %w", err)
	}
	return count, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	record := &Record{}
	var bitLength int64
	var stages []byte

	err := row.Scan(
		&record.ID,
		&record.Source,
		&record.InputBytes,
		&record.OutputBytes,
		&bitLength,
		&record.Symbols,
		&record.Workers,
		&record.Format,
		&record.InputDigest,
		&record.CacheHit,
		&stages,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.BitLength = uint64(bitLength)
	if err := json.Unmarshal(stages, &record.Stages); err != nil {
		return nil, fmt.Errorf("failed to decode stages: %w", err)
	}
	return record, nil
}
