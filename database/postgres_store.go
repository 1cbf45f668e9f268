package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"elimfilters/internal/domain/catalog"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sku_records (
	sku              TEXT PRIMARY KEY,
	query_code       TEXT NOT NULL DEFAULT '',
	family           TEXT NOT NULL DEFAULT '',
	duty             TEXT NOT NULL DEFAULT '',
	brand            TEXT NOT NULL DEFAULT '',
	policy           TEXT NOT NULL DEFAULT '',
	description      TEXT NOT NULL DEFAULT '',
	specs            TEXT NOT NULL DEFAULT '',
	cross_references TEXT NOT NULL DEFAULT '',
	source           TEXT NOT NULL DEFAULT '',
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sku_records_query_code ON sku_records(query_code);
`

// PostgresStore хранилище записей в PostgreSQL
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore подключается по DSN и создает схему
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create postgres schema: %w", err)
	}

	logger.Info("Postgres store connected",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
	)
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Name реализует Store
func (s *PostgresStore) Name() string {
	return "postgres"
}

// UpsertBySku создает или обновляет запись; пустые поля сохраняют прежние значения
func (s *PostgresStore) UpsertBySku(ctx context.Context, record catalog.Record) error {
	if err := validateRecord(&record); err != nil {
		return err
	}

	query := `
		INSERT INTO sku_records (sku, query_code, family, duty, brand, policy,
		                         description, specs, cross_references, source, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (sku) DO UPDATE SET
			query_code = COALESCE(NULLIF(EXCLUDED.query_code, ''), sku_records.query_code),
			family = COALESCE(NULLIF(EXCLUDED.family, ''), sku_records.family),
			duty = COALESCE(NULLIF(EXCLUDED.duty, ''), sku_records.duty),
			brand = COALESCE(NULLIF(EXCLUDED.brand, ''), sku_records.brand),
			policy = COALESCE(NULLIF(EXCLUDED.policy, ''), sku_records.policy),
			description = COALESCE(NULLIF(EXCLUDED.description, ''), sku_records.description),
			specs = COALESCE(NULLIF(EXCLUDED.specs, ''), sku_records.specs),
			cross_references = COALESCE(NULLIF(EXCLUDED.cross_references, ''), sku_records.cross_references),
			source = COALESCE(NULLIF(EXCLUDED.source, ''), sku_records.source),
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		record.SKU, record.QueryCode, string(record.Family), string(record.Duty),
		record.Brand, string(record.Policy), record.Description,
		encodeSpecs(record.Specs), encodeList(record.CrossReferences),
		record.Source, record.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", record.SKU, err)
	}
	return nil
}

// SearchBySku ищет запись по SKU, затем по коду запроса (самая свежая)
func (s *PostgresStore) SearchBySku(ctx context.Context, code string) (*catalog.Record, error) {
	query := `
		SELECT sku, query_code, family, duty, brand, policy, description,
		       specs, cross_references, source, updated_at
		FROM sku_records
		WHERE sku = $1 OR query_code = $1
		ORDER BY (sku = $1) DESC, updated_at DESC
		LIMIT 1
	`

	var (
		record               catalog.Record
		family, duty, policy string
		specs, cross         string
	)
	err := s.pool.QueryRow(ctx, query, code).Scan(
		&record.SKU, &record.QueryCode, &family, &duty, &record.Brand, &policy,
		&record.Description, &specs, &cross, &record.Source, &record.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", catalog.ErrRecordNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search record %s: %w", code, err)
	}

	record.Family = catalog.Family(family)
	record.Duty = catalog.Duty(duty)
	record.Policy = catalog.Policy(policy)
	record.Specs = decodeSpecs(specs)
	record.CrossReferences = decodeList(cross)
	return &record, nil
}

// Ping проверяет соединение
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close закрывает пул
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
