package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"elimfilters/internal/domain/catalog"
)

const sqliteSchema = `
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
	updated_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sku_records_query_code ON sku_records(query_code);
`

// DBConfig конфигурация пула соединений
type DBConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLiteStore хранилище записей в SQLite
type SQLiteStore struct {
	conn *sql.DB
	path string
}

// NewSQLiteStore открывает базу и создает схему
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	config := DBConfig{}

	// Для in-memory SQLite нужно ровно одно соединение, иначе каждое получит пустую БД
	if isInMemory(dbPath) {
		config.MaxOpenConns = 1
		config.MaxIdleConns = 1
	}
	return NewSQLiteStoreWithConfig(dbPath, config)
}

// NewSQLiteStoreWithConfig открывает базу с настройками пула
func NewSQLiteStoreWithConfig(dbPath string, config DBConfig) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(config.MaxOpenConns)
	} else {
		conn.SetMaxOpenConns(10)
	}
	if config.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(config.MaxIdleConns)
	} else {
		conn.SetMaxIdleConns(3)
	}
	if config.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(config.ConnMaxLifetime)
	} else {
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if !isInMemory(dbPath) {
		// Ошибка WAL не критична
		conn.Exec("PRAGMA journal_mode = WAL")
	}
	conn.Exec("PRAGMA busy_timeout = 5000")

	if _, err := conn.Exec(sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}

	return &SQLiteStore{conn: conn, path: dbPath}, nil
}

func isInMemory(dbPath string) bool {
	if dbPath == ":memory:" {
		return true
	}
	return strings.HasPrefix(dbPath, "file:") && strings.Contains(dbPath, "mode=memory")
}

// Name реализует Store
func (s *SQLiteStore) Name() string {
	return "sqlite"
}

// Path путь к файлу базы
func (s *SQLiteStore) Path() string {
	return s.path
}

// DB доступ к соединению (резервное копирование)
func (s *SQLiteStore) DB() *sql.DB {
	return s.conn
}

// UpsertBySku создает или обновляет запись; пустые поля сохраняют прежние значения
func (s *SQLiteStore) UpsertBySku(ctx context.Context, record catalog.Record) error {
	if err := validateRecord(&record); err != nil {
		return err
	}

	query := `
		INSERT INTO sku_records (sku, query_code, family, duty, brand, policy,
		                         description, specs, cross_references, source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sku) DO UPDATE SET
			query_code = COALESCE(NULLIF(excluded.query_code, ''), sku_records.query_code),
			family = COALESCE(NULLIF(excluded.family, ''), sku_records.family),
			duty = COALESCE(NULLIF(excluded.duty, ''), sku_records.duty),
			brand = COALESCE(NULLIF(excluded.brand, ''), sku_records.brand),
			policy = COALESCE(NULLIF(excluded.policy, ''), sku_records.policy),
			description = COALESCE(NULLIF(excluded.description, ''), sku_records.description),
			specs = COALESCE(NULLIF(excluded.specs, ''), sku_records.specs),
			cross_references = COALESCE(NULLIF(excluded.cross_references, ''), sku_records.cross_references),
			source = COALESCE(NULLIF(excluded.source, ''), sku_records.source),
			updated_at = excluded.updated_at
	`

	_, err := s.conn.ExecContext(ctx, query,
		record.SKU, record.QueryCode, string(record.Family), string(record.Duty),
		record.Brand, string(record.Policy), record.Description,
		encodeSpecs(record.Specs), encodeList(record.CrossReferences),
		record.Source, record.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", record.SKU, err)
	}
	return nil
}

// SearchBySku ищет запись по SKU, затем по коду запроса (самая свежая)
func (s *SQLiteStore) SearchBySku(ctx context.Context, code string) (*catalog.Record, error) {
	query := `
		SELECT sku, query_code, family, duty, brand, policy, description,
		       specs, cross_references, source, updated_at
		FROM sku_records
		WHERE sku = ? OR query_code = ?
		ORDER BY CASE WHEN sku = ? THEN 0 ELSE 1 END, updated_at DESC
		LIMIT 1
	`

	var (
		record                   catalog.Record
		family, duty, policy     string
		specs, cross, updatedRaw string
	)
	err := s.conn.QueryRowContext(ctx, query, code, code, code).Scan(
		&record.SKU, &record.QueryCode, &family, &duty, &record.Brand, &policy,
		&record.Description, &specs, &cross, &record.Source, &updatedRaw,
	)
	if errors.Is(err, sql.ErrNoRows) {
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
	if ts, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		record.UpdatedAt = ts
	}
	return &record, nil
}

// Count количество записей
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM sku_records").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// BackupTo сохраняет консистентную копию базы в файл (VACUUM INTO)
func (s *SQLiteStore) BackupTo(ctx context.Context, destPath string) error {
	if _, err := s.conn.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("failed to backup sqlite database: %w", err)
	}
	return nil
}

// Close закрывает соединение
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
