package main

import (
	"archive/zip"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"elimfilters/classification"
	"elimfilters/database"
	"elimfilters/internal/config"
	"elimfilters/internal/infrastructure/backup"
	"elimfilters/internal/logging"
	"elimfilters/selfheal"
)

// remoteStore удаленное хранилище копий
type remoteStore interface {
	Upload(ctx context.Context, localPath string) (string, error)
	Download(ctx context.Context, key, dest string) error
	List(ctx context.Context, name string) ([]backup.Object, error)
	Latest(ctx context.Context, name string) (string, error)
}

// manager команды обслуживания файлов данных
type manager struct {
	cfg    *config.Config
	out    io.Writer
	logger *zap.Logger
	now    func() time.Time

	// remote создает клиент удаленного хранилища; подменяется в тестах
	remote func(ctx context.Context) (remoteStore, error)
}

func newManager(cfg *config.Config, out io.Writer, logger *zap.Logger) *manager {
	m := &manager{cfg: cfg, out: out, logger: logger, now: time.Now}
	m.remote = func(ctx context.Context) (remoteStore, error) {
		if !cfg.Backup.Enabled() {
			return nil, fmt.Errorf("remote backup is not configured (set BACKUP_S3_BUCKET)")
		}
		return backup.NewS3Backup(ctx, cfg.Backup, logger)
	}
	return m
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Logging())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	m := newManager(cfg, os.Stdout, logger)
	if err := m.run(context.Background(), os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, errUnknownCommand) {
			printUsage()
		}
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

var errUnknownCommand = errors.New("unknown command")

func printUsage() {
	fmt.Println("Database Manager - CLI utility for ELIMFILTERS data files")
	fmt.Println()
	fmt.Println("Usage: db-manager <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  stats                     Show record, rule and failure counts")
	fmt.Println("  list [--remote]           List data files (or remote backups)")
	fmt.Println("  backup [--output=path]    Create a local zip backup of all data files")
	fmt.Println("  push                      Upload snapshots of data files to S3")
	fmt.Println("  pull --file=name [--key=] Restore a data file from S3 (latest by default)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  db-manager stats")
	fmt.Println("  db-manager backup --output=backup.zip")
	fmt.Println("  db-manager pull --file=learned_rules.json")
}

func (m *manager) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "stats":
		return m.stats(ctx)
	case "list":
		return m.list(ctx, args)
	case "backup":
		return m.backup(ctx, args)
	case "push":
		return m.push(ctx)
	case "pull":
		return m.pull(ctx, args)
	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, command)
	}
}

// dataFiles файлы данных в порядке вывода
func (m *manager) dataFiles() []string {
	files := []string{m.cfg.SQLitePath, m.cfg.LearnedRulesPath, m.cfg.SelfHeal.FailureLogPath}
	if m.cfg.SpreadsheetPath != "" {
		files = append(files, m.cfg.SpreadsheetPath)
	}
	return files
}

func (m *manager) stats(ctx context.Context) error {
	if m.cfg.SQLitePath != "" {
		if _, err := os.Stat(m.cfg.SQLitePath); err == nil {
			store, err := database.NewSQLiteStore(m.cfg.SQLitePath)
			if err != nil {
				return err
			}
			defer store.Close()
			count, err := store.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(m.out, "records:        %d\n", count)
		} else {
			fmt.Fprintf(m.out, "records:        0 (no database)\n")
		}
	}

	rules, err := classification.LoadRuleTable(m.cfg.LearnedRulesPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "learned rules:  %d\n", rules.Len())

	events, skipped, err := selfheal.NewFailureLog(m.cfg.SelfHeal.FailureLogPath, m.logger).ReadAll()
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "failure events: %d\n", len(events))
	if skipped > 0 {
		fmt.Fprintf(m.out, "corrupt lines:  %d\n", skipped)
	}
	return nil
}

func (m *manager) list(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("list", flag.ContinueOnError)
	remote := flags.Bool("remote", false, "List remote backups")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *remote {
		store, err := m.remote(ctx)
		if err != nil {
			return err
		}
		objects, err := store.List(ctx, "")
		if err != nil {
			return err
		}
		for _, obj := range objects {
			fmt.Fprintf(m.out, "%-70s %10d  %s\n", obj.Key, obj.Size, obj.LastModified.Format(time.RFC3339))
		}
		fmt.Fprintf(m.out, "Total: %d backups\n", len(objects))
		return nil
	}

	for _, path := range m.dataFiles() {
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(m.out, "%-50s %s\n", path, "missing")
			continue
		}
		fmt.Fprintf(m.out, "%-50s %10d  %s\n", path, info.Size(), info.ModTime().Format(time.RFC3339))
	}
	return nil
}

// snapshot копирует файлы данных в dir. База SQLite копируется через VACUUM INTO,
// остальные файлы побайтно. Отсутствующие файлы пропускаются
func (m *manager) snapshot(ctx context.Context, dir string) ([]string, error) {
	var files []string
	for _, path := range m.dataFiles() {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}

		dest := filepath.Join(dir, filepath.Base(path))
		if path == m.cfg.SQLitePath {
			store, err := database.NewSQLiteStore(path)
			if err != nil {
				return nil, err
			}
			err = store.BackupTo(ctx, dest)
			store.Close()
			if err != nil {
				return nil, err
			}
		} else if err := copyFile(path, dest); err != nil {
			return nil, err
		}
		files = append(files, dest)
	}
	return files, nil
}

func (m *manager) backup(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("backup", flag.ContinueOnError)
	outputPath := flags.String("output", "", "Output path for backup file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	backupPath := *outputPath
	if backupPath == "" {
		backupPath = filepath.Join("data", "backups",
			fmt.Sprintf("backup_%s.zip", m.now().Format("20060102_150405")))
	} else if !strings.HasSuffix(backupPath, ".zip") {
		backupPath += ".zip"
	}
	if err := os.MkdirAll(filepath.Dir(backupPath), 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "elim-backup-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	files, err := m.snapshot(ctx, tmpDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no data files found")
	}

	totalSize, err := writeZip(backupPath, files)
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Backup created: %s\n", backupPath)
	fmt.Fprintf(m.out, "Files: %d, total size: %d bytes\n", len(files), totalSize)
	return nil
}

func (m *manager) push(ctx context.Context) error {
	store, err := m.remote(ctx)
	if err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "elim-push-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	files, err := m.snapshot(ctx, tmpDir)
	if err != nil {
		return err
	}
	for _, file := range files {
		key, err := store.Upload(ctx, file)
		if err != nil {
			return err
		}
		fmt.Fprintf(m.out, "Uploaded: %s\n", key)
	}
	return nil
}

func (m *manager) pull(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("pull", flag.ContinueOnError)
	file := flags.String("file", "", "Data file name (catalog.db, learned_rules.json, ...)")
	key := flags.String("key", "", "Exact object key (latest backup by default)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("--file is required")
	}

	var dest string
	for _, path := range m.dataFiles() {
		if filepath.Base(path) == *file {
			dest = path
			break
		}
	}
	if dest == "" {
		return fmt.Errorf("unknown data file %q", *file)
	}

	store, err := m.remote(ctx)
	if err != nil {
		return err
	}
	objectKey := *key
	if objectKey == "" {
		if objectKey, err = store.Latest(ctx, *file); err != nil {
			return err
		}
	}
	if err := store.Download(ctx, objectKey, dest); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Restored %s from %s\n", dest, objectKey)
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeZip(zipPath string, files []string) (int64, error) {
	zipFile, err := os.Create(zipPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create backup file: %w", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)
	var totalSize int64
	for _, file := range files {
		n, err := addToZip(zipWriter, file)
		if err != nil {
			zipWriter.Close()
			return 0, err
		}
		totalSize += n
	}
	if err := zipWriter.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize backup: %w", err)
	}
	return totalSize, nil
}

func addToZip(zw *zip.Writer, path string) (int64, error) {
	src, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, err
	}
	header.Name = filepath.Base(path)
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return 0, err
	}
	return io.Copy(w, src)
}
