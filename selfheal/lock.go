package selfheal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrLockBusy блокировку держит другой процесс или экземпляр
	ErrLockBusy = errors.New("lock is held")

	// ErrMinerBusy другой экземпляр майнера держит блокировку
	ErrMinerBusy = errors.New("self-heal miner is already running")
)

// FileLock эксклюзивная файловая блокировка (O_EXCL). Блокировка старше staleAfter
// считается брошенной и снимается
type FileLock struct {
	path       string
	staleAfter time.Duration
}

// NewFileLock создает блокировку на пути path
func NewFileLock(path string, staleAfter time.Duration) *FileLock {
	return &FileLock{path: path, staleAfter: staleAfter}
}

// Acquire захватывает блокировку или сразу возвращает ErrLockBusy
func (l *FileLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			return f.Close()
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock file: %w", err)
		}
		if !l.removeIfStale() {
			return ErrLockBusy
		}
	}
	return ErrLockBusy
}

// AcquireWait ждет освобождения блокировки, опрашивая ее с интервалом poll
func (l *FileLock) AcquireWait(ctx context.Context, poll time.Duration) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		err := l.Acquire()
		if !errors.Is(err, ErrLockBusy) {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrLockBusy, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Release снимает блокировку
func (l *FileLock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (l *FileLock) removeIfStale() bool {
	if l.staleAfter <= 0 {
		return false
	}
	info, err := os.Stat(l.path)
	if err != nil {
		return os.IsNotExist(err)
	}
	if time.Since(info.ModTime()) < l.staleAfter {
		return false
	}
	return os.Remove(l.path) == nil
}

// lockHolder читает pid из файла блокировки для диагностики
func (l *FileLock) lockHolder() int {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0
	}
	line, _, _ := strings.Cut(string(data), "\n")
	pid, _ := strconv.Atoi(strings.TrimSpace(line))
	return pid
}
