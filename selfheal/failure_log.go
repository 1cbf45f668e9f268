// Package selfheal журнал неудачных разрешений и майнер выученных правил
package selfheal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"elimfilters/internal/domain/catalog"
	"elimfilters/internal/metrics"
)

// Причины неудачи, записываемые в журнал
const (
	ReasonUnresolved         = "unresolved_classification"
	ReasonUnknownPrefix      = "unknown_prefix_rule"
	ReasonInsufficientDigits = "insufficient_digits"
	ReasonGenerationFailed   = "sku_generation_failed"
)

// FailureEntry данные неудачи от вызывающего кода; время ставит журнал
type FailureEntry struct {
	FailedQueryCode        string
	FamilyInferenceSignals string
	SuggestedFamilyDuty    *string
	Reason                 string
}

// FailureRecorder принимает события неудач. Реализации не возвращают ошибок вызывающему
type FailureRecorder interface {
	AppendFailure(entry FailureEntry)
}

const (
	failureLogLockStale = 30 * time.Second
	failureLogLockWait  = 10 * time.Second
	failureLogLockPoll  = 5 * time.Millisecond
)

// FailureLog журнал неудач в виде JSON-массива, по одному событию на строку.
// Только дозапись на месте; существующие байты файла не переписываются.
// Запись между процессами сериализуется файловой блокировкой рядом с журналом
type FailureLog struct {
	path   string
	logger *zap.Logger
	now    func() time.Time
	lock   *FileLock
	mu     sync.Mutex
}

// NewFailureLog создает журнал. Файл создается при первой записи
func NewFailureLog(path string, logger *zap.Logger) *FailureLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FailureLog{
		path:   path,
		logger: logger,
		now:    time.Now,
		lock:   NewFileLock(path+".lock", failureLogLockStale),
	}
}

// Path путь к файлу журнала
func (l *FailureLog) Path() string {
	return l.path
}

// AppendFailure дописывает событие с текущим временем.
// Ошибки ввода-вывода логируются и не пробрасываются
func (l *FailureLog) AppendFailure(entry FailureEntry) {
	event := catalog.FailureEvent{
		ErrorTimestamp:         l.now().UTC(),
		FailedQueryCode:        entry.FailedQueryCode,
		FamilyInferenceSignals: entry.FamilyInferenceSignals,
		SuggestedFamilyDuty:    entry.SuggestedFamilyDuty,
		Reason:                 entry.Reason,
	}

	if err := l.append(event); err != nil {
		l.logger.Error("Failed to append failure event",
			zap.String("path", l.path),
			zap.String("code", entry.FailedQueryCode),
			zap.Error(err),
		)
		return
	}
	metrics.FailuresLoggedTotal.WithLabelValues(entry.Reason).Inc()
}

func (l *FailureLog) append(event catalog.FailureEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode failure event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create failure log directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), failureLogLockWait)
	defer cancel()
	if err := l.lock.AcquireWait(ctx, failureLogLockPoll); err != nil {
		return fmt.Errorf("failed to lock failure log: %w", err)
	}
	defer func() {
		if err := l.lock.Release(); err != nil {
			l.logger.Error("Failed to release failure log lock", zap.Error(err))
		}
	}()

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open failure log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat failure log: %w", err)
	}

	first, _, err := scanSpace(f, 0, info.Size(), true)
	if err != nil {
		return err
	}
	switch {
	case first == 0:
		return writeTail(f, 0, "[\n", data)
	case first != '[':
		// не массив: файл откладывается целиком, журнал начинается заново
		f.Close()
		aside := fmt.Sprintf("%s.corrupt-%s", l.path, l.now().UTC().Format("20060102T150405Z"))
		if err := os.Rename(l.path, aside); err != nil {
			return fmt.Errorf("failed to set aside failure log: %w", err)
		}
		l.logger.Warn("Failure log is not a JSON array, set aside",
			zap.String("path", l.path),
			zap.String("moved_to", aside),
		)
		fresh, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return fmt.Errorf("failed to create failure log: %w", err)
		}
		defer fresh.Close()
		return writeTail(fresh, 0, "[\n", data)
	}

	// Дозапись на месте перед закрывающей скобкой; существующие байты не меняются
	last, pos, err := scanSpace(f, 0, info.Size(), false)
	if err != nil {
		return err
	}
	if last == ']' {
		if last, pos, err = scanSpace(f, 0, pos, false); err != nil {
			return err
		}
	}
	sep := ",\n"
	if last == '[' || last == ',' {
		sep = "\n"
	}
	return writeTail(f, pos+1, sep, data)
}

func writeTail(f *os.File, offset int64, sep string, data []byte) error {
	tail := make([]byte, 0, len(sep)+len(data)+3)
	tail = append(tail, sep...)
	tail = append(tail, data...)
	tail = append(tail, "\n]\n"...)

	if _, err := f.WriteAt(tail, offset); err != nil {
		return fmt.Errorf("failed to write failure log: %w", err)
	}
	if err := f.Truncate(offset + int64(len(tail))); err != nil {
		return fmt.Errorf("failed to truncate failure log: %w", err)
	}
	return f.Sync()
}

// scanSpace ищет первый (forward) или последний непробельный байт в [from, to).
// Возвращает 0, если таких нет
func scanSpace(f *os.File, from, to int64, forward bool) (byte, int64, error) {
	const chunk = 512
	buf := make([]byte, chunk)
	for from < to {
		size := int64(chunk)
		if to-from < size {
			size = to - from
		}
		at := from
		if !forward {
			at = to - size
		}
		n, err := f.ReadAt(buf[:size], at)
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, 0, fmt.Errorf("failed to read failure log: %w", err)
		}
		if forward {
			for i := 0; i < n; i++ {
				if !isSpace(buf[i]) {
					return buf[i], at + int64(i), nil
				}
			}
			from += size
		} else {
			for i := n - 1; i >= 0; i-- {
				if !isSpace(buf[i]) {
					return buf[i], at + int64(i), nil
				}
			}
			to -= size
		}
	}
	return 0, from, nil
}

// ReadAll читает все события. Поврежденные записи пропускаются и учитываются в skipped.
// Отсутствующий файл - пустой журнал
func (l *FailureLog) ReadAll() (events []catalog.FailureEvent, skipped int, err error) {
	l.mu.Lock()
	data, err := os.ReadFile(l.path)
	l.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to read failure log: %w", err)
	}

	raws, skipped := decodeRawEntries(data)
	events = make([]catalog.FailureEvent, 0, len(raws))
	for _, raw := range raws {
		var event catalog.FailureEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			skipped++
			continue
		}
		events = append(events, event)
	}
	return events, skipped, nil
}

// Latest возвращает последние limit событий, новые первыми
func (l *FailureLog) Latest(limit int) ([]catalog.FailureEvent, error) {
	events, _, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].ErrorTimestamp.After(events[j].ErrorTimestamp)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// decodeRawEntries разбирает JSON-массив объектов. Поврежденный элемент
// пропускается, разбор продолжается со следующей строки, начинающейся с '{'.
// Многострочные объекты и отсутствие закрывающей скобки допускаются
func decodeRawEntries(data []byte) ([]json.RawMessage, int) {
	var (
		out     []json.RawMessage
		skipped int
	)

	i := skipSpace(data, 0)
	if i < len(data) && data[i] == '[' {
		i++
	}
	for i < len(data) {
		switch c := data[i]; {
		case isSpace(c) || c == ',' || c == ']':
			i++
		case c == '{':
			end, ok := scanObject(data, i)
			if ok && json.Valid(data[i:end]) {
				out = append(out, json.RawMessage(data[i:end]))
				i = end
				continue
			}
			skipped++
			i = nextObjectLine(data, i)
		default:
			skipped++
			for i < len(data) && data[i] != ',' && data[i] != '\n' && data[i] != '{' {
				i++
			}
		}
	}
	return out, skipped
}

// scanObject находит конец объекта, начинающегося в start.
// Перевод строки внутри строкового литерала или конец данных означают повреждение
func scanObject(data []byte, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for j := start; j < len(data); j++ {
		c := data[j]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			case c == '\n':
				return j, false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return j + 1, true
			}
		}
	}
	return len(data), false
}

// nextObjectLine позиция первой строки после from, начинающейся с '{'
func nextObjectLine(data []byte, from int) int {
	for {
		nl := bytes.IndexByte(data[from:], '\n')
		if nl < 0 {
			return len(data)
		}
		from += nl + 1
		if j := skipSpace(data, from); j < len(data) && data[j] == '{' {
			return j
		}
	}
}

func skipSpace(data []byte, i int) int {
	for i < len(data) && isSpace(data[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
