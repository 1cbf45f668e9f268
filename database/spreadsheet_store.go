package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"elimfilters/internal/domain/catalog"
)

const catalogSheet = "Catalog"

var spreadsheetHeaders = []string{
	"SKU", "Query Code", "Family", "Duty", "Brand", "Policy",
	"Description", "Specs", "Cross References", "Source", "Updated At",
}

// SpreadsheetStore хранилище записей в XLSX-файле (лист Catalog, строка на SKU).
// Предназначено для небольших каталогов и выгрузки менеджерам
type SpreadsheetStore struct {
	path string
	mu   sync.Mutex
}

// NewSpreadsheetStore создает хранилище; файл создается при первой записи
func NewSpreadsheetStore(path string) *SpreadsheetStore {
	return &SpreadsheetStore{path: path}
}

// Name реализует Store
func (s *SpreadsheetStore) Name() string {
	return "spreadsheet"
}

// UpsertBySku обновляет строку с тем же SKU или дописывает новую
func (s *SpreadsheetStore) UpsertBySku(ctx context.Context, record catalog.Record) error {
	if err := validateRecord(&record); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(catalogSheet)
	if err != nil {
		return fmt.Errorf("failed to read sheet: %w", err)
	}

	rowNum := len(rows) + 1
	var existing []string
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) > 0 && row[0] == record.SKU {
			rowNum = i + 1
			existing = row
			break
		}
	}

	values := recordToRow(record)
	for col, value := range values {
		if value == "" && col < len(existing) {
			value = existing[col]
		}
		cell, _ := excelize.CoordinatesToCellName(col+1, rowNum)
		if err := f.SetCellStr(catalogSheet, cell, value); err != nil {
			return fmt.Errorf("failed to write cell %s: %w", cell, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

// SearchBySku ищет строку по SKU, затем по коду запроса
func (s *SpreadsheetStore) SearchBySku(ctx context.Context, code string) (*catalog.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", catalog.ErrRecordNotFound, code)
		}
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(catalogSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	var byQuery []string
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if row[0] == code {
			return rowToRecord(row), nil
		}
		if byQuery == nil && len(row) > 1 && row[1] == code {
			byQuery = row
		}
	}
	if byQuery != nil {
		return rowToRecord(byQuery), nil
	}
	return nil, fmt.Errorf("%w: %s", catalog.ErrRecordNotFound, code)
}

// Close реализует Store
func (s *SpreadsheetStore) Close() error {
	return nil
}

// open открывает файл или создает новый с листом и заголовками
func (s *SpreadsheetStore) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}

	f = excelize.NewFile()
	if err := f.SetSheetName("Sheet1", catalogSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	for i, header := range spreadsheetHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(catalogSheet, cell, header)
	}
	return f, nil
}

func recordToRow(r catalog.Record) []string {
	return []string{
		r.SKU, r.QueryCode, string(r.Family), string(r.Duty), r.Brand, string(r.Policy),
		r.Description, encodeSpecs(r.Specs), strings.Join(r.CrossReferences, "; "),
		r.Source, r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func rowToRecord(row []string) *catalog.Record {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}

	record := &catalog.Record{
		SKU:         cell(0),
		QueryCode:   cell(1),
		Family:      catalog.Family(cell(2)),
		Duty:        catalog.Duty(cell(3)),
		Brand:       cell(4),
		Policy:      catalog.Policy(cell(5)),
		Description: cell(6),
		Specs:       decodeSpecs(cell(7)),
		Source:      cell(9),
	}
	if refs := cell(8); refs != "" {
		for _, ref := range strings.Split(refs, ";") {
			if ref = strings.TrimSpace(ref); ref != "" {
				record.CrossReferences = append(record.CrossReferences, ref)
			}
		}
	}
	if ts, err := time.Parse(time.RFC3339, cell(10)); err == nil {
		record.UpdatedAt = ts
	}
	return record
}
