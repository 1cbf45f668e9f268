package selfheal

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"elimfilters/internal/domain/catalog"
)

const (
	failuresSheet = "Failures"
	groupsSheet   = "Token Groups"
)

// ExportReport сохраняет отчет по журналу неудач в XLSX:
// лист событий и лист статистики токенов (если передан summary)
func ExportReport(filename string, events []catalog.FailureEvent, summary *RunSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", failuresSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	headers := []string{"Timestamp", "Failed Code", "Token", "Signals", "Suggested", "Reason"}
	writeHeader(f, failuresSheet, headers, headerStyle)

	for i, event := range events {
		row := i + 2
		f.SetCellValue(failuresSheet, fmt.Sprintf("A%d", row), event.ErrorTimestamp.Format(time.RFC3339))
		f.SetCellValue(failuresSheet, fmt.Sprintf("B%d", row), event.FailedQueryCode)
		f.SetCellValue(failuresSheet, fmt.Sprintf("C%d", row), DeriveToken(event))
		f.SetCellValue(failuresSheet, fmt.Sprintf("D%d", row), event.FamilyInferenceSignals)
		f.SetCellValue(failuresSheet, fmt.Sprintf("E%d", row), event.Suggestion())
		f.SetCellValue(failuresSheet, fmt.Sprintf("F%d", row), event.Reason)
	}
	setWidths(f, failuresSheet, []float64{22, 18, 12, 50, 16, 26})

	if summary != nil {
		if _, err := f.NewSheet(groupsSheet); err != nil {
			return fmt.Errorf("failed to create sheet: %w", err)
		}
		groupHeaders := []string{"Token", "Total", "Dominant", "Dominant Count", "Confidence", "Eligible", "Suggestions"}
		writeHeader(f, groupsSheet, groupHeaders, headerStyle)

		for i, g := range summary.Groups {
			row := i + 2
			f.SetCellValue(groupsSheet, fmt.Sprintf("A%d", row), g.Token)
			f.SetCellValue(groupsSheet, fmt.Sprintf("B%d", row), g.Total)
			f.SetCellValue(groupsSheet, fmt.Sprintf("C%d", row), g.Dominant)
			f.SetCellValue(groupsSheet, fmt.Sprintf("D%d", row), g.Count)
			f.SetCellValue(groupsSheet, fmt.Sprintf("E%d", row), g.Confidence)
			f.SetCellValue(groupsSheet, fmt.Sprintf("F%d", row), g.Eligible)
			f.SetCellValue(groupsSheet, fmt.Sprintf("G%d", row), formatCounts(g.Counts))
		}
		setWidths(f, groupsSheet, []float64{14, 8, 16, 14, 12, 10, 40})
	}

	if err := f.SaveAs(filename); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) {
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, style)
	}
}

func setWidths(f *excelize.File, sheet string, widths []float64) {
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}
}

func formatCounts(counts map[string]int) string {
	parts := make([]string, 0, len(counts))
	for value, count := range counts {
		parts = append(parts, fmt.Sprintf("%s=%d", value, count))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
