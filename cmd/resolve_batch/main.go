// Команда resolve_batch прогоняет список кодов через политику создания SKU.
// Вход: текстовый файл (код в строке) или XLSX (первый столбец первого листа).
// Выход: XLSX или CSV (по расширению), без -output CSV в stdout
package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	skuapp "elimfilters/internal/application/sku"
	"elimfilters/internal/config"
	"elimfilters/internal/container"
	"elimfilters/internal/domain/catalog"
)

const resultsSheet = "Results"

var resultHeaders = []string{"Code", "OK", "SKU", "Family", "Duty", "Brand", "Policy", "Reason", "Error"}

// policy политика создания SKU
type policy interface {
	ApplyPolicy(ctx context.Context, req skuapp.Request) skuapp.Result
}

type options struct {
	input    string
	output   string
	duty     catalog.Duty
	workers  int
	ratePerS float64
}

func main() {
	var (
		opts options
		duty string
	)
	flag.StringVar(&opts.input, "input", "", "Input file: .txt (one code per line) or .xlsx")
	flag.StringVar(&opts.output, "output", "", "Output file: .xlsx or .csv (CSV to stdout if empty)")
	flag.StringVar(&duty, "duty", "", "Duty hint for all codes (HD or LD)")
	flag.IntVar(&opts.workers, "workers", 4, "Parallel resolutions")
	flag.Float64Var(&opts.ratePerS, "rate", 5, "Resolutions per second (0 = unlimited)")
	flag.Parse()

	if opts.input == "" {
		flag.Usage()
		os.Exit(2)
	}
	parsed, err := catalog.ParseDuty(duty)
	if err != nil {
		log.Fatalf("Invalid -duty: %v", err)
	}
	opts.duty = parsed

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	c, err := container.NewContainer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	codes, err := readCodes(opts.input)
	if err != nil {
		c.Logger.Fatal("Failed to read input", zap.Error(err))
	}

	results, err := resolveAll(ctx, c.UseCase, codes, opts)
	if err != nil {
		c.Logger.Error("Batch interrupted", zap.Error(err))
	}

	if err := writeResults(opts.output, results, os.Stdout); err != nil {
		c.Logger.Fatal("Failed to write results", zap.Error(err))
	}

	ok := 0
	for _, r := range results {
		if r.OK {
			ok++
		}
	}
	c.Logger.Info("Batch finished",
		zap.Int("codes", len(codes)),
		zap.Int("resolved", ok),
		zap.Int("failed", len(results)-ok),
	)
}

// readCodes читает коды, пропуская пустые строки, комментарии (#) и заголовок "code"
func readCodes(path string) ([]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readCodesXLSX(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var codes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if code := cleanCode(scanner.Text()); code != "" {
			codes = append(codes, code)
		}
	}
	return codes, scanner.Err()
}

func readCodesXLSX(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	var codes []string
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		if code := cleanCode(row[0]); code != "" {
			codes = append(codes, code)
		}
	}
	return codes, nil
}

func cleanCode(line string) string {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") || strings.EqualFold(line, "code") {
		return ""
	}
	return line
}

// resolveAll применяет политику ко всем кодам; порядок результатов совпадает с входом.
// Прерывание контекста оставляет необработанные коды с ошибкой
func resolveAll(ctx context.Context, svc policy, codes []string, opts options) ([]skuapp.Result, error) {
	limit := rate.Inf
	if opts.ratePerS > 0 {
		limit = rate.Limit(opts.ratePerS)
	}
	limiter := rate.NewLimiter(limit, 1)

	workers := opts.workers
	if workers < 1 {
		workers = 1
	}

	results := make([]skuapp.Result, len(codes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, code := range codes {
		results[i] = skuapp.Result{Code: code, Error: "not processed"}
	}

	for i, code := range codes {
		if gctx.Err() != nil {
			break
		}
		i, code := i, code
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}
			results[i] = svc.ApplyPolicy(gctx, skuapp.Request{Code: code, DutyHint: opts.duty})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

func resultRow(r skuapp.Result) []string {
	return []string{
		r.Code,
		strconv.FormatBool(r.OK),
		r.SKU,
		string(r.Family),
		string(r.Duty),
		r.Brand,
		string(r.Policy),
		r.Reason,
		r.Error,
	}
}

func writeResults(path string, results []skuapp.Result, stdout io.Writer) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return writeResultsXLSX(path, results)
	}

	out := stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	w := csv.NewWriter(out)
	if err := w.Write(resultHeaders); err != nil {
		return err
	}
	for _, r := range results {
		if err := w.Write(resultRow(r)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeResultsXLSX(path string, results []skuapp.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	for col, header := range resultHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(resultsSheet, cell, header)
		f.SetCellStyle(resultsSheet, cell, cell, style)
	}
	for i, r := range results {
		for col, value := range resultRow(r) {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			f.SetCellValue(resultsSheet, cell, value)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}
