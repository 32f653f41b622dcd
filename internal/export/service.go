// Package export renders stored medicine records as XLSX workbooks.
package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mediscan/mediscan/internal/entity"
	"github.com/mediscan/mediscan/internal/repository"
)

const (
	sheetMedicines = "Medicines"
	sheetStats     = "Stats"
)

// Service produces XLSX bytes from the record store.
type Service struct {
	medicines repository.MedicineRepository
	soonDays  int
	logger    *slog.Logger
}

func NewService(medicines repository.MedicineRepository, soonDays int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if soonDays <= 0 {
		soonDays = 7
	}
	return &Service{medicines: medicines, soonDays: soonDays, logger: logger}
}

// ExportXLSX renders the whole store: a Medicines sheet plus a Stats
// summary sheet.
func (s *Service) ExportXLSX(ctx context.Context) (*bytes.Buffer, error) {
	start := time.Now()

	records, err := s.medicines.List(ctx, repository.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	stats, err := s.medicines.Stats(ctx, time.Now().UTC(), s.soonDays)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}

	recs := make([]entity.MedicineRecord, len(records))
	for i, r := range records {
		recs[i] = *r
	}
	buf, err := buildWorkbook(recs, stats)
	if err != nil {
		return nil, err
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf, nil
}

// ExportRecords renders just the Medicines sheet for an ad hoc record
// set, e.g. one batch run.
func (s *Service) ExportRecords(_ context.Context, records []entity.MedicineRecord) (*bytes.Buffer, error) {
	return buildWorkbook(records, nil)
}

var medicineHeaders = []string{
	"Name",
	"Generic Name",
	"Category",
	"Expiry",
	"Manufactured",
	"Batch",
	"Dosage",
	"Strength",
	"Form",
	"Manufacturer",
	"Frequency",
	"Confidence",
	"Needs Review",
}

func buildWorkbook(records []entity.MedicineRecord, stats *entity.StoreStats) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetMedicines); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	reviewStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFF2CC"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	for i, h := range medicineHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetMedicines, cell, h)
	}
	endHeader, _ := excelize.CoordinatesToCellName(len(medicineHeaders), 1)
	_ = f.SetCellStyle(sheetMedicines, "A1", endHeader, headerStyle)

	for rowIdx, rec := range records {
		row := rowIdx + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheetMedicines, cell, v)
		}
		write(1, rec.Name)
		write(2, rec.GenericName)
		write(3, rec.Category)
		write(4, dateString(rec.ExpiryDate))
		write(5, dateString(rec.ManufactureDate))
		write(6, rec.BatchNumber)
		write(7, rec.Dosage)
		write(8, rec.Strength)
		write(9, string(rec.Form))
		write(10, rec.Manufacturer)
		write(11, rec.Frequency)
		write(12, fmt.Sprintf("%.2f", rec.OverallConfidence))
		if rec.NeedsReview {
			write(13, "REVIEW")
			first, _ := excelize.CoordinatesToCellName(1, row)
			last, _ := excelize.CoordinatesToCellName(len(medicineHeaders), row)
			_ = f.SetCellStyle(sheetMedicines, first, last, reviewStyle)
		} else {
			write(13, "")
		}
	}

	_ = f.SetColWidth(sheetMedicines, "A", "B", 22)
	_ = f.SetColWidth(sheetMedicines, "C", "C", 16)
	_ = f.SetColWidth(sheetMedicines, "D", "E", 13)
	_ = f.SetColWidth(sheetMedicines, "F", "H", 12)
	_ = f.SetColWidth(sheetMedicines, "I", "K", 16)
	_ = f.SetColWidth(sheetMedicines, "L", "M", 12)

	if stats != nil {
		if err := writeStatsSheet(f, stats, headerStyle); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf, nil
}

func writeStatsSheet(f *excelize.File, stats *entity.StoreStats, headerStyle int) error {
	if _, err := f.NewSheet(sheetStats); err != nil {
		return err
	}

	write := func(row int, label string, value any) {
		labelCell, _ := excelize.CoordinatesToCellName(1, row)
		valueCell, _ := excelize.CoordinatesToCellName(2, row)
		_ = f.SetCellValue(sheetStats, labelCell, label)
		_ = f.SetCellValue(sheetStats, valueCell, value)
	}

	_ = f.SetCellValue(sheetStats, "A1", "Metric")
	_ = f.SetCellValue(sheetStats, "B1", "Value")
	_ = f.SetCellStyle(sheetStats, "A1", "B1", headerStyle)

	write(2, "Total Records", stats.TotalRecords)
	write(3, "Needs Review", stats.NeedsReview)
	write(4, "Expired", stats.Expired)
	write(5, "Expiring Soon", stats.ExpiringSoon)

	row := 7
	row = writeBreakdown(f, row, "By Form", stats.ByForm, headerStyle)
	row++
	writeBreakdown(f, row, "By Category", stats.ByCategory, headerStyle)

	_ = f.SetColWidth(sheetStats, "A", "A", 24)
	_ = f.SetColWidth(sheetStats, "B", "B", 12)
	return nil
}

func writeBreakdown(f *excelize.File, row int, title string, counts map[string]int, headerStyle int) int {
	titleCell, _ := excelize.CoordinatesToCellName(1, row)
	_ = f.SetCellValue(sheetStats, titleCell, title)
	_ = f.SetCellStyle(sheetStats, titleCell, titleCell, headerStyle)
	row++

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		labelCell, _ := excelize.CoordinatesToCellName(1, row)
		valueCell, _ := excelize.CoordinatesToCellName(2, row)
		_ = f.SetCellValue(sheetStats, labelCell, k)
		_ = f.SetCellValue(sheetStats, valueCell, counts[k])
		row++
	}
	return row
}

func dateString(d *entity.Date) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.String()
}
