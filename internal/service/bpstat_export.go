package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"bptrack/internal/domain"
	"bptrack/internal/repository"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// BPStatExportHeader export column order
var BPStatExportHeader = []string{
	"Measured At (UTC)",
	"Systolic (mmHg)",
	"Diastolic (mmHg)",
	"Heart Rate (bpm)",
	"Category",
	"Source",
	"Device",
}

const (
	exportSheet      = "BP Readings"
	exportTimeLayout = "2006-01-02 15:04:05"
)

func (s *bpStatService) ExportBPStats(ctx context.Context, userID string) ([]byte, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	var all []*domain.BPStat
	for page := 1; ; page++ {
		items, total, err := s.repo.List(ctx, userID, domain.BPStatFilter{}, page, repository.MaxPageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load bp_stats for export: %w", err)
		}
		all = append(all, items...)
		if len(items) == 0 || len(all) >= total {
			break
		}
	}

	data, err := GenerateBPStatExport(all)
	if err != nil {
		s.logger.Error("failed to render bp_stats export", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return data, nil
}

// GenerateBPStatExport renders stats into a single-sheet workbook, header in row 1.
func GenerateBPStatExport(stats []*domain.BPStat) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// rename the default Sheet1
	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range BPStatExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(exportSheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(exportSheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}
	if err := f.SetColWidth(exportSheet, "A", "A", 22); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(exportSheet, "B", "D", 16); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(exportSheet, "E", "E", 24); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	for i, st := range stats {
		row := []any{
			st.CreatedAt.UTC().Format(exportTimeLayout),
			st.Systolic,
			st.Diastolic,
			st.HeartRate,
			string(st.Category),
			st.Source,
			st.DeviceID,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseBPStatWorkbook reads import rows from the first sheet of a workbook laid out like
// the export. Columns are matched by header; Measured At is optional. Cells that are not
// integers are left nil so the row is rejected by import validation.
func ParseBPStatWorkbook(r io.Reader) ([]ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, invalid(fmt.Sprintf("failed to parse Excel file: %v", err))
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, invalid("Excel file has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, invalid("Excel file is empty")
	}

	headerMap := make(map[string]int)
	for i, h := range rows[0] {
		headerMap[strings.TrimSpace(h)] = i
	}
	col := func(name string) int {
		if i, ok := headerMap[name]; ok {
			return i
		}
		return -1
	}
	atCol := col(BPStatExportHeader[0])
	sysCol, diaCol, hrCol := col(BPStatExportHeader[1]), col(BPStatExportHeader[2]), col(BPStatExportHeader[3])
	if sysCol < 0 || diaCol < 0 || hrCol < 0 {
		return nil, invalid(fmt.Sprintf("missing columns: need %q, %q and %q",
			BPStatExportHeader[1], BPStatExportHeader[2], BPStatExportHeader[3]))
	}

	cell := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	intCell := func(row []string, i int) *int {
		v, err := strconv.Atoi(cell(row, i))
		if err != nil {
			return nil
		}
		return &v
	}

	out := make([]ImportRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(strings.Join(row, "")) == 0 {
			continue
		}
		ir := ImportRow{
			Systolic:  intCell(row, sysCol),
			Diastolic: intCell(row, diaCol),
			HeartRate: intCell(row, hrCol),
		}
		if v := cell(row, atCol); v != "" {
			if at, err := time.Parse(exportTimeLayout, v); err == nil {
				ir.MeasuredAt = &at
			}
		}
		out = append(out, ir)
	}
	return out, nil
}
