package export

import (
	"bytes"
	"fmt"

	"wisefido-medbox/internal/models"

	"github.com/xuri/excelize/v2"
)

// HistorySheet sheet name in exported workbooks
const HistorySheet = "Sensor History"

// TimestampLayout used for the timestamp column
const TimestampLayout = "2006-01-02 15:04:05"

// HistoryHeader column order matches the JSON table
var HistoryHeader = []string{
	"Timestamp",
	"Temperature",
	"Humidity",
	"LDR Value",
	"Jumlah Obat",
}

// GenerateHistoryExport renders projected rows as an xlsx workbook.
// Null values become empty cells.
func GenerateHistoryExport(rows []models.ProjectedRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(HistorySheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	// indexes shift after the delete
	index, err := f.GetSheetIndex(HistorySheet)
	if err != nil {
		return nil, fmt.Errorf("failed to locate sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, h := range HistoryHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(HistorySheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(HistoryHeader), 1)
	if err := f.SetCellStyle(HistorySheet, "A1", lastHeader, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, r := range rows {
		values := []interface{}{
			formatTimestamp(r),
			floatCell(r.Temperature),
			floatCell(r.Humidity),
			floatCell(r.LDRValue),
			r.JumlahObat,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(HistorySheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	if err := f.SetColWidth(HistorySheet, "A", "A", 22); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func formatTimestamp(r models.ProjectedRow) interface{} {
	if r.Timestamp == nil {
		return nil
	}
	return r.Timestamp.Format(TimestampLayout)
}

func floatCell(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
