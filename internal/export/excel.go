package export

import (
	"bytes"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"vacancy-report/internal/report"

	"github.com/xuri/excelize/v2"
)

const (
	// ProcessedSheet sheet name of the processed workbook
	ProcessedSheet = "Processado"

	minColWidth = 14
	maxColWidth = 45
)

// Workbook renders a table as a single-sheet xlsx: styled, frozen header row,
// absent values left blank.
func Workbook(sheetName string, t report.Table) ([]byte, error) {
	f := excelize.NewFile()
	// Note: WriteTo needs the file open, Close happens after it

	if sheetName == "" {
		sheetName = "Relatorio"
	}
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#2C3E50"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	dateFmt := "dd/mm/yyyy hh:mm:ss"
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create date style: %w", err)
	}

	for col, header := range t.Columns {
		if err := setCell(f, sheetName, col+1, 1, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, name, name, colWidth(header)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}
	if len(t.Columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(t.Columns), 1)
		if err := f.SetCellStyle(sheetName, "A1", last, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for r, row := range t.Rows {
		rowNum := r + 2 // row 1 is the header
		for c, v := range row {
			value := cellValue(v)
			if value == nil {
				continue
			}
			if err := setCell(f, sheetName, c+1, rowNum, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", rowNum, c+1, err)
			}
			if _, ok := value.(time.Time); ok {
				cell, _ := excelize.CoordinatesToCellName(c+1, rowNum)
				if err := f.SetCellStyle(sheetName, cell, cell, dateStyle); err != nil {
					f.Close()
					return nil, fmt.Errorf("failed to set date style: %w", err)
				}
			}
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveProcessed writes the processed workbook of a dataset to path.
func SaveProcessed(path string, ds *report.Dataset) error {
	data, err := Workbook(ProcessedSheet, ds.ProcessedTable())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// cellValue maps table values onto what excelize stores.
// Times keep their wall clock: spreadsheet dates carry no zone.
func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return time.Date(x.Year(), x.Month(), x.Day(), x.Hour(), x.Minute(), x.Second(), x.Nanosecond(), time.UTC)
	case *time.Time:
		if x == nil {
			return nil
		}
		return cellValue(*x)
	case string:
		if x == "" {
			return nil
		}
		return x
	default:
		return x
	}
}

func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

func colWidth(header string) float64 {
	w := float64(utf8.RuneCountInString(header)) + 2
	if w < minColWidth {
		return minColWidth
	}
	if w > maxColWidth {
		return maxColWidth
	}
	return w
}
