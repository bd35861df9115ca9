package query

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExportXLSX writes rows to a single-sheet workbook, one column per visible
// column. Numbers and dates are stored as typed cells.
func ExportXLSX[T any](sheet string, cols []Column[T], rows []T) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	dateStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 14})

	visible := make([]Column[T], 0, len(cols))
	for _, c := range cols {
		if c.Visible && c.Value != nil {
			visible = append(visible, c)
		}
	}

	for i, c := range visible {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		label := c.Label
		if label == "" {
			label = c.Key
		}
		f.SetCellValue(sheet, cell, label)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, 18)
	}

	for r, row := range rows {
		for i, c := range visible {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			v := c.Value(row)
			switch c.Kind {
			case KindNumber:
				n, _ := toDecimal(v).Float64()
				f.SetCellValue(sheet, cell, n)
			case KindDate:
				t := toTime(v)
				if t.IsZero() {
					continue
				}
				f.SetCellValue(sheet, cell, t)
				f.SetCellStyle(sheet, cell, cell, dateStyle)
			default:
				f.SetCellValue(sheet, cell, Stringify(v))
			}
		}
	}
	return f, nil
}
