package parser

import (
	"bytes"
	"fmt"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// convertLegacyWorkbook reads an OLE-container .xls payload and rebuilds it as
// an in-memory xlsx workbook so the tabular adapter only ever deals with one
// format. Conversion failure is a hard error with no partial result.
func convertLegacyWorkbook(data []byte) (*excelize.File, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("convert legacy workbook: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("convert legacy workbook: no worksheets")
	}

	out := excelize.NewFile()
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		name := sheet.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}
		if i == 0 {
			if err := out.SetSheetName(out.GetSheetName(0), name); err != nil {
				return nil, fmt.Errorf("convert legacy workbook: %w", err)
			}
		} else {
			if _, err := out.NewSheet(name); err != nil {
				return nil, fmt.Errorf("convert legacy workbook: %w", err)
			}
		}

		for r := 0; r <= int(sheet.MaxRow); r++ {
			row := sheet.Row(r)
			if row == nil {
				continue
			}
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				value := row.Col(c)
				if value == "" {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return nil, fmt.Errorf("convert legacy workbook: %w", err)
				}
				if err := out.SetCellStr(name, cell, value); err != nil {
					return nil, fmt.Errorf("convert legacy workbook: %w", err)
				}
			}
		}
	}

	return out, nil
}
