package csvio

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"crm/pkg/models"
)

// Sheet is one worksheet of a workbook export.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]interface{}
}

// WriteXLSX writes sheets as a workbook, in order.
func WriteXLSX(w io.Writer, sheets ...Sheet) error {
	const op = "WriteXLSX"

	if len(sheets) == 0 {
		return fmt.Errorf("%s: no sheets", op)
	}
	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.Name); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		for col, h := range sheet.Header {
			if err := setCell(f, sheet.Name, col+1, 1, h); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
		for r, row := range sheet.Rows {
			for col, v := range row {
				if err := setCell(f, sheet.Name, col+1, r+2, v); err != nil {
					return fmt.Errorf("%s: %w", op, err)
				}
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, v interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, v)
}

// InvoiceSheet lays invoices out in the CSV column order. Amounts are
// written as numbers so they can be summed in a spreadsheet.
func InvoiceSheet(invoices []models.Invoice) Sheet {
	sheet := Sheet{Name: "Invoices", Header: Header}
	for _, inv := range invoices {
		row := make([]interface{}, columnCount)
		for i, v := range InvoiceToRow(inv) {
			row[i] = v
		}
		if inv.AmountDue != nil {
			row[colAmount] = inv.AmountDue.InexactFloat64()
		}
		if inv.TotalBoxes != nil {
			row[colBoxes] = *inv.TotalBoxes
		}
		if inv.PTP != nil {
			row[colPTP] = *inv.PTP
		}
		if inv.PTPAmount != nil {
			row[colPTPAmount] = inv.PTPAmount.InexactFloat64()
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}
