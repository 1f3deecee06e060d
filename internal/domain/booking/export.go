package booking

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Bookings"

var exportHeaders = []string{
	"Date", "Treatment", "Slot", "Patient", "Patient name", "Phone", "Price", "Paid", "Transaction", "Booked at",
}

// renderWorkbook lays bookings out one per row under a bold header. Paid rows
// are tinted green.
func renderWorkbook(items []*Booking) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	paid, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#C6EFCE"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("paid style: %w", err)
	}

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeaders); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeaders))
	if err := f.SetCellStyle(exportSheet, "A1", lastCol+"1", header); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i, b := range items {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		tx := ""
		if b.TransactionID != nil {
			tx = *b.TransactionID
		}
		values := []interface{}{
			b.Date, b.Treatment, b.Slot, b.Patient, b.PatientName, b.Phone,
			b.Price, paidLabel(b.Paid), tx, b.CreatedAt.UTC().Format("2006-01-02 15:04"),
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
		if b.Paid {
			end, _ := excelize.CoordinatesToCellName(len(exportHeaders), row)
			if err := f.SetCellStyle(exportSheet, cell, end, paid); err != nil {
				return nil, fmt.Errorf("style row %d: %w", row, err)
			}
		}
	}

	if err := f.SetColWidth(exportSheet, "A", lastCol, 18); err != nil {
		return nil, fmt.Errorf("column width: %w", err)
	}
	if err := f.SetColWidth(exportSheet, "D", "D", 30); err != nil {
		return nil, fmt.Errorf("column width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func paidLabel(paid bool) string {
	if paid {
		return "yes"
	}
	return "no"
}
