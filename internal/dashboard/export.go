package dashboard

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/sketchcode/backend/internal/models"
)

const ledgerSheet = "Credit Ledger"

var ledgerHeaders = []string{"Date (UTC)", "Transaction ID", "User ID", "Reason", "Change", "Balance After"}

// LedgerWorkbook renders ledger entries as a single-sheet workbook with a
// styled header row. Grants are green, downloads red.
func LedgerWorkbook(entries []*models.CreditTransaction) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ledgerSheet); err != nil {
		return nil, err
	}
	for i, h := range ledgerHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(ledgerSheet, cell, h); err != nil {
			return nil, err
		}
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4F46E5"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}
	grant, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Color: "#10B981"}})
	if err != nil {
		return nil, err
	}
	spend, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Color: "#EF4444"}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(ledgerSheet, "A1", "F1", header); err != nil {
		return nil, err
	}

	for i, e := range entries {
		row := i + 2
		values := []any{
			e.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			e.ID.String(),
			e.AccountID.String(),
			e.Reason,
			e.Change,
			e.BalanceAfter,
		}
		if err := f.SetSheetRow(ledgerSheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return nil, err
		}
		style := grant
		if e.Change < 0 {
			style = spend
		}
		cell := fmt.Sprintf("E%d", row)
		if err := f.SetCellStyle(ledgerSheet, cell, cell, style); err != nil {
			return nil, err
		}
	}

	_ = f.SetColWidth(ledgerSheet, "A", "A", 20)
	_ = f.SetColWidth(ledgerSheet, "B", "C", 38)
	_ = f.SetColWidth(ledgerSheet, "D", "D", 24)
	_ = f.SetColWidth(ledgerSheet, "E", "F", 14)
	return f, nil
}
