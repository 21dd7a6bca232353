package excel

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"orderdesk/internal/domain"
)

const stockLogSheet = "Stock log"

var stockLogHeader = []any{
	"Timestamp", "Product ID", "Product", "Variant", "Before", "After", "Delta", "Order ID", "Notes",
}

// WriteStockLogs renders entries as a single-sheet workbook.
func WriteStockLogs(w io.Writer, entries []domain.StockLogEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", stockLogSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(stockLogSheet, "A1", &stockLogHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		row := []any{
			e.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			e.ProductID,
			e.ProductName,
			e.VariantName,
			e.StockBefore,
			e.StockAfter,
			e.Delta,
			e.OrderID,
			e.Notes,
		}
		if err := f.SetSheetRow(stockLogSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(stockLogSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
