package excel

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"orderdesk/internal/domain"
)

const (
	colProductID = "product_id"
	colVariant   = "variant"
	colDelta     = "delta"
	colNotes     = "notes"
)

var headerAliases = map[string]string{
	"product id":     colProductID,
	"productid":      colProductID,
	"product":        colProductID,
	"id":             colProductID,
	"variant":        colVariant,
	"variant name":   colVariant,
	"variantname":    colVariant,
	"size":           colVariant,
	"delta":          colDelta,
	"quantity delta": colDelta,
	"quantitydelta":  colDelta,
	"change":         colDelta,
	"qty":            colDelta,
	"quantity":       colDelta,
	"notes":          colNotes,
	"note":           colNotes,
	"comment":        colNotes,
}

// ParseStockAdjustments reads adjustment rows from the first sheet. Rows with
// an empty product id are skipped; RowNumber is the 1-based sheet row.
func ParseStockAdjustments(reader io.Reader) ([]domain.StockAdjustmentRow, error) {
	file, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, invalid("open excel file: %v", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, invalid("excel file has no sheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, invalid("excel file is empty")
	}

	colMap := mapColumns(rows[0])
	for _, required := range []string{colProductID, colVariant, colDelta} {
		if _, ok := colMap[required]; !ok {
			return nil, invalid("missing required column: %s", required)
		}
	}

	result := make([]domain.StockAdjustmentRow, 0, len(rows)-1)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		productID := strings.TrimSpace(readCell(cells, colMap[colProductID]))
		if productID == "" {
			continue
		}

		variant := strings.TrimSpace(readCell(cells, colMap[colVariant]))
		if variant == "" {
			return nil, invalid("row %d: variant is empty", index+1)
		}

		delta, err := parseInt(readCell(cells, colMap[colDelta]))
		if err != nil {
			return nil, invalid("row %d invalid delta: %v", index+1, err)
		}

		var notes string
		if idx, ok := colMap[colNotes]; ok {
			notes = strings.TrimSpace(readCell(cells, idx))
		}

		result = append(result, domain.StockAdjustmentRow{
			RowNumber:     index + 1,
			ProductID:     productID,
			VariantName:   variant,
			QuantityDelta: delta,
			Notes:         notes,
		})
	}

	if len(result) == 0 {
		return nil, invalid("excel file has no valid data rows")
	}
	return result, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, fmt.Sprintf(format, args...))
}

func mapColumns(header []string) map[string]int {
	mapped := make(map[string]int)
	for idx, col := range header {
		normalized := normalizeHeader(col)
		if normalized == "" {
			continue
		}
		canonical, ok := headerAliases[normalized]
		if !ok {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", " ")
	value = strings.Join(strings.Fields(value), " ")
	return value
}

func readCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// parseInt accepts thousands separators, a leading plus sign and integral floats like "3.0".
func parseInt(raw string) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("value is empty")
	}

	asFloat, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.Mod(asFloat, 1) != 0 {
		return 0, fmt.Errorf("must be an integer")
	}
	// float64(math.MaxInt) rounds up to 2^63, which is already out of range.
	if asFloat >= float64(math.MaxInt) || asFloat < float64(math.MinInt) {
		return 0, fmt.Errorf("out of range")
	}
	return int(asFloat), nil
}
