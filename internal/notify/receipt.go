package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"orderdesk/internal/domain"
)

const receiptWidth = 32

// ReceiptEvent is the payload published for every committed order.
type ReceiptEvent struct {
	OrderID        string          `json:"orderId"`
	CustomerID     string          `json:"customerId,omitempty"`
	PaymentMethod  string          `json:"paymentMethod"`
	Total          decimal.Decimal `json:"total"`
	ProductionCost decimal.Decimal `json:"productionCost"`
	Items          []ReceiptItem   `json:"items"`
	Lines          []string        `json:"lines"`
	CreatedAt      string          `json:"createdAt"`
}

type ReceiptItem struct {
	Name     string          `json:"name"`
	Variant  string          `json:"variant"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

func NewReceiptEvent(order domain.Order, orderID string) ReceiptEvent {
	items := make([]ReceiptItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, ReceiptItem{
			Name:     it.ProductName,
			Variant:  it.VariantName,
			Quantity: it.Quantity,
			Subtotal: it.Subtotal,
		})
	}
	return ReceiptEvent{
		OrderID:        orderID,
		CustomerID:     order.CustomerID,
		PaymentMethod:  order.PaymentMethod,
		Total:          order.Total,
		ProductionCost: order.ProductionCost,
		Items:          items,
		Lines:          FormatReceipt(order, orderID),
		CreatedAt:      order.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// FormatReceipt renders fixed-width lines for a narrow thermal printer.
func FormatReceipt(order domain.Order, orderID string) []string {
	rule := strings.Repeat("-", receiptWidth)
	lines := []string{
		center("RECEIPT"),
		"Order " + shortID(orderID),
		order.CreatedAt.Format("2006-01-02 15:04"),
		rule,
	}
	for _, it := range order.Items {
		lines = append(lines,
			fmt.Sprintf("%dx %s (%s)", it.Quantity, it.ProductName, it.VariantName),
			alignRight(it.Subtotal.StringFixed(2)),
		)
	}
	lines = append(lines,
		rule,
		twoColumns("TOTAL", order.Total.StringFixed(2)),
		twoColumns("Paid by", order.PaymentMethod),
	)
	return lines
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func center(s string) string {
	if len(s) >= receiptWidth {
		return s
	}
	return strings.Repeat(" ", (receiptWidth-len(s))/2) + s
}

func alignRight(s string) string {
	if len(s) >= receiptWidth {
		return s
	}
	return strings.Repeat(" ", receiptWidth-len(s)) + s
}

func twoColumns(left, right string) string {
	gap := receiptWidth - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}
