// Package core provides the domain types and shared abstractions for the
// vendline client: the product catalog and cart model, transaction receipts,
// the session snapshot handed to presentation code, and the small interfaces
// (Logger, Telemetry, Notifier, Memory) the other packages are wired with.
//
// Money is represented with decimal.Decimal throughout. The remote service is
// the only authority on balances and change; the client never does money math
// beyond summing cart lines for display and eligibility checks.
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is one catalog entry as reported by the vending service.
// It is immutable between fetches; the catalog is refreshed wholesale
// after any operation that can change stock.
type Product struct {
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Available bool            `json:"available"`
}

// OutOfStock reports whether the product can currently be vended.
func (p Product) OutOfStock() bool {
	return p.Stock == 0 || !p.Available
}

// CartItem is one line of the client-side cart. Name and unit price are
// denormalized copies taken from the product snapshot at selection time
// and are not re-validated against the server afterwards.
type CartItem struct {
	ProductID   int             `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

// ReceiptStatus is the terminal state of a transaction as reported
// by the vending service.
type ReceiptStatus string

const (
	StatusCompleted ReceiptStatus = "COMPLETED"
	StatusCancelled ReceiptStatus = "CANCELLED"
	StatusPending   ReceiptStatus = "PENDING"
)

// ReceiptItem is one line of a transaction receipt.
type ReceiptItem struct {
	ProductID   int             `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

// Receipt is the record the vending service returns for a completed or
// cancelled transaction. It is immutable once received.
type Receipt struct {
	Items           []ReceiptItem   `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	AmountReceived  decimal.Decimal `json:"amountReceived"`
	ChangeGiven     decimal.Decimal `json:"changeGiven"`
	Status          ReceiptStatus   `json:"status"`
	Timestamp       time.Time       `json:"timestamp"`
	ChangeBreakdown map[string]int  `json:"changeBreakdown"`
}

// Snapshot is the read-only view of session state handed to presentation
// components. It is a deep copy: mutating a snapshot never affects the
// session it was taken from.
type Snapshot struct {
	Products      []Product
	Balance       decimal.Decimal
	Cart          []CartItem
	CartTotal     decimal.Decimal
	Processing    bool
	Loaded        bool
	Degraded      bool
	ActiveReceipt *Receipt
	CanPurchase   bool
}
