// Package ui provides the presentation components for the terminal
// front-end: a product grid, a coin pad, a cart panel, and a receipt view.
// Components are stateless. Each renders an immutable core.Snapshot to an
// io.Writer and forwards user intent through callbacks; none of them holds
// or mutates session state. Mutating intents are suppressed while the
// snapshot reports Processing, matching the gate the orchestrator enforces
// internally.
package ui

import (
	"fmt"
	"io"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vendline/vendline/core"
)

// ProductGrid renders the catalog and emits selection intents.
type ProductGrid struct {
	Out      io.Writer
	OnSelect func(productID int)
}

// Render writes one line per product with price, stock, and availability.
func (g *ProductGrid) Render(snap core.Snapshot) {
	fmt.Fprintf(g.Out, "Available Products (%d items)\n", len(snap.Products))
	for _, p := range snap.Products {
		marker := ""
		if p.OutOfStock() {
			marker = "  [SOLD OUT]"
		}
		fmt.Fprintf(g.Out, "  %3d  %-24s $%s  stock:%d%s\n",
			p.ID, p.Name, p.Price.StringFixed(2), p.Stock, marker)
	}
}

// Select forwards a selection intent unless the session is processing.
func (g *ProductGrid) Select(snap core.Snapshot, productID int) {
	if snap.Processing || g.OnSelect == nil {
		return
	}
	g.OnSelect(productID)
}

// CoinPad renders the balance and accepted denominations, and emits
// insert-coin intents.
type CoinPad struct {
	Out           io.Writer
	Denominations []decimal.Decimal
	OnInsert      func(amount decimal.Decimal)
}

// Render writes the current balance and the coin buttons.
func (c *CoinPad) Render(snap core.Snapshot) {
	fmt.Fprintf(c.Out, "Balance: $%s\n", snap.Balance.StringFixed(2))
	fmt.Fprint(c.Out, "Coins:")
	for _, d := range c.Denominations {
		fmt.Fprintf(c.Out, " [$%s]", d.StringFixed(2))
	}
	fmt.Fprintln(c.Out)
}

// Insert forwards an insert-coin intent unless the session is processing.
func (c *CoinPad) Insert(snap core.Snapshot, amount decimal.Decimal) {
	if snap.Processing || c.OnInsert == nil {
		return
	}
	c.OnInsert(amount)
}

// CartPanel renders the cart and emits purchase, cancel, and remove
// intents.
type CartPanel struct {
	Out        io.Writer
	OnPurchase func()
	OnCancel   func()
	OnRemove   func(productID int)
}

// Render writes the cart lines, the running total, and whether the
// purchase control is enabled.
func (p *CartPanel) Render(snap core.Snapshot) {
	if len(snap.Cart) == 0 {
		fmt.Fprintln(p.Out, "Cart is empty")
		return
	}
	fmt.Fprintln(p.Out, "Cart:")
	for _, item := range snap.Cart {
		fmt.Fprintf(p.Out, "  %-24s x%d  $%s\n",
			item.ProductName, item.Quantity, item.TotalPrice.StringFixed(2))
	}
	fmt.Fprintf(p.Out, "Total: $%s\n", snap.CartTotal.StringFixed(2))
	if snap.CanPurchase && !snap.Processing {
		fmt.Fprintln(p.Out, "[PURCHASE] [CANCEL]")
	} else {
		fmt.Fprintln(p.Out, "[purchase disabled] [CANCEL]")
	}
}

// Purchase forwards a purchase intent only when the control is enabled:
// cart non-empty, total within balance, and no operation in flight.
func (p *CartPanel) Purchase(snap core.Snapshot) {
	if snap.Processing || !snap.CanPurchase || p.OnPurchase == nil {
		return
	}
	p.OnPurchase()
}

// Cancel forwards a cancel intent unless the session is processing.
func (p *CartPanel) Cancel(snap core.Snapshot) {
	if snap.Processing || p.OnCancel == nil {
		return
	}
	p.OnCancel()
}

// Remove forwards a remove-from-cart intent. Removal is a local-only
// edit and is allowed even while an operation is in flight.
func (p *CartPanel) Remove(snap core.Snapshot, productID int) {
	if p.OnRemove == nil {
		return
	}
	p.OnRemove(productID)
}

// ReceiptView renders the active receipt and emits dismiss intents.
type ReceiptView struct {
	Out       io.Writer
	OnDismiss func()
}

// Render writes the receipt, if one is displayed.
func (v *ReceiptView) Render(snap core.Snapshot) {
	r := snap.ActiveReceipt
	if r == nil {
		return
	}
	fmt.Fprintf(v.Out, "=== Transaction %s ===\n", r.Status)
	for _, item := range r.Items {
		fmt.Fprintf(v.Out, "  %-24s x%d  $%s\n",
			item.ProductName, item.Quantity, item.TotalPrice.StringFixed(2))
	}
	fmt.Fprintf(v.Out, "Total:    $%s\n", r.TotalAmount.StringFixed(2))
	fmt.Fprintf(v.Out, "Received: $%s\n", r.AmountReceived.StringFixed(2))
	fmt.Fprintf(v.Out, "Change:   $%s\n", r.ChangeGiven.StringFixed(2))
	if len(r.ChangeBreakdown) > 0 {
		labels := make([]string, 0, len(r.ChangeBreakdown))
		for label := range r.ChangeBreakdown {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			fmt.Fprintf(v.Out, "  %s x%d\n", label, r.ChangeBreakdown[label])
		}
	}
	fmt.Fprintln(v.Out, "[DISMISS]")
}

// Dismiss forwards a dismiss intent. Dismissal is local-only and is
// allowed even while an operation is in flight.
func (v *ReceiptView) Dismiss() {
	if v.OnDismiss == nil {
		return
	}
	v.OnDismiss()
}
