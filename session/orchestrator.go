// Package session implements the transaction orchestrator: the single owner
// of mutable client state (catalog, balance, cart, active receipt) and the
// sequencer of remote vending calls per user intent.
//
// Concurrency model: every state-mutating intent runs under a single-flight
// gate. The gate is the processing flag itself, guarded by the state mutex;
// a second mutating call while one is in flight is rejected immediately with
// core.ErrBusy rather than queued. Presentation layers additionally disable
// their controls while a snapshot reports Processing, but the gate holds
// even for programmatic callers that ignore snapshots.
//
// Local-only transitions (RemoveFromCart, DismissReceipt) are deliberately
// not gated and may run while a remote call is in flight. This mirrors the
// machine's physical front panel, where the return lever works while the
// motor is running. The consequence - a purchase can finalize a cart line
// the user just removed locally - is accepted and pinned by tests.
//
// The client confirms each mutation before it is applied locally
// (confirm-then-apply): a failed remote call leaves every piece of local
// state exactly as it was. Balance is never computed locally; after any
// operation that can change it, the server's value is fetched and installed
// wholesale.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vendline/vendline/core"
)

// Client is the remote service surface the orchestrator drives. Satisfied
// by *client.VendingClient and by test fakes.
type Client interface {
	FetchProducts(ctx context.Context) ([]core.Product, error)
	FetchBalance(ctx context.Context) (decimal.Decimal, error)
	InsertCoin(ctx context.Context, amount decimal.Decimal) error
	SelectProduct(ctx context.Context, productID, quantity int) error
	CompletePurchase(ctx context.Context) (*core.Receipt, error)
	CancelTransaction(ctx context.Context) (*core.Receipt, error)
	FetchTransaction(ctx context.Context, id int) (*core.Receipt, error)
}

// Orchestrator owns the session state and sequences remote calls.
type Orchestrator struct {
	client   Client
	logger   core.Logger
	notifier core.Notifier
	journal  *Journal

	mu            sync.Mutex
	products      []core.Product
	balance       decimal.Decimal
	cart          []core.CartItem
	processing    bool
	loaded        bool
	degraded      bool
	activeReceipt *core.Receipt
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier installs the user-feedback side-channel.
func WithNotifier(n core.Notifier) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithJournal installs the receipt journal. Journal writes are best
// effort and never fail a transaction.
func WithJournal(j *Journal) Option {
	return func(o *Orchestrator) {
		o.journal = j
	}
}

// New creates an orchestrator in the unloaded state.
func New(c Client, logger core.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	o := &Orchestrator{
		client:   c,
		logger:   logger,
		notifier: &core.NoOpNotifier{},
		balance:  decimal.Zero,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// begin acquires the single-flight gate, failing fast with core.ErrBusy
// when another mutating operation is in flight.
func (o *Orchestrator) begin(op string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.processing {
		o.logger.Warn("Operation rejected, gate held", map[string]interface{}{
			"operation": op,
			"error":     "busy",
		})
		return core.ErrBusy
	}
	o.processing = true
	return nil
}

// beginReady is begin for transaction operations, which additionally
// require a loaded session.
func (o *Orchestrator) beginReady(op string) error {
	o.mu.Lock()
	loaded := o.loaded
	o.mu.Unlock()
	if !loaded {
		return core.ErrNotLoaded
	}
	return o.begin(op)
}

// finish releases the gate. A timed-out call marks the session degraded;
// only a successful call clears the mark. Settled failures and local
// rejections leave it as is, since neither proves the backend recovered.
func (o *Orchestrator) finish(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.processing = false
	if core.IsStuck(err) {
		o.degraded = true
	} else if err == nil {
		o.degraded = false
	}
}

// Load performs the initial parallel fetch of catalog and balance.
// Both calls must succeed for the session to become Ready; the first
// failure of either aborts the load with a single notification and the
// session stays unloaded.
func (o *Orchestrator) Load(ctx context.Context) (err error) {
	if err = o.begin("load"); err != nil {
		return err
	}
	defer func() { o.finish(err) }()

	type productsResult struct {
		products []core.Product
		err      error
	}
	type balanceResult struct {
		balance decimal.Decimal
		err     error
	}

	productsCh := make(chan productsResult, 1)
	balanceCh := make(chan balanceResult, 1)

	go func() {
		p, e := o.client.FetchProducts(ctx)
		productsCh <- productsResult{products: p, err: e}
	}()
	go func() {
		b, e := o.client.FetchBalance(ctx)
		balanceCh <- balanceResult{balance: b, err: e}
	}()

	products := <-productsCh
	balance := <-balanceCh

	if products.err != nil {
		err = products.err
	} else if balance.err != nil {
		err = balance.err
	}
	if err != nil {
		o.logger.Error("Initial load failed", map[string]interface{}{
			"operation": "load",
			"error":     err.Error(),
		})
		o.notifier.Failure("Error", "Failed to load vending machine data. Please check if the backend is running.")
		return err
	}

	o.mu.Lock()
	o.products = products.products
	o.balance = balance.balance
	o.loaded = true
	o.mu.Unlock()

	o.logger.Info("Session loaded", map[string]interface{}{
		"operation":     "load",
		"product_count": len(products.products),
		"balance":       balance.balance.String(),
	})
	return nil
}

// InsertCoin credits the machine and installs the server's post-insert
// balance. The coin value is never added locally.
func (o *Orchestrator) InsertCoin(ctx context.Context, amount decimal.Decimal) (err error) {
	if err = o.beginReady("insert_coin"); err != nil {
		return err
	}
	defer func() { o.finish(err) }()

	if err = o.client.InsertCoin(ctx, amount); err == nil {
		var balance decimal.Decimal
		if balance, err = o.client.FetchBalance(ctx); err == nil {
			o.mu.Lock()
			o.balance = balance
			o.mu.Unlock()
		}
	}

	if err != nil {
		o.notifier.Failure("Error", "Failed to insert coin. Please try again.")
		return err
	}

	o.notifier.Success("Coin Inserted", fmt.Sprintf("$%s added to your balance.", amount.StringFixed(2)))
	return nil
}

// SelectProduct confirms a selection with the server, then mutates the
// local cart: an existing line gains quantity, otherwise a new line is
// appended with the unit price copied from the product snapshot.
func (o *Orchestrator) SelectProduct(ctx context.Context, productID int) (err error) {
	o.mu.Lock()
	loaded := o.loaded
	var product *core.Product
	for i := range o.products {
		if o.products[i].ID == productID {
			p := o.products[i]
			product = &p
			break
		}
	}
	o.mu.Unlock()

	if !loaded {
		return core.ErrNotLoaded
	}

	// Defensive: the id normally comes from a rendered product, so an
	// unknown id is a programming error, not a user-visible failure.
	if product == nil {
		o.logger.Warn("Selection for unknown product ignored", map[string]interface{}{
			"operation":  "select_product",
			"product_id": productID,
		})
		return core.ErrProductNotFound
	}

	if err = o.begin("select_product"); err != nil {
		return err
	}
	defer func() { o.finish(err) }()

	if err = o.client.SelectProduct(ctx, productID, 1); err != nil {
		o.notifier.Failure("Error", "Failed to select product. Please try again.")
		return err
	}

	o.mu.Lock()
	found := false
	for i := range o.cart {
		if o.cart[i].ProductID == productID {
			o.cart[i].Quantity++
			o.cart[i].TotalPrice = o.cart[i].UnitPrice.Mul(decimal.NewFromInt(int64(o.cart[i].Quantity)))
			found = true
			break
		}
	}
	if !found {
		o.cart = append(o.cart, core.CartItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    1,
			UnitPrice:   product.Price,
			TotalPrice:  product.Price,
		})
	}
	o.mu.Unlock()

	o.notifier.Success("Product Selected", fmt.Sprintf("%s added to cart.", product.Name))
	return nil
}

// RemoveFromCart drops the matching cart line. Local-only and not gated:
// the server is never told about removals before purchase or cancel
// finalizes the transaction.
func (o *Orchestrator) RemoveFromCart(productID int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.cart[:0]
	for _, item := range o.cart {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	o.cart = kept
}

// Purchase finalizes the transaction. Ineligible purchases (empty cart or
// cart total above balance) are rejected client-side with no remote call
// and no state change. On success the receipt is installed, the cart is
// cleared, and balance and catalog are refreshed concurrently.
func (o *Orchestrator) Purchase(ctx context.Context) (err error) {
	if err = o.beginReady("purchase"); err != nil {
		return err
	}
	defer func() { o.finish(err) }()

	o.mu.Lock()
	if len(o.cart) == 0 {
		o.mu.Unlock()
		err = core.ErrEmptyCart
		return err
	}
	if o.cartTotalLocked().GreaterThan(o.balance) {
		o.mu.Unlock()
		err = core.ErrInsufficientBalance
		o.notifier.Failure("Purchase Failed", "Insufficient balance for the items in your cart.")
		return err
	}
	o.mu.Unlock()

	receipt, err := o.client.CompletePurchase(ctx)
	if err != nil {
		o.notifier.Failure("Purchase Failed", "Failed to complete purchase. Please try again.")
		return err
	}

	o.mu.Lock()
	o.activeReceipt = receipt
	o.cart = nil
	o.mu.Unlock()

	o.recordReceipt(ctx, receipt)
	o.notifier.Success("Purchase Completed", "Your transaction has been completed successfully!")

	if refreshErr := o.refreshAfterPurchase(ctx); refreshErr != nil {
		o.notifier.Failure("Error", "Purchase completed but machine state could not be refreshed.")
		err = fmt.Errorf("purchase completed, refresh failed: %w", refreshErr)
		return err
	}
	return nil
}

// refreshAfterPurchase re-fetches balance and catalog concurrently, since
// a purchase changes both. Whichever fetch succeeds is installed even if
// the other fails.
func (o *Orchestrator) refreshAfterPurchase(ctx context.Context) error {
	type productsResult struct {
		products []core.Product
		err      error
	}
	type balanceResult struct {
		balance decimal.Decimal
		err     error
	}

	productsCh := make(chan productsResult, 1)
	balanceCh := make(chan balanceResult, 1)

	go func() {
		p, e := o.client.FetchProducts(ctx)
		productsCh <- productsResult{products: p, err: e}
	}()
	go func() {
		b, e := o.client.FetchBalance(ctx)
		balanceCh <- balanceResult{balance: b, err: e}
	}()

	products := <-productsCh
	balance := <-balanceCh

	o.mu.Lock()
	if products.err == nil {
		o.products = products.products
	}
	if balance.err == nil {
		o.balance = balance.balance
	}
	o.mu.Unlock()

	if products.err != nil {
		return products.err
	}
	return balance.err
}

// Cancel aborts the pending transaction, returning inserted coins. On
// success the cancellation receipt is installed, the cart is cleared, and
// the balance is refreshed.
func (o *Orchestrator) Cancel(ctx context.Context) (err error) {
	if err = o.beginReady("cancel"); err != nil {
		return err
	}
	defer func() { o.finish(err) }()

	receipt, err := o.client.CancelTransaction(ctx)
	if err != nil {
		o.notifier.Failure("Error", "Failed to cancel transaction.")
		return err
	}

	o.mu.Lock()
	o.activeReceipt = receipt
	o.cart = nil
	o.mu.Unlock()

	o.recordReceipt(ctx, receipt)

	balance, err := o.client.FetchBalance(ctx)
	if err != nil {
		o.notifier.Failure("Error", "Transaction cancelled but balance could not be refreshed.")
		err = fmt.Errorf("cancel completed, refresh failed: %w", err)
		return err
	}

	o.mu.Lock()
	o.balance = balance
	o.mu.Unlock()

	o.notifier.Success("Transaction Cancelled", "Your transaction has been cancelled.")
	return nil
}

// DismissReceipt clears the active receipt. Local-only, never gated.
func (o *Orchestrator) DismissReceipt() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.activeReceipt = nil
}

// FetchReceipt looks up a past transaction on the server. Read-only, so
// it does not take the single-flight gate.
func (o *Orchestrator) FetchReceipt(ctx context.Context, id int) (*core.Receipt, error) {
	receipt, err := o.client.FetchTransaction(ctx, id)
	if err != nil {
		o.notifier.Failure("Error", "Failed to fetch transaction.")
		return nil, err
	}
	return receipt, nil
}

// History lists journaled receipts, newest last. Empty without a journal.
func (o *Orchestrator) History(ctx context.Context) ([]core.Receipt, error) {
	if o.journal == nil {
		return nil, nil
	}
	return o.journal.List(ctx)
}

// Snapshot returns a copy of the session state for rendering. Products
// and Cart are fresh slices; ActiveReceipt is shared but immutable once
// received.
func (o *Orchestrator) Snapshot() core.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := core.Snapshot{
		Products:      append([]core.Product(nil), o.products...),
		Balance:       o.balance,
		Cart:          append([]core.CartItem(nil), o.cart...),
		CartTotal:     o.cartTotalLocked(),
		Processing:    o.processing,
		Loaded:        o.loaded,
		Degraded:      o.degraded,
		ActiveReceipt: o.activeReceipt,
	}
	snap.CanPurchase = len(o.cart) > 0 && !snap.CartTotal.GreaterThan(o.balance)
	return snap
}

// cartTotalLocked sums the cart. Caller holds o.mu.
func (o *Orchestrator) cartTotalLocked() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.cart {
		total = total.Add(item.TotalPrice)
	}
	return total
}

// recordReceipt journals a receipt best-effort.
func (o *Orchestrator) recordReceipt(ctx context.Context, receipt *core.Receipt) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Record(ctx, receipt); err != nil {
		o.logger.Warn("Receipt journal write failed", map[string]interface{}{
			"operation": "journal_record",
			"error":     err.Error(),
		})
	}
}
