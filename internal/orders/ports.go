package orders

import (
	"context"
	"errors"
	"time"
)

// ErrNotPending is returned by LockOrder when the order is absent or no
// longer pending. The caller treats it as terminal: the message that led
// here is acknowledged and dropped.
var ErrNotPending = errors.New("order not found or not pending")

// Store is the transactional boundary the fulfillment machine runs on. Every
// call to InTx is all-or-nothing: if fn returns an error nothing becomes
// visible.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is one open transaction. Lock methods take row locks that contending
// transactions serialize on; DecrementStock is the guarded atomic update the
// never-oversell invariant rests on.
type Tx interface {
	// LockOrder locks the order row and its items, only if status=pending.
	LockOrder(ctx context.Context, orderID int64) (*Order, []Item, error)
	// LockOffers locks all active, in-stock offers for the given logical
	// products, sorted by ascending price.
	LockOffers(ctx context.Context, productIDs []string) ([]Offer, error)
	// DecrementStock subtracts qty only while stock_quantity >= qty and
	// reports the number of rows affected; 0 means a lost race.
	DecrementStock(ctx context.Context, offerID int64, qty int) (int64, error)
	IncrementStock(ctx context.Context, offerID int64, qty int) error
	BindItem(ctx context.Context, itemID, offerID int64, qty, priceCents int) error
	AddReservation(ctx context.Context, orderID, offerID int64, qty int, expiresAt time.Time) error
	ConfirmReservations(ctx context.Context, orderID int64) error
	ReleaseReservations(ctx context.Context, orderID int64) error
	// OrderItems reads items without status preconditions; compensation uses
	// the persisted reserved quantities as ground truth.
	OrderItems(ctx context.Context, orderID int64) ([]Item, error)
	MarkProcessing(ctx context.Context, orderID, totalCents int64) error
	MarkSuccess(ctx context.Context, orderID int64) error
	MarkFailed(ctx context.Context, orderID int64, reason string) error
}
