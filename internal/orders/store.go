package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store on a pgx pool. Each InTx call is one database
// transaction; the deferred rollback is a no-op after commit.
type PGStore struct{ DB *pgxpool.Pool }

func (s *PGStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) LockOrder(ctx context.Context, orderID int64) (*Order, []Item, error) {
	var o Order
	err := t.tx.QueryRow(ctx, `
		SELECT id, customer_id, external_ref, status, total_cents
		FROM orders WHERE id=$1 FOR UPDATE`, orderID).
		Scan(&o.ID, &o.CustomerID, &o.ExternalRef, &o.Status, &o.TotalCents)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotPending
	}
	if err != nil {
		return nil, nil, err
	}
	if o.Status != StatusPending {
		return nil, nil, ErrNotPending
	}

	rows, err := t.tx.Query(ctx, `
		SELECT id, order_id, product_id, quantity, reserved_quantity, price_cents, COALESCE(offer_id, 0)
		FROM order_items WHERE order_id=$1 FOR UPDATE`, orderID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity,
			&it.ReservedQuantity, &it.PriceCents, &it.OfferID); err != nil {
			return nil, nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return &o, items, nil
}

func (t *pgTx) LockOffers(ctx context.Context, productIDs []string) ([]Offer, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, vendor_id, product_id, stock_quantity, price_cents
		FROM offers
		WHERE product_id = ANY($1) AND is_active AND stock_quantity > 0
		ORDER BY price_cents ASC, id ASC
		FOR UPDATE`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Offer
	for rows.Next() {
		var of Offer
		if err := rows.Scan(&of.ID, &of.VendorID, &of.ProductID, &of.Stock, &of.PriceCents); err != nil {
			return nil, err
		}
		out = append(out, of)
	}
	return out, rows.Err()
}

func (t *pgTx) DecrementStock(ctx context.Context, offerID int64, qty int) (int64, error) {
	ct, err := t.tx.Exec(ctx, `
		UPDATE offers SET stock_quantity = stock_quantity - $2, updated_at = now()
		WHERE id=$1 AND stock_quantity >= $2`, offerID, qty)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (t *pgTx) IncrementStock(ctx context.Context, offerID int64, qty int) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE offers SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id=$1`, offerID, qty)
	return err
}

func (t *pgTx) BindItem(ctx context.Context, itemID, offerID int64, qty, priceCents int) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE order_items SET offer_id=$2, reserved_quantity=$3, price_cents=$4
		WHERE id=$1`, itemID, offerID, qty, priceCents)
	return err
}

func (t *pgTx) AddReservation(ctx context.Context, orderID, offerID int64, qty int, expiresAt time.Time) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO reservations(order_id, offer_id, quantity, status, expires_at)
		VALUES ($1, $2, $3, 'reserved', $4)`, orderID, offerID, qty, expiresAt)
	return err
}

func (t *pgTx) ConfirmReservations(ctx context.Context, orderID int64) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE reservations SET status='confirmed'
		WHERE order_id=$1 AND status='reserved'`, orderID)
	return err
}

func (t *pgTx) ReleaseReservations(ctx context.Context, orderID int64) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE reservations SET status='released'
		WHERE order_id=$1 AND status='reserved'`, orderID)
	return err
}

func (t *pgTx) OrderItems(ctx context.Context, orderID int64) ([]Item, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, order_id, product_id, quantity, reserved_quantity, price_cents, COALESCE(offer_id, 0)
		FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity,
			&it.ReservedQuantity, &it.PriceCents, &it.OfferID); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (t *pgTx) MarkProcessing(ctx context.Context, orderID, totalCents int64) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE orders SET status='processing', total_cents=$2, processed_at=now()
		WHERE id=$1`, orderID, totalCents)
	return err
}

func (t *pgTx) MarkSuccess(ctx context.Context, orderID int64) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE orders SET status='success' WHERE id=$1`, orderID)
	return err
}

func (t *pgTx) MarkFailed(ctx context.Context, orderID int64, reason string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE orders SET status='failed', fail_reason=$2, failed_at=now()
		WHERE id=$1`, orderID, reason)
	return err
}
