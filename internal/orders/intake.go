package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LineInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// LineCheck is the per-line result of the unlocked fulfillability check.
// Available is the largest single-offer stock, because a line is never split
// across vendors: combined stock does not make it fulfillable.
type LineCheck struct {
	ProductID     string `json:"product_id"`
	Requested     int    `json:"requested"`
	Available     int    `json:"available"`
	CanFulfill    bool   `json:"can_fulfill"`
	CheapestCents int    `json:"cheapest_cents"`
	VendorCount   int    `json:"vendor_count"`
	BestVendorID  string `json:"best_vendor_id,omitempty"`
}

type Intake struct{ DB *pgxpool.Pool }

// ValidateLines rejects structurally bad requests before any query runs.
func ValidateLines(items []LineInput) error {
	if len(items) == 0 {
		return errors.New("order has no items")
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.ProductID == "" {
			return errors.New("item missing product_id")
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("invalid quantity for product %s", it.ProductID)
		}
		if seen[it.ProductID] {
			return fmt.Errorf("duplicate product %s", it.ProductID)
		}
		seen[it.ProductID] = true
	}
	return nil
}

// CheckFulfillability runs without locks and is advisory only: the
// authoritative decision is always made by fulfillment under row locks.
func (i *Intake) CheckFulfillability(ctx context.Context, items []LineInput) ([]LineCheck, bool, error) {
	checks := make([]LineCheck, 0, len(items))
	allOK := true

	for _, it := range items {
		c := LineCheck{ProductID: it.ProductID, Requested: it.Quantity}

		err := i.DB.QueryRow(ctx, `
			SELECT COUNT(*), COALESCE(MIN(price_cents), 0), COALESCE(MAX(stock_quantity), 0)
			FROM offers
			WHERE product_id=$1 AND is_active AND stock_quantity > 0`, it.ProductID).
			Scan(&c.VendorCount, &c.CheapestCents, &c.Available)
		if err != nil {
			return nil, false, err
		}

		// Cheapest single offer that covers the whole line.
		err = i.DB.QueryRow(ctx, `
			SELECT vendor_id FROM offers
			WHERE product_id=$1 AND is_active AND stock_quantity >= $2
			ORDER BY price_cents ASC, id ASC
			LIMIT 1`, it.ProductID, it.Quantity).Scan(&c.BestVendorID)
		switch {
		case err == nil:
			c.CanFulfill = true
		case errors.Is(err, pgx.ErrNoRows):
			allOK = false
		default:
			return nil, false, err
		}

		checks = append(checks, c)
	}
	return checks, allOK, nil
}

// CreateOrder persists the pending order and its items in one transaction.
// Items start unbound: offer_id null, reserved_quantity and price 0. The
// caller publishes the fulfillment message only after this commits.
func (i *Intake) CreateOrder(ctx context.Context, customerID, externalRef string, items []LineInput) (int64, error) {
	tx, err := i.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var orderID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(customer_id, external_ref, status)
		VALUES ($1, $2, 'pending')
		RETURNING id`, customerID, externalRef).Scan(&orderID)
	if err != nil {
		return 0, err
	}

	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, quantity)
			VALUES ($1, $2, $3)`, orderID, it.ProductID, it.Quantity); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return orderID, nil
}

func (i *Intake) LookupByRef(ctx context.Context, externalRef string) (int64, Status, error) {
	var id int64
	var s string
	err := i.DB.QueryRow(ctx, `
		SELECT id, status FROM orders WHERE external_ref=$1`, externalRef).Scan(&id, &s)
	if err != nil {
		return 0, "", err
	}
	return id, Status(s), nil
}

func (i *Intake) OrderStatus(ctx context.Context, orderID int64) (Status, error) {
	var s string
	err := i.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&s)
	if err != nil {
		return "", err
	}
	return Status(s), nil
}

func (i *Intake) ListOffers(ctx context.Context) ([]Offer, error) {
	rows, err := i.DB.Query(ctx, `
		SELECT id, vendor_id, product_id, stock_quantity, price_cents, is_active, last_synced_at, updated_at
		FROM offers ORDER BY product_id, price_cents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Offer
	for rows.Next() {
		var o Offer
		if err := rows.Scan(&o.ID, &o.VendorID, &o.ProductID, &o.Stock, &o.PriceCents,
			&o.Active, &o.LastSyncedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
