package fulfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stockagg/internal/orders"
)

const DefaultReservationTTL = 30 * time.Minute

// Machine drives one order through lock -> allocate -> reserve and then
// either confirm or compensate. Each method is a single all-or-nothing
// transaction; concurrency control is entirely the store's row locks, the
// machine holds no state of its own.
type Machine struct {
	Store          orders.Store
	Clock          Clock
	ReservationTTL time.Duration
	Log            zerolog.Logger
}

func NewMachine(store orders.Store, clock Clock, log zerolog.Logger) *Machine {
	return &Machine{
		Store:          store,
		Clock:          clock,
		ReservationTTL: DefaultReservationTTL,
		Log:            log.With().Str("component", "fulfill").Logger(),
	}
}

// Fulfill locks the pending order, allocates every line against the locked
// offer snapshot and reserves the stock. Any unallocatable line or lost
// decrement race aborts the whole transaction; there are no partial commits.
func (m *Machine) Fulfill(ctx context.Context, orderID int64) error {
	return m.Store.InTx(ctx, func(tx orders.Tx) error {
		ord, items, err := tx.LockOrder(ctx, orderID)
		if errors.Is(err, orders.ErrNotPending) {
			return fmt.Errorf("%w: order %d", ErrAlreadyProcessed, orderID)
		}
		if err != nil {
			return err
		}

		m.Log.Info().
			Int64("order_id", orderID).
			Str("customer_id", ord.CustomerID).
			Int("lines", len(items)).
			Msg("fulfilling")

		productIDs := make([]string, 0, len(items))
		for _, it := range items {
			productIDs = append(productIDs, it.ProductID)
		}

		offers, err := tx.LockOffers(ctx, productIDs)
		if err != nil {
			return err
		}
		byProduct := make(map[string][]orders.Offer)
		for _, o := range offers {
			byProduct[o.ProductID] = append(byProduct[o.ProductID], o)
		}

		expiresAt := m.Clock.Now().Add(m.ReservationTTL)
		var total int64

		for _, it := range items {
			alloc, ok := Allocate(byProduct[it.ProductID], it.Quantity)
			if !ok {
				return fmt.Errorf("%w: no single offer covers %d of product %s",
					ErrInsufficientStock, it.Quantity, it.ProductID)
			}

			n, err := tx.DecrementStock(ctx, alloc.OfferID, alloc.Quantity)
			if err != nil {
				return err
			}
			if n == 0 {
				// Offer changed under us despite the snapshot; lost race.
				return fmt.Errorf("%w: offer %d no longer covers %d of product %s",
					ErrInsufficientStock, alloc.OfferID, alloc.Quantity, it.ProductID)
			}

			if err := tx.BindItem(ctx, it.ID, alloc.OfferID, alloc.Quantity, alloc.PriceCents); err != nil {
				return err
			}
			if err := tx.AddReservation(ctx, orderID, alloc.OfferID, alloc.Quantity, expiresAt); err != nil {
				return err
			}
			total += int64(alloc.PriceCents) * int64(alloc.Quantity)

			m.Log.Info().
				Int64("order_id", orderID).
				Str("product_id", it.ProductID).
				Int64("offer_id", alloc.OfferID).
				Str("vendor", alloc.VendorID).
				Int("qty", alloc.Quantity).
				Int("price_cents", alloc.PriceCents).
				Msg("reserved")
		}

		return tx.MarkProcessing(ctx, orderID, total)
	})
}

// Finalize confirms every reserved reservation and marks the order success,
// atomically. Payment and shipping stay simulated; this is where they would
// hook in.
func (m *Machine) Finalize(ctx context.Context, orderID int64) error {
	err := m.Store.InTx(ctx, func(tx orders.Tx) error {
		if err := tx.ConfirmReservations(ctx, orderID); err != nil {
			return err
		}
		return tx.MarkSuccess(ctx, orderID)
	})
	if err != nil {
		return fmt.Errorf("finalize order %d: %w", orderID, err)
	}
	m.Log.Info().Int64("order_id", orderID).Msg("order completed")
	return nil
}

// Compensate unwinds whatever fulfillment persisted: each bound offer gets
// its stock back by the item's reserved_quantity (0 where nothing was ever
// reserved), reservations flip to released and the order fails with the
// reason recorded. Safe after partial fulfill aborts.
func (m *Machine) Compensate(ctx context.Context, orderID int64, reason string) error {
	err := m.Store.InTx(ctx, func(tx orders.Tx) error {
		items, err := tx.OrderItems(ctx, orderID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if it.OfferID == 0 || it.ReservedQuantity == 0 {
				continue
			}
			if err := tx.IncrementStock(ctx, it.OfferID, it.ReservedQuantity); err != nil {
				return err
			}
		}
		if err := tx.ReleaseReservations(ctx, orderID); err != nil {
			return err
		}
		return tx.MarkFailed(ctx, orderID, reason)
	})
	if err != nil {
		return fmt.Errorf("compensate order %d: %w", orderID, err)
	}
	m.Log.Warn().Int64("order_id", orderID).Str("reason", reason).Msg("order failed, stock released")
	return nil
}
