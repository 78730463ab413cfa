package fulfill

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"stockagg/internal/orders"
)

// memStore is an in-memory orders.Store with snapshot transactions: fn runs
// against a deep copy that only replaces the live state on success, so an
// aborted transaction leaves nothing behind.
type memStore struct {
	mu sync.Mutex
	st *memState

	// failure injection
	decrementZero   map[int64]int // offer id -> times the guarded decrement reports 0
	failMarkSuccess bool
	failMarkProc    bool
}

type memState struct {
	orders       map[int64]*orders.Order
	items        map[int64][]orders.Item
	offers       map[int64]*orders.Offer
	reservations []orders.Reservation
	nextResID    int64
}

func newMemStore() *memStore {
	return &memStore{
		st: &memState{
			orders:    map[int64]*orders.Order{},
			items:     map[int64][]orders.Item{},
			offers:    map[int64]*orders.Offer{},
			nextResID: 1,
		},
		decrementZero: map[int64]int{},
	}
}

func (s *memStore) addOffer(id int64, vendor, product string, stock, priceCents int) {
	s.st.offers[id] = &orders.Offer{
		ID: id, VendorID: vendor, ProductID: product,
		Stock: stock, PriceCents: priceCents, Active: true,
	}
}

func (s *memStore) addOrder(id int64, status orders.Status, items ...orders.Item) {
	s.st.orders[id] = &orders.Order{ID: id, CustomerID: "cust-1", Status: status}
	for i := range items {
		items[i].OrderID = id
	}
	s.st.items[id] = items
}

func (s *memStore) offerStock(id int64) int { return s.st.offers[id].Stock }

func (s *memStore) order(id int64) orders.Order { return *s.st.orders[id] }

func (s *memStore) orderItems(id int64) []orders.Item { return s.st.items[id] }

func (s *memStore) reservationsFor(id int64) []orders.Reservation {
	var out []orders.Reservation
	for _, r := range s.st.reservations {
		if r.OrderID == id {
			out = append(out, r)
		}
	}
	return out
}

func (s *memStore) allStocksNonNegative() bool {
	for _, o := range s.st.offers {
		if o.Stock < 0 {
			return false
		}
	}
	return true
}

func (st *memState) clone() *memState {
	cp := &memState{
		orders:       make(map[int64]*orders.Order, len(st.orders)),
		items:        make(map[int64][]orders.Item, len(st.items)),
		offers:       make(map[int64]*orders.Offer, len(st.offers)),
		reservations: append([]orders.Reservation(nil), st.reservations...),
		nextResID:    st.nextResID,
	}
	for id, o := range st.orders {
		c := *o
		cp.orders[id] = &c
	}
	for id, its := range st.items {
		cp.items[id] = append([]orders.Item(nil), its...)
	}
	for id, o := range st.offers {
		c := *o
		cp.offers[id] = &c
	}
	return cp
}

func (s *memStore) InTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.st.clone()
	if err := fn(&memTx{store: s, st: snap}); err != nil {
		return err
	}
	s.st = snap
	return nil
}

type memTx struct {
	store *memStore
	st    *memState
}

func (t *memTx) LockOrder(ctx context.Context, orderID int64) (*orders.Order, []orders.Item, error) {
	o, ok := t.st.orders[orderID]
	if !ok || o.Status != orders.StatusPending {
		return nil, nil, orders.ErrNotPending
	}
	c := *o
	return &c, append([]orders.Item(nil), t.st.items[orderID]...), nil
}

func (t *memTx) LockOffers(ctx context.Context, productIDs []string) ([]orders.Offer, error) {
	want := map[string]bool{}
	for _, p := range productIDs {
		want[p] = true
	}
	var out []orders.Offer
	for _, o := range t.st.offers {
		if o.Active && o.Stock > 0 && want[o.ProductID] {
			out = append(out, *o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PriceCents != out[j].PriceCents {
			return out[i].PriceCents < out[j].PriceCents
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) DecrementStock(ctx context.Context, offerID int64, qty int) (int64, error) {
	if n := t.store.decrementZero[offerID]; n > 0 {
		t.store.decrementZero[offerID] = n - 1
		return 0, nil
	}
	o, ok := t.st.offers[offerID]
	if !ok || o.Stock < qty {
		return 0, nil
	}
	o.Stock -= qty
	return 1, nil
}

func (t *memTx) IncrementStock(ctx context.Context, offerID int64, qty int) error {
	if o, ok := t.st.offers[offerID]; ok {
		o.Stock += qty
	}
	return nil
}

func (t *memTx) BindItem(ctx context.Context, itemID, offerID int64, qty, priceCents int) error {
	for oid, its := range t.st.items {
		for i := range its {
			if its[i].ID == itemID {
				its[i].OfferID = offerID
				its[i].ReservedQuantity = qty
				its[i].PriceCents = priceCents
				t.st.items[oid] = its
				return nil
			}
		}
	}
	return errors.New("item not found")
}

func (t *memTx) AddReservation(ctx context.Context, orderID, offerID int64, qty int, expiresAt time.Time) error {
	t.st.reservations = append(t.st.reservations, orders.Reservation{
		ID: t.st.nextResID, OrderID: orderID, OfferID: offerID,
		Quantity: qty, Status: orders.ReservationReserved, ExpiresAt: expiresAt,
	})
	t.st.nextResID++
	return nil
}

func (t *memTx) ConfirmReservations(ctx context.Context, orderID int64) error {
	for i := range t.st.reservations {
		r := &t.st.reservations[i]
		if r.OrderID == orderID && r.Status == orders.ReservationReserved {
			r.Status = orders.ReservationConfirmed
		}
	}
	return nil
}

func (t *memTx) ReleaseReservations(ctx context.Context, orderID int64) error {
	for i := range t.st.reservations {
		r := &t.st.reservations[i]
		if r.OrderID == orderID && r.Status == orders.ReservationReserved {
			r.Status = orders.ReservationReleased
		}
	}
	return nil
}

func (t *memTx) OrderItems(ctx context.Context, orderID int64) ([]orders.Item, error) {
	return append([]orders.Item(nil), t.st.items[orderID]...), nil
}

func (t *memTx) MarkProcessing(ctx context.Context, orderID, totalCents int64) error {
	if t.store.failMarkProc {
		return errors.New("injected: mark processing failed")
	}
	o := t.st.orders[orderID]
	o.Status = orders.StatusProcessing
	o.TotalCents = totalCents
	return nil
}

func (t *memTx) MarkSuccess(ctx context.Context, orderID int64) error {
	if t.store.failMarkSuccess {
		return errors.New("injected: mark success failed")
	}
	t.st.orders[orderID].Status = orders.StatusSuccess
	return nil
}

func (t *memTx) MarkFailed(ctx context.Context, orderID int64, reason string) error {
	o := t.st.orders[orderID]
	o.Status = orders.StatusFailed
	o.FailReason = reason
	return nil
}
