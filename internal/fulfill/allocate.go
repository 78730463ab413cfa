package fulfill

import "stockagg/internal/orders"

// Allocation binds one requested line to exactly one vendor offer for the
// full quantity.
type Allocation struct {
	OfferID    int64
	VendorID   string
	Quantity   int
	PriceCents int
}

// Allocate scans offers in the given order (callers pass them sorted by
// ascending price, ties in encounter order) and picks the first one whose
// stock covers the whole requested quantity. Lines are never split: if no
// single offer covers the amount the line is unfulfillable even when the
// combined stock would suffice.
//
// Pure and deterministic. The input may be stale; writers re-validate with a
// guarded decrement.
func Allocate(offers []orders.Offer, requested int) (Allocation, bool) {
	for _, o := range offers {
		if o.Stock >= requested {
			return Allocation{
				OfferID:    o.ID,
				VendorID:   o.VendorID,
				Quantity:   requested,
				PriceCents: o.PriceCents,
			}, true
		}
	}
	return Allocation{}, false
}
