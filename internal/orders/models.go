package orders

import "time"

// Offer is one vendor's priced, stocked listing for a logical product.
// ProductID is the vendor-agnostic key shared by offers for the same item.
type Offer struct {
	ID           int64
	VendorID     string
	ProductID    string
	Stock        int
	PriceCents   int
	Active       bool
	LastSyncedAt time.Time
	UpdatedAt    time.Time
}

type Order struct {
	ID          int64
	CustomerID  string
	ExternalRef string
	Status      Status
	TotalCents  int64
	FailReason  string
	CreatedAt   time.Time
	ProcessedAt *time.Time
	FailedAt    *time.Time
}

// Item is one requested line. OfferID is 0 and ReservedQuantity/PriceCents
// stay 0 until fulfillment binds the line to a vendor offer.
type Item struct {
	ID               int64
	OrderID          int64
	ProductID        string
	Quantity         int
	ReservedQuantity int
	PriceCents       int
	OfferID          int64
}

const (
	ReservationReserved  = "reserved"
	ReservationConfirmed = "confirmed"
	ReservationReleased  = "released"
)

// Reservation rows are never deleted; they move reserved -> confirmed or
// reserved -> released.
type Reservation struct {
	ID        int64
	OrderID   int64
	OfferID   int64
	Quantity  int
	Status    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
