package catalog

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Vendor rows are owned by sync; the fulfillment core only ever reads the
// offers derived from them.
type Vendor struct {
	ID      string
	Name    string
	FeedURL string
	Active  bool
}

// VendorSource lists the vendors a sync run covers.
type VendorSource interface {
	Active(ctx context.Context) ([]Vendor, error)
}

type VendorRepo struct{ DB *pgxpool.Pool }

func (r *VendorRepo) Active(ctx context.Context) ([]Vendor, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, feed_url, is_active FROM vendors WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.FeedURL, &v.Active); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
