package catalog

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Service reconciles the offers table against each vendor's stock feed.
// Fulfillment never waits on it: it reads whatever snapshot sync last
// committed, under its own row locks.
type Service struct {
	DB       *pgxpool.Pool
	Vendors  VendorSource
	Client   *http.Client
	Attempts int
	Delay    time.Duration
	Log      zerolog.Logger

	sleep func(ctx context.Context, d time.Duration)
}

func NewService(db *pgxpool.Pool, attempts int, delay time.Duration, log zerolog.Logger) *Service {
	if attempts <= 0 {
		attempts = 3
	}
	return &Service{
		DB:       db,
		Vendors:  &VendorRepo{DB: db},
		Client:   &http.Client{Timeout: 10 * time.Second},
		Attempts: attempts,
		Delay:    delay,
		Log:      log.With().Str("component", "vendor-sync").Logger(),
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Sync refreshes every active vendor, retrying each a bounded number of
// times. A vendor that keeps failing is skipped; the run itself does not
// fail because of one vendor.
func (s *Service) Sync(ctx context.Context) error {
	vendors, err := s.Vendors.Active(ctx)
	if err != nil {
		return err
	}

	for _, v := range vendors {
		log := s.Log.With().Str("vendor", v.ID).Logger()

		var lastErr error
		for attempt := 1; attempt <= s.Attempts; attempt++ {
			if err := s.syncVendor(ctx, v); err != nil {
				lastErr = err
				log.Warn().Err(err).Int("attempt", attempt).Msg("sync attempt failed")
				if attempt < s.Attempts {
					s.sleep(ctx, s.Delay)
				}
				continue
			}
			lastErr = nil
			log.Info().Msg("stock synced")
			break
		}
		if lastErr != nil {
			log.Error().Err(lastErr).Msg("giving up on vendor")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// syncVendor replaces the vendor's offer set in one transaction: deactivate
// everything, upsert what the feed still lists, drop what stayed inactive.
func (s *Service) syncVendor(ctx context.Context, v Vendor) error {
	items, err := fetchFeed(ctx, s.Client, v.FeedURL)
	if err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE offers SET is_active=false WHERE vendor_id=$1`, v.ID); err != nil {
		return err
	}

	for _, item := range items {
		if !item.valid() {
			s.Log.Warn().Str("vendor", v.ID).Interface("item", item).Msg("skipping invalid feed item")
			continue
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO offers(vendor_id, product_id, stock_quantity, price_cents, is_active, last_synced_at, updated_at)
			VALUES ($1, $2, $3, $4, true, now(), now())
			ON CONFLICT (vendor_id, product_id) DO UPDATE SET
				stock_quantity = EXCLUDED.stock_quantity,
				price_cents    = EXCLUDED.price_cents,
				is_active      = true,
				last_synced_at = now(),
				updated_at     = now()`,
			v.ID, item.ID, item.ClampedQuantity(), item.PriceCents()); err != nil {
			return err
		}
	}

	// Discontinued listings: whatever the feed no longer mentions.
	ct, err := tx.Exec(ctx, `
		DELETE FROM offers WHERE vendor_id=$1 AND NOT is_active`, v.ID)
	if err != nil {
		return err
	}
	if n := ct.RowsAffected(); n > 0 {
		s.Log.Info().Str("vendor", v.ID).Int64("removed", n).Msg("discontinued offers removed")
	}

	return tx.Commit(ctx)
}
