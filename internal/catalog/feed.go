package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
)

// FeedItem is one listing in a vendor's stock feed. Price arrives in the
// vendor's currency unit and is stored as cents.
type FeedItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

func (f FeedItem) valid() bool {
	return f.ID != "" && f.Name != ""
}

// PriceCents rounds the feed price; vendors without a price list at 0.
func (f FeedItem) PriceCents() int {
	return int(math.Round(f.Price * 100))
}

// ClampedQuantity never lets a feed push stock below zero.
func (f FeedItem) ClampedQuantity() int {
	if f.Quantity < 0 {
		return 0
	}
	return f.Quantity
}

func fetchFeed(ctx context.Context, client *http.Client, url string) ([]FeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "stockagg-sync/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vendor feed unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vendor feed returned %d", resp.StatusCode)
	}

	var items []FeedItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("invalid feed format: %w", err)
	}
	return items, nil
}
