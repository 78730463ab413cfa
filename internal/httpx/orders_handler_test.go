package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockagg/internal/orders"
)

type stubIntake struct {
	checks    []orders.LineCheck
	checkOK   bool
	orderID   int64
	created   bool
	status    orders.Status
	statusErr error
	refID     int64
	refStatus orders.Status
	refErr    error
	offers    []orders.Offer
}

func (s *stubIntake) CheckFulfillability(ctx context.Context, items []orders.LineInput) ([]orders.LineCheck, bool, error) {
	return s.checks, s.checkOK, nil
}

func (s *stubIntake) CreateOrder(ctx context.Context, customerID, externalRef string, items []orders.LineInput) (int64, error) {
	s.created = true
	return s.orderID, nil
}

func (s *stubIntake) LookupByRef(ctx context.Context, externalRef string) (int64, orders.Status, error) {
	return s.refID, s.refStatus, s.refErr
}

func (s *stubIntake) OrderStatus(ctx context.Context, orderID int64) (orders.Status, error) {
	return s.status, s.statusErr
}

func (s *stubIntake) ListOffers(ctx context.Context) ([]orders.Offer, error) {
	return s.offers, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []orders.FulfillMessage
}

func (p *recordingPublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	var m orders.FulfillMessage
	_ = json.Unmarshal(value, &m)
	p.mu.Lock()
	p.msgs = append(p.msgs, m)
	p.mu.Unlock()
}

type mapCache struct {
	status map[int64]string
	refs   map[string]int64
}

func newMapCache() *mapCache {
	return &mapCache{status: map[int64]string{}, refs: map[string]int64{}}
}

func (c *mapCache) SetStatus(ctx context.Context, orderID int64, status string) {
	c.status[orderID] = status
}
func (c *mapCache) GetStatus(ctx context.Context, orderID int64) (string, bool) {
	s, ok := c.status[orderID]
	return s, ok
}
func (c *mapCache) SetRef(ctx context.Context, ref string, orderID int64) { c.refs[ref] = orderID }
func (c *mapCache) LookupRef(ctx context.Context, ref string) (int64, bool) {
	id, ok := c.refs[ref]
	return id, ok
}

func newTestServer(intake *stubIntake) (*httptest.Server, *recordingPublisher, *mapCache) {
	pub := &recordingPublisher{}
	cache := newMapCache()
	r := NewRouter(zerolog.Nop())
	(&OrdersHandler{Intake: intake, Producer: pub, Cache: cache}).Register(r)
	return httptest.NewServer(r), pub, cache
}

func TestCreateOrder(t *testing.T) {
	t.Run("accepted and published after commit", func(t *testing.T) {
		intake := &stubIntake{checkOK: true, orderID: 42}
		srv, pub, cache := newTestServer(intake)
		defer srv.Close()

		resp, err := http.Post(srv.URL+"/orders", "application/json",
			strings.NewReader(`{"customer_id":"cust-1","items":[{"product_id":"product-1","quantity":5}]}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		var body CreateOrderResp
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, int64(42), body.OrderID)
		assert.Equal(t, orders.StatusPending, body.Status)
		assert.NotEmpty(t, body.ExternalRef, "server assigns a ref when the client sends none")

		require.Len(t, pub.msgs, 1)
		assert.Equal(t, orders.FulfillMessage{OrderID: 42, Retry: 0}, pub.msgs[0])
		assert.True(t, intake.created)
		assert.Equal(t, "pending", cache.status[42])
	})

	t.Run("unfulfillable line rejected with detail", func(t *testing.T) {
		intake := &stubIntake{
			checkOK: false,
			checks: []orders.LineCheck{{
				ProductID: "product-1", Requested: 100, Available: 50,
				CanFulfill: false, VendorCount: 2, CheapestCents: 100,
			}},
		}
		srv, pub, _ := newTestServer(intake)
		defer srv.Close()

		resp, err := http.Post(srv.URL+"/orders", "application/json",
			strings.NewReader(`{"customer_id":"cust-1","items":[{"product_id":"product-1","quantity":100}]}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		var body rejectResp
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Lines, 1)
		assert.False(t, body.Lines[0].CanFulfill)
		assert.Equal(t, 50, body.Lines[0].Available)

		assert.False(t, intake.created, "rejected orders are never persisted")
		assert.Empty(t, pub.msgs, "and never published")
	})

	t.Run("bad requests", func(t *testing.T) {
		intake := &stubIntake{checkOK: true, orderID: 1}
		srv, pub, _ := newTestServer(intake)
		defer srv.Close()

		for name, payload := range map[string]string{
			"invalid json":     `{`,
			"missing customer": `{"items":[{"product_id":"p","quantity":1}]}`,
			"no items":         `{"customer_id":"c","items":[]}`,
			"zero quantity":    `{"customer_id":"c","items":[{"product_id":"p","quantity":0}]}`,
			"duplicate lines":  `{"customer_id":"c","items":[{"product_id":"p","quantity":1},{"product_id":"p","quantity":2}]}`,
		} {
			t.Run(name, func(t *testing.T) {
				resp, err := http.Post(srv.URL+"/orders", "application/json", strings.NewReader(payload))
				require.NoError(t, err)
				resp.Body.Close()
				assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			})
		}
		assert.Empty(t, pub.msgs)
	})

	t.Run("idempotent resubmit returns existing order", func(t *testing.T) {
		intake := &stubIntake{checkOK: true, orderID: 9, refID: 9, refStatus: orders.StatusProcessing}
		srv, pub, _ := newTestServer(intake)
		defer srv.Close()

		resp, err := http.Post(srv.URL+"/orders", "application/json",
			strings.NewReader(`{"customer_id":"cust-1","external_ref":"ref-1","items":[{"product_id":"p","quantity":1}]}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body CreateOrderResp
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.True(t, body.Idempotent)
		assert.Equal(t, int64(9), body.OrderID)
		assert.False(t, intake.created)
		assert.Empty(t, pub.msgs, "no duplicate fulfillment message")
	})
}

func TestGetOrder(t *testing.T) {
	t.Run("cache hit", func(t *testing.T) {
		intake := &stubIntake{statusErr: errors.New("db should not be hit")}
		srv, _, cache := newTestServer(intake)
		defer srv.Close()
		cache.status[7] = "processing"

		resp, err := http.Get(srv.URL + "/orders/7")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "processing", body["status"])
	})

	t.Run("db fallback populates cache", func(t *testing.T) {
		intake := &stubIntake{status: orders.StatusSuccess}
		srv, _, cache := newTestServer(intake)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/orders/8")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "success", cache.status[8])
	})

	t.Run("unknown order", func(t *testing.T) {
		intake := &stubIntake{statusErr: errors.New("no rows")}
		srv, _, _ := newTestServer(intake)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/orders/999")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("non-numeric id", func(t *testing.T) {
		srv, _, _ := newTestServer(&stubIntake{})
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/orders/abc")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
