package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "stockagg/internal/kafka"
	"stockagg/internal/orders"
)

// IntakeService is what the handler needs from the orders package.
type IntakeService interface {
	CheckFulfillability(ctx context.Context, items []orders.LineInput) ([]orders.LineCheck, bool, error)
	CreateOrder(ctx context.Context, customerID, externalRef string, items []orders.LineInput) (int64, error)
	LookupByRef(ctx context.Context, externalRef string) (int64, orders.Status, error)
	OrderStatus(ctx context.Context, orderID int64) (orders.Status, error)
	ListOffers(ctx context.Context) ([]orders.Offer, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// OrderCache is the Redis fast path for polling and intake idempotency.
type OrderCache interface {
	SetStatus(ctx context.Context, orderID int64, status string)
	GetStatus(ctx context.Context, orderID int64) (string, bool)
	SetRef(ctx context.Context, ref string, orderID int64)
	LookupRef(ctx context.Context, ref string) (int64, bool)
}

type OrdersHandler struct {
	Intake   IntakeService
	Producer Publisher
	Cache    OrderCache
}

type CreateOrderReq struct {
	CustomerID  string             `json:"customer_id"`
	ExternalRef string             `json:"external_ref,omitempty"`
	Items       []orders.LineInput `json:"items"`
}

type CreateOrderResp struct {
	OrderID     int64         `json:"order_id"`
	ExternalRef string        `json:"external_ref"`
	Status      orders.Status `json:"status"`
	Idempotent  bool          `json:"idempotent,omitempty"`
}

type rejectResp struct {
	Error string             `json:"error"`
	Lines []orders.LineCheck `json:"lines"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/products", h.listOffers)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.CustomerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing customer_id"})
		return
	}
	if err := orders.ValidateLines(req.Items); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Idempotent re-submit short-circuits before any write. Redis is the
	// fast path, the orders table the truth.
	ref := req.ExternalRef
	if ref != "" {
		if id, ok := h.Cache.LookupRef(ctx, ref); ok {
			status, err := h.Intake.OrderStatus(ctx, id)
			if err == nil {
				writeJSON(w, http.StatusOK, CreateOrderResp{OrderID: id, ExternalRef: ref, Status: status, Idempotent: true})
				return
			}
		}
		if id, status, err := h.Intake.LookupByRef(ctx, ref); err == nil {
			writeJSON(w, http.StatusOK, CreateOrderResp{OrderID: id, ExternalRef: ref, Status: status, Idempotent: true})
			return
		}
	} else {
		ref = uuid.NewString()
	}

	// Advisory: fulfillment re-decides under row locks. This only filters
	// orders that obviously cannot be covered by any single offer.
	checks, ok, err := h.Intake.CheckFulfillability(ctx, req.Items)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, rejectResp{Error: "insufficient stock", Lines: checks})
		return
	}

	orderID, err := h.Intake.CreateOrder(ctx, req.CustomerID, ref, req.Items)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.Cache.SetRef(ctx, ref, orderID)
	h.Cache.SetStatus(ctx, orderID, string(orders.StatusPending))

	// Publish only after the pending order committed.
	h.Producer.Publish(
		orders.PartitionKey(orderID),
		kafkax.MustMarshal(orders.FulfillMessage{OrderID: orderID, Retry: 0}),
	)

	writeJSON(w, http.StatusAccepted, CreateOrderResp{OrderID: orderID, ExternalRef: ref, Status: orders.StatusPending})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if s, ok := h.Cache.GetStatus(ctx, id); ok {
		writeJSON(w, http.StatusOK, map[string]any{"order_id": id, "status": s})
		return
	}

	status, err := h.Intake.OrderStatus(ctx, id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	h.Cache.SetStatus(ctx, id, string(status))
	writeJSON(w, http.StatusOK, map[string]any{"order_id": id, "status": status})
}

func (h *OrdersHandler) listOffers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	offers, err := h.Intake.ListOffers(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, offers)
}
