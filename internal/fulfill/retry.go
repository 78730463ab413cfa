package fulfill

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "stockagg/internal/kafka"
	"stockagg/internal/orders"
)

const DefaultMaxRetry = 3

// Publisher re-publishes retry messages; satisfied by kafkax.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// StatusCache mirrors terminal order status for pollers; best-effort.
type StatusCache interface {
	SetStatus(ctx context.Context, orderID int64, status string)
}

// Retrier is the consumer handler. Every message resolves to exactly one
// acknowledgement: terminal drop, success, a scheduled re-publish, or
// compensation after the retry budget is spent. Failures are classified by
// retry count alone, never by kind.
type Retrier struct {
	Machine  *Machine
	Producer Publisher
	Clock    Clock
	MaxRetry int
	Cache    StatusCache
	Log      zerolog.Logger

	mu      sync.Mutex
	pending map[int64]func()
	stopped bool
}

func NewRetrier(m *Machine, p Publisher, clock Clock, maxRetry int, cache StatusCache, log zerolog.Logger) *Retrier {
	if maxRetry <= 0 {
		maxRetry = DefaultMaxRetry
	}
	return &Retrier{
		Machine:  m,
		Producer: p,
		Clock:    clock,
		MaxRetry: maxRetry,
		Cache:    cache,
		Log:      log.With().Str("component", "retrier").Logger(),
		pending:  make(map[int64]func()),
	}
}

// Backoff is the delay before attempt+1: 2^attempt seconds (1s, 2s, 4s).
func Backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// Handle processes one fulfillment message. A nil return commits the offset.
func (r *Retrier) Handle(ctx context.Context, m kafkago.Message) error {
	var msg orders.FulfillMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		r.Log.Error().Err(err).Msg("malformed message, dropping")
		return nil
	}

	log := r.Log.With().Int64("order_id", msg.OrderID).Int("attempt", msg.Retry).Logger()

	err := r.process(ctx, msg.OrderID)
	if err == nil {
		r.setStatus(ctx, msg.OrderID, orders.StatusSuccess)
		log.Info().Msg("order fulfilled")
		return nil
	}

	if errors.Is(err, ErrAlreadyProcessed) {
		// Redelivery or duplicate; nothing to do and nothing to undo.
		log.Info().Msg("order not pending, dropping")
		return nil
	}

	log.Warn().Err(err).Msg("attempt failed")

	if msg.Retry < r.MaxRetry {
		r.schedule(msg.OrderID, msg.Retry)
		return nil
	}

	// Retry budget spent: unwind and settle the order as failed.
	if cerr := r.Machine.Compensate(ctx, msg.OrderID, err.Error()); cerr != nil {
		return cerr
	}
	r.setStatus(ctx, msg.OrderID, orders.StatusFailed)
	return nil
}

func (r *Retrier) process(ctx context.Context, orderID int64) error {
	if err := r.Machine.Fulfill(ctx, orderID); err != nil {
		return err
	}
	return r.Machine.Finalize(ctx, orderID)
}

// schedule re-publishes {orderId, attempt+1} after the backoff delay. The
// current message is acknowledged right away; the continuation holds no
// worker and survives until fired or Stop cancels it.
func (r *Retrier) schedule(orderID int64, attempt int) {
	delay := Backoff(attempt)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	if cancel, ok := r.pending[orderID]; ok {
		cancel()
	}
	r.pending[orderID] = r.Clock.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.pending, orderID)
		r.mu.Unlock()

		b := kafkax.MustMarshal(orders.FulfillMessage{OrderID: orderID, Retry: attempt + 1})
		r.Producer.Publish(orders.PartitionKey(orderID), b)
		r.Log.Info().Int64("order_id", orderID).Int("attempt", attempt+1).
			Dur("delay", delay).Msg("retry published")
	})
}

// Stop cancels all scheduled retries. The messages that caused them were
// already acknowledged, so a canceled retry leaves its order pending until a
// new message for it is published.
func (r *Retrier) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for id, cancel := range r.pending {
		cancel()
		delete(r.pending, id)
	}
}

func (r *Retrier) setStatus(ctx context.Context, orderID int64, s orders.Status) {
	if r.Cache != nil {
		r.Cache.SetStatus(ctx, orderID, string(s))
	}
}
