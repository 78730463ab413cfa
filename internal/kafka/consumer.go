package kafka

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message is fully resolved and its offset
// may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// Consumer processes one message at a time: fetch, handle, commit. A handler
// error means the store or broker is unhealthy; the same message is retried
// in place after a short pause instead of advancing past it.
type Consumer struct {
	r   *kafka.Reader
	log zerolog.Logger
}

func NewConsumer(brokers []string, group, topic string, log zerolog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return &Consumer{
		r:   r,
		log: log.With().Str("component", "consumer").Str("topic", topic).Logger(),
	}
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		for {
			err := h(ctx, m)
			if err == nil {
				break
			}
			c.log.Error().Err(err).Int64("offset", m.Offset).Msg("handler failed, retrying in place")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(200 * time.Millisecond):
			}
		}

		if err := c.r.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
