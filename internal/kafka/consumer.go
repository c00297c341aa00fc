package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/RaikyD/krusty-orders-service/internal/domain"
	"github.com/RaikyD/krusty-orders-service/internal/logger"
)

type ConsumerConfig struct {
	Brokers string
	Topic   string
	GroupID string
}

// EventHandler is called for every decoded order event.
type EventHandler interface {
	PublishOrderEvent(ctx context.Context, evt domain.OrderEvent) error
}

// StartConsumer feeds order events from the topic into h until ctx ends.
// Other instances' status changes reach the local kitchen queue this way.
func StartConsumer(ctx context.Context, h EventHandler, cfg ConsumerConfig) (*kafka.Reader, error) {
	brokers := strings.Split(cfg.Brokers, ",")

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         brokers,
		GroupID:         cfg.GroupID,
		Topic:           cfg.Topic,
		MinBytes:        1,
		MaxBytes:        10e6,
		CommitInterval:  0,
		StartOffset:     kafka.LastOffset,
		ReadLagInterval: -1,
	})

	logger.Info("kafka consumer starting", "brokers", cfg.Brokers, "topic", cfg.Topic, "group", cfg.GroupID)

	go func() {
		defer r.Close()

		backoff := time.Millisecond * 300
		for {
			m, err := r.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("kafka fetch error", "err", err)
				time.Sleep(backoff)
				continue
			}

			evt, err := decodeEvent(m)
			if err != nil {
				logger.Warn("kafka invalid event. skip and commit", "offset", m.Offset, "err", err)
				_ = r.CommitMessages(ctx, m)
				continue
			}

			if err = h.PublishOrderEvent(ctx, evt); err != nil {
				logger.Warn("kafka event handler failed, will retry", "order_id", evt.OrderID, "err", err)
				time.Sleep(backoff)
				continue
			}

			if err := r.CommitMessages(ctx, m); err != nil {
				logger.Warn("[kafka] commit failed", "err", err)
			} else {
				logger.Debug("[kafka] committed", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "order_id", evt.OrderID)
			}
		}
	}()
	return r, nil
}

func decodeEvent(m kafka.Message) (domain.OrderEvent, error) {
	var evt domain.OrderEvent
	if err := json.Unmarshal(m.Value, &evt); err != nil {
		return evt, err
	}
	if !evt.To.Valid() || (evt.From != "" && !evt.From.Valid()) {
		return evt, domain.ErrValidation
	}
	return evt, nil
}
