package kafka

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/RaikyD/krusty-orders-service/internal/domain"
)

type Producer struct {
	w *kafka.Writer
}

func NewProducer(brokersSTR, topic string) *Producer {
	brokers := strings.Split(brokersSTR, ",")

	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
	}
}

func (p *Producer) Close() error {
	return p.w.Close()
}

// PublishOrderEvent keys by order id so one order's events stay in order
// on a single partition.
func (p *Producer) PublishOrderEvent(ctx context.Context, evt domain.OrderEvent) error {
	msg, err := eventMessage(evt)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, msg)
}

func eventMessage(evt domain.OrderEvent) (kafka.Message, error) {
	b, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(evt.OrderID.String()),
		Value: b,
		Time:  evt.At,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event-status", Value: []byte(evt.To)},
		},
	}, nil
}
