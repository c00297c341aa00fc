package application

import (
	"context"
	"errors"

	"github.com/RaikyD/krusty-orders-service/internal/domain"
)

// EventPublisher receives every committed order change. Delivery is best
// effort: the order state is already stored when Publish is called.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, evt domain.OrderEvent) error
}

type fanOut []EventPublisher

// FanOut publishes to every non-nil publisher and joins their errors.
func FanOut(pubs ...EventPublisher) EventPublisher {
	var out fanOut
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (f fanOut) PublishOrderEvent(ctx context.Context, evt domain.OrderEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishOrderEvent(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
