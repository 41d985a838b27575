package notifications

import (
	"context"

	"inspiro/internal/models"
)

// Publisher receives domain events.
type Publisher interface {
	Publish(ctx context.Context, e models.Event)
}

// Fanout hands every event to each publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e models.Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, e)
		}
	}
}
