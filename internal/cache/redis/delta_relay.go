package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rohidaprem/crypto-order-book/internal/domain"
)

// DeltaRelay publishes every committed delta onto the signal bus as JSON so
// out-of-process consumers (other instances, dashboards) stay in step with
// in-process subscribers.
type DeltaRelay struct {
	bus domain.SignalBus
}

// NewDeltaRelay creates a relay over the given bus.
func NewDeltaRelay(bus domain.SignalBus) *DeltaRelay {
	return &DeltaRelay{bus: bus}
}

// PublishDelta marshals the delta and publishes it to ch:book:{symbol}.
func (r *DeltaRelay) PublishDelta(ctx context.Context, delta domain.DeltaMessage) error {
	payload, err := json.Marshal(delta)
	if err != nil {
		return fmt.Errorf("redis: marshal delta %s: %w", delta.Symbol, err)
	}
	return r.bus.Publish(ctx, BookChannel(delta.Symbol), payload)
}

// Compile-time interface check.
var _ domain.DeltaPublisher = (*DeltaRelay)(nil)
