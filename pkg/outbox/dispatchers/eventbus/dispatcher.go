package eventbus

import (
	"context"

	"github.com/benefia/approvals/pkg/eventbus"
	"github.com/benefia/approvals/pkg/outbox"
)

// Dispatcher bridges the outbox relay onto the in-process event bus.
// Subscribers use the signature
//
//	func(meta *outbox.Meta, topic string, payload json.RawMessage) error
//
// and a non-nil return makes the relay retry the message.
type Dispatcher struct {
	bus eventbus.EventBusWithError
}

func New(bus eventbus.EventBusWithError) *Dispatcher {
	return &Dispatcher{bus: bus}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg outbox.DispatchedMessage) error {
	_ = ctx
	return d.bus.PublishE(&msg.Meta, msg.Meta.Topic, msg.Payload)
}
