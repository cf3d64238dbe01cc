package eventbus_test

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benefia/approvals/pkg/eventbus"
)

type createdEvent struct {
	ID int
}

func TestEventBus_PublishToMatchingSubscriber(t *testing.T) {
	t.Parallel()
	bus := eventbus.NewEventPublisher(logrus.New())

	var got *createdEvent
	bus.Subscribe(func(e *createdEvent) {
		got = e
	})

	bus.Publish(&createdEvent{ID: 7})

	require.NotNil(t, got)
	assert.Equal(t, 7, got.ID)
}

func TestEventBus_SkipsNonMatchingSubscriber(t *testing.T) {
	t.Parallel()
	bus := eventbus.NewEventPublisher(logrus.New())

	called := false
	bus.Subscribe(func(s string) {
		called = true
	})

	bus.Publish(&createdEvent{ID: 1})
	assert.False(t, called)
}

func TestEventBus_PublishE_SurfacesHandlerError(t *testing.T) {
	t.Parallel()
	bus := eventbus.NewEventPublisher(logrus.New())

	boom := errors.New("boom")
	bus.Subscribe(func(e *createdEvent) error {
		return boom
	})

	err := bus.PublishE(&createdEvent{ID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestEventBus_PublishE_NoSubscribers(t *testing.T) {
	t.Parallel()
	bus := eventbus.NewEventPublisher(logrus.New())

	err := bus.PublishE(&createdEvent{ID: 1})
	assert.ErrorIs(t, err, eventbus.ErrNoSubscribers)
}

func TestEventBus_RecoversFromPanic(t *testing.T) {
	t.Parallel()
	bus := eventbus.NewEventPublisher(logrus.New())

	bus.Subscribe(func(e *createdEvent) {
		panic("handler blew up")
	})

	assert.NotPanics(t, func() {
		bus.Publish(&createdEvent{ID: 1})
	})
}

func TestEventBus_Unsubscribe(t *testing.T) {
	t.Parallel()
	bus := eventbus.NewEventPublisher(logrus.New())

	handler := func(e *createdEvent) {}
	bus.Subscribe(handler)
	require.Equal(t, 1, bus.SubscribersCount())

	bus.Unsubscribe(handler)
	assert.Equal(t, 0, bus.SubscribersCount())
}
