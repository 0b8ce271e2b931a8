package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/polymicro/manager/pkg/channels/gochannel"
	"github.com/polymicro/manager/pkg/eventbus"
	"github.com/polymicro/manager/pkg/events"
	"github.com/polymicro/manager/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	t.Cleanup(func() {
		require.NoError(t, bus.Close())
	})

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *events.PipelineSaved, 1)

	require.NoError(t, bus.Handle(events.PipelineSavedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.PipelineSaved)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	p := &models.Pipeline{ID: "pipe-1", ProjectID: "proj-1", Name: "Main"}
	require.NoError(t, bus.Publish(ctx, p.ID, events.NewPipelineSaved(p, true)))

	select {
	case event := <-received:
		assert.Equal(t, "pipe-1", event.PipelineID)
		assert.Equal(t, "Main", event.Name)
		assert.True(t, event.Created)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_UnhandledTypesAreAcked(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.EventType, 2)

	require.NoError(t, bus.Handle(events.PipelineDeletedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.PipelineDeleted).GetType()

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	p := &models.Pipeline{ID: "pipe-1"}
	require.NoError(t, bus.Publish(ctx, p.ID, events.NewPipelineSaved(p, false)))
	require.NoError(t, bus.Publish(ctx, p.ID, events.NewPipelineDeleted(p.ID, "")))

	select {
	case eventType := <-received:
		assert.Equal(t, events.PipelineDeletedEvent, eventType)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}

	assert.Empty(t, received)
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
