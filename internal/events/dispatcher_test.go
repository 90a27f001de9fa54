package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishRunsEveryHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	boom := errors.New("boom")

	d.Subscribe(EventJobCreated, func(context.Context, Event) error {
		calls = append(calls, "first")
		return boom
	})
	d.Subscribe(EventJobCreated, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventApplicationSubmitted, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventJobCreated})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first", "second"}, calls)

	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventApplicationWithdrawn}))
}

func TestPublishStampsAndRecovers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var seen Event
	d.Subscribe(EventJobCreated, func(context.Context, Event) error {
		panic("handler bug")
	})
	d.Subscribe(EventJobCreated, func(_ context.Context, e Event) error {
		seen = e
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventJobCreated, JobID: "j-1"})
	assert.ErrorContains(t, err, "handler panicked")
	assert.NotEmpty(t, seen.ID)
	assert.False(t, seen.Timestamp.IsZero())
	assert.Equal(t, "j-1", seen.JobID)
}
