package events

import (
	"context"
	"errors"
	"io"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishJSON(t *testing.T) {
	bus := NewEventBus()

	var got []Event
	bus.Subscribe("reservation.created", func(e Event) error {
		got = append(got, e)
		return nil
	})
	var all int
	bus.Subscribe("*", func(e Event) error {
		all++
		return nil
	})

	require.NoError(t, bus.PublishJSON("reservation.created", map[string]int{"id": 7}))
	require.NoError(t, bus.PublishJSON("reservation.cancelled", map[string]int{"id": 7}))

	require.Len(t, got, 1)
	assert.Equal(t, 2, all)
	assert.NotZero(t, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())

	var payload struct{ ID int }
	require.NoError(t, got[0].Decode(&payload))
	assert.Equal(t, 7, payload.ID)
}

func TestEventBus_HandlerErrors(t *testing.T) {
	bus := NewEventBus()
	var failed []string
	bus.OnError = func(e Event, err error) { failed = append(failed, e.Type+": "+err.Error()) }

	called := false
	bus.Subscribe("x", func(Event) error { return errors.New("boom") })
	bus.Subscribe("x", func(Event) error { called = true; return nil })

	bus.Publish(Event{Type: "x"})
	assert.True(t, called)
	assert.Equal(t, []string{"x: boom"}, failed)

	assert.Error(t, bus.PublishJSON("x", func() {}))
}

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return m.Called(name, kind, durable).Error(0)
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(exchange, key, msg).Error(0)
}

func (m *mockChannel) Close() error { return m.Called().Error(0) }

func TestAMQPForwarder(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ch := &mockChannel{}
	ch.On("ExchangeDeclare", "drumbot.events", amqp.ExchangeTopic, true).Return(nil)
	ch.On("PublishWithContext", "drumbot.events", "reservation.created", mock.MatchedBy(func(p amqp.Publishing) bool {
		return p.ContentType == "application/json" && string(p.Body) == `{"id":1}` && p.MessageId != ""
	})).Return(nil).Once()
	ch.On("PublishWithContext", "drumbot.events", "reservation.cancelled", mock.Anything).Return(errors.New("channel closed")).Once()
	ch.On("Close").Return(nil)

	f, err := newAMQPForwarder(ch, "drumbot.events", &logger)
	require.NoError(t, err)

	bus := NewEventBus()
	bus.Subscribe("*", f.Handle)
	var failures int
	bus.OnError = func(Event, error) { failures++ }

	require.NoError(t, bus.PublishJSON("reservation.created", map[string]int{"id": 1}))
	require.NoError(t, bus.PublishJSON("reservation.cancelled", map[string]int{"id": 1}))
	assert.Equal(t, 1, failures)

	require.NoError(t, f.Close())
	ch.AssertExpectations(t)
}

func TestAMQPForwarder_DeclareFails(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ch := &mockChannel{}
	ch.On("ExchangeDeclare", "ex", amqp.ExchangeTopic, true).Return(errors.New("access refused"))
	ch.On("Close").Return(nil)

	_, err := newAMQPForwarder(ch, "ex", &logger)
	assert.ErrorContains(t, err, "access refused")
	ch.AssertCalled(t, "Close")
}
