package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeAck struct {
	acked    bool
	nacked   bool
	requeued bool
}

func (f *fakeAck) Ack(uint64, bool) error { f.acked = true; return nil }
func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked = true
	f.requeued = requeue
	return nil
}
func (f *fakeAck) Reject(_ uint64, requeue bool) error {
	f.nacked = true
	f.requeued = requeue
	return nil
}

type fakeDLQ struct {
	routingKey string
	errorType  string
}

func (f *fakeDLQ) PublishToDLQ(_ context.Context, routingKey string, _ []byte, errorType string, _ error) error {
	f.routingKey = routingKey
	f.errorType = errorType
	return nil
}

func newTestConsumer(h MessageHandler) (*Consumer, *fakeDLQ) {
	dlq := &fakeDLQ{}
	c := &Consumer{
		routingKey: "planning.schedule.requested",
		queue:      amqp091.Queue{Name: "planning.schedule.requested.q"},
		handler:    h,
		dlq:        dlq,
		logger:     zap.NewNop(),
	}
	return c, dlq
}

func TestConsumerProcess_AcksOnSuccess(t *testing.T) {
	var gotTrace bool
	c, _ := newTestConsumer(func(ctx context.Context, _ json.RawMessage) error {
		gotTrace = ctx != nil
		return nil
	})
	ack := &fakeAck{}

	c.process(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: []byte(`{}`)})

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
	assert.True(t, gotTrace)
}

func TestConsumerProcess_DecodeErrorGoesToDLQ(t *testing.T) {
	c, dlq := newTestConsumer(func(context.Context, json.RawMessage) error {
		var v map[string]any
		return json.Unmarshal([]byte("{bad"), &v)
	})
	ack := &fakeAck{}

	c.process(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: []byte("{bad")})

	assert.True(t, ack.acked)
	assert.Equal(t, "planning.schedule.requested", dlq.routingKey)
	assert.Equal(t, "json_decode_error", dlq.errorType)
}

func TestConsumerProcess_RetryableErrorRequeuesOnce(t *testing.T) {
	c, _ := newTestConsumer(func(context.Context, json.RawMessage) error {
		return context.DeadlineExceeded
	})

	first := &fakeAck{}
	c.process(context.Background(), amqp091.Delivery{Acknowledger: first})
	assert.True(t, first.nacked)
	assert.True(t, first.requeued)

	second := &fakeAck{}
	c.process(context.Background(), amqp091.Delivery{Acknowledger: second, Redelivered: true})
	assert.True(t, second.acked)
}

func TestConsumerProcess_PanicIsRecovered(t *testing.T) {
	c, _ := newTestConsumer(func(context.Context, json.RawMessage) error {
		panic(errors.New("kaboom"))
	})
	ack := &fakeAck{}

	assert.NotPanics(t, func() {
		c.process(context.Background(), amqp091.Delivery{Acknowledger: ack})
	})
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeued)
}
