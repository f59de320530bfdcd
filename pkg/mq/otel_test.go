package mq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestHeaderCarrier(t *testing.T) {
	h := HeaderCarrier(amqp.Table{"x-count": 3})
	h.Set("traceparent", "00-abc-def-01")

	assert.Equal(t, "00-abc-def-01", h.Get("traceparent"))
	assert.Equal(t, "", h.Get("x-count"))
	assert.ElementsMatch(t, []string{"x-count", "traceparent"}, h.Keys())
}

func TestPublishConsumePropagatesTrace(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	msg := amqp.Publishing{MessageId: "m-1"}
	pubCtx, pubSpan := StartPublishSpan(context.Background(), "medicare.events", "dose.logged", &msg)
	EndSpan(pubSpan, nil)

	assert.NotEmpty(t, msg.Headers["traceparent"])

	consumeCtx, consumeSpan := StartConsumeSpan(context.Background(), "dose.logged", amqp.Delivery{Headers: msg.Headers, MessageId: "m-1"})
	defer EndSpan(consumeSpan, nil)

	assert.Equal(t,
		trace.SpanContextFromContext(pubCtx).TraceID(),
		trace.SpanContextFromContext(consumeCtx).TraceID(),
	)
}
