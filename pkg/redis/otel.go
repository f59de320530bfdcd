package redis

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingHook 为每条 Redis 命令创建 span，redis.Nil 不视为错误
type TracingHook struct {
	tracer   trace.Tracer
	commands metric.Int64Counter
	duration metric.Float64Histogram
	attrs    []attribute.KeyValue
}

var _ redis.Hook = (*TracingHook)(nil)

func NewTracingHook(serviceName string, db int) *TracingHook {
	meter := otel.Meter(serviceName + ".redis")
	commands, _ := meter.Int64Counter("redis.commands.total",
		metric.WithDescription("Total number of Redis commands"),
		metric.WithUnit("{command}"),
	)
	duration, _ := meter.Float64Histogram("redis.command.duration",
		metric.WithDescription("Redis command duration"),
		metric.WithUnit("s"),
	)

	return &TracingHook{
		tracer:   otel.Tracer(serviceName + ".redis"),
		commands: commands,
		duration: duration,
		attrs: []attribute.KeyValue{
			semconv.DBSystemRedis,
			semconv.DBRedisDBIndex(db),
		},
	}
}

func (h *TracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *TracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		ctx, span := h.tracer.Start(ctx, "redis."+strings.ToLower(cmd.Name()),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(h.attrs...),
		)
		defer span.End()

		err := next(ctx, cmd)
		h.finish(ctx, span, cmd.Name(), start, err)
		return err
	}
}

func (h *TracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		ctx, span := h.tracer.Start(ctx, "redis.pipeline",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(h.attrs...),
			trace.WithAttributes(attribute.Int("db.redis.num_cmd", len(cmds))),
		)
		defer span.End()

		err := next(ctx, cmds)
		h.finish(ctx, span, "pipeline", start, err)
		return err
	}
}

func (h *TracingHook) finish(ctx context.Context, span trace.Span, name string, start time.Time, err error) {
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, redis.Nil):
		status = "miss"
	default:
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	attrs := metric.WithAttributes(
		attribute.String("db.operation", strings.ToLower(name)),
		attribute.String("status", status),
	)
	if h.commands != nil {
		h.commands.Add(ctx, 1, attrs)
	}
	if h.duration != nil {
		h.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}
