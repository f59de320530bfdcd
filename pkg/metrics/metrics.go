package metrics

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics 业务指标集合
type OTelMetrics struct {
	DoseLogsCreated     metric.Int64Counter
	DoseLogFailures     metric.Int64Counter
	ProofUploadBytes    metric.Int64Histogram
	ProofUploadDuration metric.Float64Histogram
	SignedURLsIssued    metric.Int64Counter
	MissedDoseAlerts    metric.Int64Counter
	MessagesConsumed    metric.Int64Counter
}

var (
	metrics *OTelMetrics
	meter   = otel.Meter("medicare")
)

// InitMetrics 在 otel provider 设置后调用
func InitMetrics() error {
	m := &OTelMetrics{}
	var err, e error

	m.DoseLogsCreated, e = meter.Int64Counter(
		"dose_logs_created_total",
		metric.WithDescription("Total number of dose logs created"),
		metric.WithUnit("{log}"),
	)
	err = errors.Join(err, e)

	m.DoseLogFailures, e = meter.Int64Counter(
		"dose_log_failures_total",
		metric.WithDescription("Dose log creation failures by error code"),
		metric.WithUnit("{error}"),
	)
	err = errors.Join(err, e)

	m.ProofUploadBytes, e = meter.Int64Histogram(
		"proof_upload_bytes",
		metric.WithDescription("Size of uploaded proof photos"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(64<<10, 256<<10, 1<<20, 2<<20, 5<<20, 10<<20),
	)
	err = errors.Join(err, e)

	m.ProofUploadDuration, e = meter.Float64Histogram(
		"proof_upload_duration_seconds",
		metric.WithDescription("Time spent storing proof photos"),
		metric.WithUnit("s"),
	)
	err = errors.Join(err, e)

	m.SignedURLsIssued, e = meter.Int64Counter(
		"proof_signed_urls_total",
		metric.WithDescription("Signed proof URLs issued"),
		metric.WithUnit("{url}"),
	)
	err = errors.Join(err, e)

	m.MissedDoseAlerts, e = meter.Int64Counter(
		"missed_dose_alerts_total",
		metric.WithDescription("Missed dose alerts published for caretakers"),
		metric.WithUnit("{alert}"),
	)
	err = errors.Join(err, e)

	m.MessagesConsumed, e = meter.Int64Counter(
		"mq_messages_consumed_total",
		metric.WithDescription("Messages consumed by the worker"),
		metric.WithUnit("{message}"),
	)
	err = errors.Join(err, e)

	if err != nil {
		return err
	}
	metrics = m
	return nil
}

// GetMetrics 未初始化时返回 nil
func GetMetrics() *OTelMetrics {
	return metrics
}

// RecordDoseLogged 记录一条服药记录创建
func RecordDoseLogged(ctx context.Context, hasProof bool) {
	if metrics == nil {
		return
	}
	metrics.DoseLogsCreated.Add(ctx, 1, metric.WithAttributes(attribute.Bool("has_proof", hasProof)))
}

// RecordDoseLogFailure 按错误码记录创建失败
func RecordDoseLogFailure(ctx context.Context, code string) {
	if metrics == nil {
		return
	}
	metrics.DoseLogFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

// RecordProofUpload 记录照片上传
func RecordProofUpload(ctx context.Context, size int64, elapsed time.Duration, ok bool) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", ok))
	metrics.ProofUploadBytes.Record(ctx, size, attrs)
	metrics.ProofUploadDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordSignedURL 记录签名地址签发，thumbnail 区分缩略图与原图
func RecordSignedURL(ctx context.Context, thumbnail bool) {
	if metrics == nil {
		return
	}
	metrics.SignedURLsIssued.Add(ctx, 1, metric.WithAttributes(attribute.Bool("thumbnail", thumbnail)))
}

// RecordMissedDoseAlert 记录漏服提醒
func RecordMissedDoseAlert(ctx context.Context, caretakers int) {
	if metrics == nil {
		return
	}
	metrics.MissedDoseAlerts.Add(ctx, 1, metric.WithAttributes(attribute.Int("caretakers", caretakers)))
}

// RecordMessageConsumed 记录消息消费结果，result 取 ack / skip / requeue / drop
func RecordMessageConsumed(ctx context.Context, queue, result string) {
	if metrics == nil {
		return
	}
	metrics.MessagesConsumed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", queue),
		attribute.String("result", result),
	))
}
