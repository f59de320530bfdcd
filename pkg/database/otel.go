package database

import (
	"errors"
	"regexp"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	spanKey  = "otel:span"
	startKey = "otel:start_time"
)

var sensitiveSQL = regexp.MustCompile(`(?i)(password_hash|password|token|secret)\s*=\s*'[^']*'`)

// PluginConfig 插件配置
type PluginConfig struct {
	ServiceName  string
	MaxSQLLength int
}

// OTELPlugin 为每次 gorm 操作创建 span 并记录耗时
type OTELPlugin struct {
	tracer   trace.Tracer
	queries  metric.Int64Counter
	duration metric.Float64Histogram
	config   PluginConfig
}

func NewOTELPlugin(cfg PluginConfig) (*OTELPlugin, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "medicare"
	}
	if cfg.MaxSQLLength <= 0 {
		cfg.MaxSQLLength = 500
	}

	meter := otel.Meter(cfg.ServiceName + ".gorm")
	queries, err := meter.Int64Counter("db.queries.total",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("db.query.duration",
		metric.WithDescription("Database query duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5),
	)
	if err != nil {
		return nil, err
	}

	return &OTELPlugin{
		tracer:   otel.Tracer(cfg.ServiceName + ".gorm"),
		queries:  queries,
		duration: duration,
		config:   cfg,
	}, nil
}

func (p *OTELPlugin) Name() string {
	return "medicare:otel"
}

// Initialize 实现 gorm.Plugin
func (p *OTELPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Query().Before("gorm:query").Register("otel:before_query", p.before("db.select")),
		cb.Query().After("gorm:query").Register("otel:after_query", p.after("db.select")),
		cb.Create().Before("gorm:create").Register("otel:before_create", p.before("db.insert")),
		cb.Create().After("gorm:create").Register("otel:after_create", p.after("db.insert")),
		cb.Update().Before("gorm:update").Register("otel:before_update", p.before("db.update")),
		cb.Update().After("gorm:update").Register("otel:after_update", p.after("db.update")),
		cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("db.delete")),
		cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after("db.delete")),
		cb.Row().Before("gorm:row").Register("otel:before_row", p.before("db.row")),
		cb.Row().After("gorm:row").Register("otel:after_row", p.after("db.row")),
		cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("db.raw")),
		cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after("db.raw")),
	)
}

func (p *OTELPlugin) before(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx, span := p.tracer.Start(db.Statement.Context, operation,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(semconv.DBSystemPostgreSQL),
		)
		db.Statement.Context = ctx
		db.InstanceSet(spanKey, span)
		db.InstanceSet(startKey, time.Now())
	}
}

func (p *OTELPlugin) after(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(spanKey)
		if !ok {
			return
		}
		span, ok := v.(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		table := db.Statement.Table
		span.SetAttributes(
			attribute.String("db.sql.table", table),
			semconv.DBStatement(p.statement(db)),
			attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
		)

		status := "success"
		switch {
		case db.Error == nil:
			span.SetStatus(codes.Ok, "")
		case errors.Is(db.Error, gorm.ErrRecordNotFound):
			status = "not_found"
			span.SetStatus(codes.Ok, "record not found")
		default:
			status = "error"
			span.RecordError(db.Error)
			span.SetStatus(codes.Error, db.Error.Error())
		}

		attrs := metric.WithAttributes(
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", table),
			attribute.String("db.status", status),
		)
		p.queries.Add(db.Statement.Context, 1, attrs)
		if start, ok := db.InstanceGet(startKey); ok {
			if t, ok := start.(time.Time); ok {
				p.duration.Record(db.Statement.Context, time.Since(t).Seconds(), attrs)
			}
		}
	}
}

// statement 截断并脱敏 SQL，参数值不会出现在 span 中
func (p *OTELPlugin) statement(db *gorm.DB) string {
	sql := db.Statement.SQL.String()
	if len(sql) > p.config.MaxSQLLength {
		sql = sql[:p.config.MaxSQLLength] + "..."
	}
	return sensitiveSQL.ReplaceAllString(sql, "$1='***'")
}
