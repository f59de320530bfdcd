package config

import (
	"errors"
	"log"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	// 服务配置
	ServerPort  string `env:"SERVER_PORT" envDefault:"8888"`
	ServerHost  string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName string `env:"SERVICE_NAME" envDefault:"medicare"`

	// PostgreSQL 配置
	PostgreSQLHost     string   `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort     string   `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string   `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword string   `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase string   `env:"POSTGRESQL_DATABASE" envDefault:"medicare"`
	PostgreSQLSchema   string   `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode  string   `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle  int      `env:"POSTGRESQL_MAX_IDLE" envDefault:"30"`
	PostgreSQLMaxOpen  int      `env:"POSTGRESQL_MAX_OPEN" envDefault:"200"`
	PostgreSQLReplicas []string `env:"POSTGRESQL_REPLICAS" envSeparator:","` // 只读副本 host:port 列表，可为空

	// Redis 配置
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"medi"`

	// RabbitMQ 配置
	RabbitMQAddr     string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost    string `env:"RABBITMQ_VHOST" envDefault:"/"`

	// JWT 配置
	JWTSecret        string `env:"JWT_SECRET"` // 必填，用于签名 JWT
	JWTExpireMinutes int    `env:"JWT_EXPIRE_MINUTES" envDefault:"30"`
	JWTRefreshDays   int    `env:"JWT_REFRESH_DAYS" envDefault:"7"`

	// 服药凭证（照片）存储，兼容 S3 协议
	ProofBucket              string `env:"PROOF_BUCKET" envDefault:"proof-photos"`
	S3Region                 string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint               string `env:"S3_ENDPOINT"` // MinIO 等自建存储时填写
	S3UsePathStyle           bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`
	S3AccessKeyID            string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey        string `env:"S3_SECRET_ACCESS_KEY"`
	ProofMaxBytes            int64  `env:"PROOF_MAX_BYTES" envDefault:"10485760"`
	ProofSignedURLSeconds    int    `env:"PROOF_SIGNED_URL_SECONDS" envDefault:"60"`
	ProofThumbnailURLSeconds int    `env:"PROOF_THUMBNAIL_URL_SECONDS" envDefault:"300"`

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 链路追踪配置
	OTelEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint    string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4317"`
	OTelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"0.1"`
	ServiceVersion  string  `env:"SERVICE_VERSION" envDefault:"dev"`

	// 速率限制配置, 配置在中间件内
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"100"` // 每秒请求数

	// 依从性计算
	StreakMaxDays   int    `env:"STREAK_MAX_DAYS" envDefault:"3650"`
	DefaultTimezone string `env:"DEFAULT_TIMEZONE" envDefault:"UTC"`

	// 漏服检查时间（用户本地时间 HH:MM:SS）
	MissedDoseCheckAt string `env:"MISSED_DOSE_CHECK_AT" envDefault:"21:00:00"`
}

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	Cfg = Config{}
	if err := env.Parse(&Cfg); err != nil {
		log.Fatalf("Failed to parse environment variables: %v", err)
	}
}

// Validate 检查服务端必填配置，由各个入口在启动时调用
func Validate() error {
	if Cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	if len(Cfg.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 bytes")
	}

	if Cfg.ProofBucket == "" {
		return errors.New("PROOF_BUCKET is required")
	}

	if Cfg.S3AccessKeyID == "" {
		log.Printf("WARN: S3_ACCESS_KEY_ID is not set, falling back to the default AWS credential chain")
	}

	if Cfg.StreakMaxDays <= 0 {
		log.Printf("WARN: STREAK_MAX_DAYS must be positive, using 3650")
		Cfg.StreakMaxDays = 3650
	}

	return nil
}

func (c *Config) GetDSN() string {
	return c.dsnFor(c.PostgreSQLHost, c.PostgreSQLPort)
}

// GetReplicaDSNs 返回只读副本 DSN，POSTGRESQL_REPLICAS 形如 "db-r1:5432,db-r2:5432"
func (c *Config) GetReplicaDSNs() []string {
	dsns := make([]string, 0, len(c.PostgreSQLReplicas))
	for _, replica := range c.PostgreSQLReplicas {
		replica = strings.TrimSpace(replica)
		if replica == "" {
			continue
		}
		host, port := replica, c.PostgreSQLPort
		if idx := strings.LastIndex(replica, ":"); idx > 0 {
			host, port = replica[:idx], replica[idx+1:]
		}
		dsns = append(dsns, c.dsnFor(host, port))
	}
	return dsns
}

func (c *Config) dsnFor(host, port string) string {
	return "host=" + host +
		" port=" + port +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
