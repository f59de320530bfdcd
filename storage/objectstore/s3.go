// Package objectstore 服药照片存储，兼容 S3 协议（AWS S3 / MinIO）。
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"MediCare/config"
	"MediCare/pkg/breaker"
	"MediCare/pkg/logger"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("object not found")

// Store 对象存储
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	breaker *breaker.CircuitBreaker
}

var (
	store     *Store
	storeOnce sync.Once
	storeErr  error
)

// Init 根据全局配置创建默认 Store
func Init() error {
	storeOnce.Do(func() {
		store, storeErr = New(context.Background(), Options{
			Region:          config.Cfg.S3Region,
			Endpoint:        config.Cfg.S3Endpoint,
			UsePathStyle:    config.Cfg.S3UsePathStyle,
			AccessKeyID:     config.Cfg.S3AccessKeyID,
			SecretAccessKey: config.Cfg.S3SecretAccessKey,
		})
		if storeErr == nil {
			logger.Logger.Info("Object store initialized",
				zap.String("region", config.Cfg.S3Region),
				zap.String("endpoint", config.Cfg.S3Endpoint),
				zap.String("bucket", config.Cfg.ProofBucket),
			)
		}
	})
	return storeErr
}

// Default 返回 Init 创建的 Store
func Default() *Store {
	if store == nil {
		panic("object store not init")
	}
	return store
}

type Options struct {
	Region          string
	Endpoint        string // 为空时使用 AWS 默认地址
	UsePathStyle    bool
	AccessKeyID     string // 为空时走默认凭证链
	SecretAccessKey string
}

func New(ctx context.Context, opts Options) (*Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		breaker: breaker.New("object_store", 5, 30*time.Second),
	}, nil
}

// Upload 写入对象，同一路径已存在时覆盖
func (s *Store) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	return s.breaker.Call(ctx, func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentType:   aws.String(contentType),
			ContentLength: aws.Int64(int64(len(data))),
		})
		if err != nil {
			return fmt.Errorf("failed to put object %s: %w", key, err)
		}
		return nil
	})
}

// Exists 对象是否存在
func (s *Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	return breaker.Do(ctx, s.breaker, func(ctx context.Context) (bool, error) {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			return true, nil
		}
		var notFound *s3types.NotFound
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object %s: %w", key, err)
	})
}

// SignedURL 生成限时读取地址
func (s *Store) SignedURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign object %s: %w", key, err)
	}
	return req.URL, nil
}
