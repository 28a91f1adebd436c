package configstore

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectGetter — часть S3 API, нужная S3Source.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source читает документы из S3-совместимого хранилища: bucket/prefix/name.
type S3Source struct {
	client ObjectGetter
	bucket string
	prefix string
}

// S3Config — параметры подключения к S3.
type S3Config struct {
	Bucket string
	Prefix string
	Region string
	// Endpoint — адрес S3-совместимого сервиса (MinIO и т.п.).
	// Пустой — AWS по умолчанию.
	Endpoint string
}

// NewS3Source создаёт S3Source поверх готового клиента.
func NewS3Source(client ObjectGetter, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

// OpenS3Source создаёт S3-клиент из стандартной цепочки AWS credentials.
func OpenS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3Source(client, cfg.Bucket, cfg.Prefix), nil
}

// Read загружает объект prefix/name.
func (s *S3Source) Read(ctx context.Context, name string) ([]byte, error) {
	key := path.Join(s.prefix, name)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}
