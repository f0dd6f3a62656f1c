package storage

import (
	// Стандартные библиотеки
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	// Сторонние библиотеки
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API - подмножество клиента S3, которое использует хранилище.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Options - параметры подключения к бакету.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string // MinIO и другие S3-совместимые сервисы
	AccessKey string
	SecretKey string
	Prefix    string
}

// S3Store хранит файлы в бакете под ключами <prefix>/<area>/<key>.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Store создает клиента AWS SDK и хранилище поверх него.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию AWS: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreWithClient(client, opts.Bucket, opts.Prefix), nil
}

// NewS3StoreWithClient оборачивает готового клиента (используется в тестах).
func NewS3StoreWithClient(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) objectKey(area Area, key string) (string, error) {
	if err := validateArea(area); err != nil {
		return "", err
	}
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return path.Join(s.prefix, string(area), key), nil
}

func (s *S3Store) Put(ctx context.Context, area Area, key string, r io.Reader) (int64, error) {
	objKey, err := s.objectKey(area, key)
	if err != nil {
		return 0, err
	}

	// Тело читаем целиком: размер загрузки ограничен, а SDK нужен перематываемый поток
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("не удалось прочитать содержимое для %s: %w", objKey, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ContentTypeFor(key)),
	})
	if err != nil {
		return 0, fmt.Errorf("не удалось загрузить %s в S3: %w", objKey, err)
	}
	return int64(len(data)), nil
}

func (s *S3Store) Open(ctx context.Context, area Area, key string) (*Blob, error) {
	objKey, err := s.objectKey(area, key)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%s: %w", objKey, ErrNotExist)
		}
		return nil, fmt.Errorf("не удалось получить %s из S3: %w", objKey, err)
	}

	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return &Blob{ReadCloser: out.Body, Size: size}, nil
}

func (s *S3Store) Remove(ctx context.Context, area Area, key string) error {
	objKey, err := s.objectKey(area, key)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("не удалось удалить %s из S3: %w", objKey, err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
