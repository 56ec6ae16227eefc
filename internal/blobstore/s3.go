package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	DefaultS3Endpoint = "https://storage.yandexcloud.net"
	DefaultS3Region   = "ru-central1"
)

// S3Config points at an S3-compatible bucket served as a static website.
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// WebsiteHost is the public host the bucket is served from.
	WebsiteHost string
	Timeout     time.Duration
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads to an S3-compatible object store.
type S3 struct {
	api    objectPutter
	bucket string
	host   string
}

func NewS3(cfg S3Config) *S3 {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultS3Endpoint
	}
	if cfg.Region == "" {
		cfg.Region = DefaultS3Region
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	awsCfg := aws.Config{
		Region:      cfg.Region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		HTTPClient:  &http.Client{Timeout: cfg.Timeout},
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})
	return &S3{api: client, bucket: cfg.Bucket, host: cfg.WebsiteHost}
}

func (s *S3) Put(ctx context.Context, obj Object) (string, error) {
	key, err := CleanKey(obj.Key)
	if err != nil {
		return "", err
	}
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(obj.Data),
		ContentType: aws.String(obj.ContentType),
	}
	if obj.CacheControl != "" {
		in.CacheControl = aws.String(obj.CacheControl)
	}
	if obj.Public {
		in.ACL = types.ObjectCannedACLPublicRead
	}
	if _, err := s.api.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return ObjectURL(s.host, key), nil
}

// Host is the website host objects are served from.
func (s *S3) Host() string { return s.host }
