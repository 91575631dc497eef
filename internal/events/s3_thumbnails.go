package events

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const s3ThumbnailPrefix = "thumbnails/"

// S3Config configures S3ThumbnailStorage. Endpoint targets S3-compatible
// services such as MinIO; PublicURL is the base URL objects are served from.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PublicURL string
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ThumbnailStorage uploads thumbnails to a bucket and returns their public URL.
type S3ThumbnailStorage struct {
	client    objectPutter
	bucket    string
	publicURL string
}

// loadDefaultAWSConfig is a seam for tests.
var loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

// NewS3ThumbnailStorage builds an S3 client from the configuration.
func NewS3ThumbnailStorage(ctx context.Context, configuration S3Config) (*S3ThumbnailStorage, error) {
	if strings.TrimSpace(configuration.Bucket) == "" {
		return nil, fmt.Errorf("events.thumbnails.s3: empty bucket")
	}
	options := []func(*awsconfig.LoadOptions) error{}
	if configuration.Region != "" {
		options = append(options, awsconfig.WithRegion(configuration.Region))
	}
	if configuration.AccessKey != "" {
		options = append(options, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(configuration.AccessKey, configuration.SecretKey, "")))
	}
	awsConfig, err := loadDefaultAWSConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("events.thumbnails.s3.config: %w", err)
	}
	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if configuration.Endpoint != "" {
			o.BaseEndpoint = aws.String(configuration.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3ThumbnailStorage(client, configuration), nil
}

func newS3ThumbnailStorage(client objectPutter, configuration S3Config) *S3ThumbnailStorage {
	publicURL := strings.TrimRight(configuration.PublicURL, "/")
	if publicURL == "" {
		switch {
		case configuration.Endpoint != "":
			publicURL = strings.TrimRight(configuration.Endpoint, "/") + "/" + configuration.Bucket
		default:
			publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", configuration.Bucket, configuration.Region)
		}
	}
	return &S3ThumbnailStorage{client: client, bucket: configuration.Bucket, publicURL: publicURL}
}

// Save uploads body under thumbnails/<random>.<ext> and returns the object's public URL.
func (storage *S3ThumbnailStorage) Save(ctx context.Context, originalName string, body io.Reader) (string, error) {
	key := s3ThumbnailPrefix + randomThumbnailName(originalName)
	seekable, ok := body.(io.ReadSeeker)
	if !ok {
		payload, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("events.thumbnails.s3.read: %w", err)
		}
		seekable = bytes.NewReader(payload)
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(storage.bucket),
		Key:    aws.String(key),
		Body:   seekable,
	}
	if contentType := mime.TypeByExtension(filepath.Ext(key)); contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := storage.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("events.thumbnails.s3.put: %w", err)
	}
	return storage.publicURL + "/" + key, nil
}
