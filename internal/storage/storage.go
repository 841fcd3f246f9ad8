package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/pokerjest/animestream/internal/config"
	"github.com/pokerjest/animestream/internal/logger"
	"go.uber.org/zap"
)

var (
	ErrDisabled        = errors.New("storage is not configured")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// Kind decides which folder an upload lands in and which extensions it accepts.
type Kind string

const (
	KindPoster   Kind = "posters"
	KindBanner   Kind = "banners"
	KindSubtitle Kind = "subtitles"
)

var allowedExt = map[Kind][]string{
	KindPoster:   {".jpg", ".jpeg", ".png", ".webp"},
	KindBanner:   {".jpg", ".jpeg", ".png", ".webp"},
	KindSubtitle: {".vtt", ".srt"},
}

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".vtt":  "text/vtt",
	".srt":  "application/x-subrip",
}

// ParseKind maps a form value to a Kind.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	_, ok := allowedExt[k]
	return k, ok
}

// Allowed reports whether filename has an extension accepted for kind.
func Allowed(kind Kind, filename string) bool {
	ext := strings.ToLower(path.Ext(filename))
	for _, e := range allowedExt[kind] {
		if e == ext {
			return true
		}
	}
	return false
}

// ObjectKey builds <folder>/<yyyy>/<mm>/<uuid><ext>.
func ObjectKey(kind Kind, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%04d/%02d/%s%s", kind, now.Year(), int(now.Month()), uuid.NewString(), ext)
}

// ContentType guesses the stored content type from the extension.
func ContentType(filename string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// PutObjectAPI is the part of the S3 client uploads need.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Store struct {
	client    PutObjectAPI
	bucket    string
	publicURL string
	now       func() time.Time
}

// New returns nil when storage is not configured; a nil *Store answers every call with ErrDisabled.
func New(ctx context.Context, cfg config.StorageConfig) (*Store, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return NewWithClient(client, cfg.Bucket, publicURL), nil
}

func NewWithClient(client PutObjectAPI, bucket, publicURL string) *Store {
	return &Store{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

// Upload stores body under key and returns its public URL.
func (s *Store) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		logger.FromCtx(ctx).Error("upload failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	logger.FromCtx(ctx).Info("uploaded object", zap.String("key", key), zap.Int64("size", size))
	return s.publicURL + "/" + key, nil
}

// UploadFile validates filename against kind, derives the key and uploads.
func (s *Store) UploadFile(ctx context.Context, kind Kind, filename string, body io.Reader, size int64) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	if !Allowed(kind, filename) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, path.Ext(filename))
	}
	return s.Upload(ctx, ObjectKey(kind, filename, s.now()), body, size, ContentType(filename))
}
