package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxAudioSize bounds an uploaded audio resume.
const MaxAudioSize = 5 << 20

const audioPrefix = "audio-resumes"

var (
	// ErrNotConfigured is returned by a nil Uploader.
	ErrNotConfigured = errors.New("media storage is not configured")
	ErrTooLarge      = fmt.Errorf("file exceeds %d bytes", MaxAudioSize)
	ErrEmpty         = errors.New("file is empty")
)

var audioExtensions = map[string]string{
	"audio/webm":  "webm",
	"audio/ogg":   "ogg",
	"audio/mpeg":  "mp3",
	"audio/mp4":   "m4a",
	"audio/wav":   "wav",
	"audio/x-wav": "wav",
}

type Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access-key"`
	SecretKey string `mapstructure:"secret-key"`
	// PublicURL is prepended to object keys in returned links.
	PublicURL string `mapstructure:"public-url"`
	PathStyle bool   `mapstructure:"path-style"`
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Bucket) != ""
}

type putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader stores files on an S3 compatible bucket.
type Uploader struct {
	client    putter
	bucket    string
	publicURL string
	logger    *zap.Logger
}

func NewUploader(ctx context.Context, cfg Config, logger *zap.Logger) (*Uploader, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return &Uploader{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: publicBase(cfg),
		logger:    logger,
	}, nil
}

// Upload writes body under key and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, key, contentType string, body []byte) (string, error) {
	if u == nil {
		return "", ErrNotConfigured
	}
	if len(body) == 0 {
		return "", ErrEmpty
	}

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	u.logger.Info("media uploaded", zap.String("key", key), zap.Int("bytes", len(body)))
	return u.publicURL + "/" + key, nil
}

// UploadAudio stores an audio resume for userID, reading at most MaxAudioSize bytes.
func (u *Uploader) UploadAudio(ctx context.Context, userID, contentType string, r io.Reader) (string, error) {
	if u == nil {
		return "", ErrNotConfigured
	}

	body, err := io.ReadAll(io.LimitReader(r, MaxAudioSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(body) > MaxAudioSize {
		return "", ErrTooLarge
	}
	if contentType == "" {
		contentType = "audio/webm"
	}
	return u.Upload(ctx, AudioKey(userID, contentType), contentType, body)
}

// AudioKey is audio-resumes/<userID>/<uuid>.<ext>.
func AudioKey(userID, contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	ext, ok := audioExtensions[strings.TrimSpace(strings.ToLower(mediaType))]
	if !ok {
		ext = "bin"
	}
	return path.Join(audioPrefix, userID, uuid.NewString()+"."+ext)
}

func publicBase(cfg Config) string {
	if cfg.PublicURL != "" {
		return strings.TrimRight(cfg.PublicURL, "/")
	}
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com", cfg.Bucket)
}
