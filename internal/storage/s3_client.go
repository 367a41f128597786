package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"chat-sync/internal/domain/message"
	chat_errors "chat-sync/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// DefaultMaxUploadSize caps a single attachment.
const DefaultMaxUploadSize = 25 << 20

type S3Config struct {
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	PublicBase string
	PresignTTL time.Duration
	MaxSize    int64
}

// objectAPI is the slice of the S3 client the uploader needs.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type getPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Client uploads message attachments to S3.
type Client struct {
	cfg     S3Config
	s3      objectAPI
	presign getPresigner
	userID  string
}

func NewClient(ctx context.Context, cfg S3Config, userID string) (*Client, error) {
	if cfg.Region == "" || cfg.Bucket == "" {
		return nil, errors.New("s3 region and bucket are required")
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			if parsed, err := url.Parse(endpoint); err == nil {
				endpoint = parsed.String()
			}
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return newClient(cfg, s3Client, s3.NewPresignClient(s3Client), userID), nil
}

func newClient(cfg S3Config, api objectAPI, presign getPresigner, userID string) *Client {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxUploadSize
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 24 * time.Hour
	}
	return &Client{cfg: cfg, s3: api, presign: presign, userID: userID}
}

// Upload stores file and describes the resulting object.
func (c *Client) Upload(ctx context.Context, file message.File) (message.Media, error) {
	if err := c.validate(file); err != nil {
		return message.Media{}, err
	}

	key := c.objectKey(file.Name)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.cfg.Bucket),
		Key:         aws.String(key),
		Body:        file.Body,
		ContentType: aws.String(file.ContentType),
	}
	if file.Size > 0 {
		input.ContentLength = aws.Int64(file.Size)
	}
	if _, err := c.s3.PutObject(ctx, input); err != nil {
		return message.Media{}, fmt.Errorf("upload %s: %w", file.Name, err)
	}

	link, err := c.fileURL(ctx, key)
	if err != nil {
		return message.Media{}, fmt.Errorf("link %s: %w", file.Name, err)
	}
	return message.Media{
		URL:       link,
		FileName:  file.Name,
		MediaType: file.ContentType,
		Size:      file.Size,
	}, nil
}

func (c *Client) validate(file message.File) error {
	if file.Body == nil {
		return fmt.Errorf("file body is required: %w", chat_errors.ErrInvalidInput)
	}
	if strings.TrimSpace(file.Name) == "" {
		return fmt.Errorf("file name is required: %w", chat_errors.ErrInvalidInput)
	}
	if file.ContentType == "" {
		return fmt.Errorf("content type is required: %w", chat_errors.ErrInvalidInput)
	}
	if file.Size > c.cfg.MaxSize {
		return fmt.Errorf("%s exceeds %d bytes: %w", file.Name, c.cfg.MaxSize, chat_errors.ErrInvalidInput)
	}
	return nil
}

// objectKey namespaces uploads per user and per upload.
func (c *Client) objectKey(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		base = "file"
	}
	return path.Join("uploads", c.userID, uuid.NewString(), base)
}

func (c *Client) fileURL(ctx context.Context, key string) (string, error) {
	if c.cfg.PublicBase != "" {
		return strings.TrimRight(c.cfg.PublicBase, "/") + "/" + key, nil
	}
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) {
		po.Expires = c.cfg.PresignTTL
	})
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
