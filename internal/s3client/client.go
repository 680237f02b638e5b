// Package s3client uploads exported drawings to S3-compatible object storage.
// Production points it at any S3 endpoint; tests use gofakes3.
package s3client

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
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// DrawingPrefix is the key prefix every uploaded drawing lives under.
const DrawingPrefix = "drawings/"

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("s3client: object not found")

// Client wraps an S3 client with bucket and URL configuration.
type Client struct {
	s3Client   *s3.Client
	bucketName string
	publicURL  string
	publicRead bool
}

// Config holds the configuration for creating an S3 client.
type Config struct {
	// Endpoint is the S3 endpoint URL. Empty uses AWS S3.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	// PublicURL is the base URL objects are served from.
	PublicURL string
	// PublicRead uploads objects with a public-read ACL.
	PublicRead bool
	// UsePathStyle enables path-style addressing (gofakes3, MinIO).
	UsePathStyle bool
}

// Drawing is an uploaded drawing.
type Drawing struct {
	Key  string
	URL  string
	Size int64
}

// New creates a new S3 client with the given configuration.
func New(ctx context.Context, cfg Config) (*Client, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	sdkConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	c := NewFromS3Client(s3Client, cfg.BucketName, cfg.PublicURL)
	c.publicRead = cfg.PublicRead
	return c, nil
}

// NewFromS3Client creates a Client from an existing S3 client.
func NewFromS3Client(s3Client *s3.Client, bucketName, publicURL string) *Client {
	return &Client{
		s3Client:   s3Client,
		bucketName: bucketName,
		publicURL:  strings.TrimSuffix(publicURL, "/"),
	}
}

// DrawingKey returns a fresh object key for a drawing of noteID:
// drawings/<noteID>/<uuid>.png.
func DrawingKey(noteID string) string {
	return path.Join(DrawingPrefix+noteID, uuid.NewString()+".png")
}

// UploadDrawing stores a PNG export of a note's drawing under a new key.
func (c *Client) UploadDrawing(ctx context.Context, noteID string, png []byte) (Drawing, error) {
	if noteID == "" || strings.Contains(noteID, "/") {
		return Drawing{}, fmt.Errorf("s3client: invalid note id %q", noteID)
	}
	key := DrawingKey(noteID)
	if err := c.PutObject(ctx, key, png, "image/png"); err != nil {
		return Drawing{}, err
	}
	return Drawing{Key: key, URL: c.PublicURL(key), Size: int64(len(png))}, nil
}

// ListDrawings returns every drawing uploaded for noteID.
func (c *Client) ListDrawings(ctx context.Context, noteID string) ([]Drawing, error) {
	prefix := DrawingPrefix + noteID + "/"
	paginator := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucketName),
		Prefix: aws.String(prefix),
	})

	var out []Drawing
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3client: failed to list %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			out = append(out, Drawing{Key: key, URL: c.PublicURL(key), Size: aws.ToInt64(obj.Size)})
		}
	}
	return out, nil
}

// DeleteDrawings removes every drawing uploaded for noteID and returns how
// many were removed.
func (c *Client) DeleteDrawings(ctx context.Context, noteID string) (int, error) {
	drawings, err := c.ListDrawings(ctx, noteID)
	if err != nil {
		return 0, err
	}
	for i, d := range drawings {
		if err := c.DeleteObject(ctx, d.Key); err != nil {
			return i, err
		}
	}
	return len(drawings), nil
}

// PutObject stores content under key.
func (c *Client) PutObject(ctx context.Context, key string, content []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	}
	if c.publicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}
	if _, err := c.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3client: failed to put object %q: %w", key, err)
	}
	return nil
}

// GetObject retrieves the content stored under key.
// Returns ErrObjectNotFound if the key does not exist.
func (c *Client) GetObject(ctx context.Context, key string) ([]byte, error) {
	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &notFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("s3client: failed to get object %q: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("s3client: failed to read object body %q: %w", key, err)
	}
	return data, nil
}

// DeleteObject removes the object at key. Missing objects are not an error.
func (c *Client) DeleteObject(ctx context.Context, key string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3client: failed to delete object %q: %w", key, err)
	}
	return nil
}

// PublicURL returns the URL an object is served from.
func (c *Client) PublicURL(key string) string {
	return c.publicURL + "/" + strings.TrimPrefix(key, "/")
}

// BucketName returns the configured bucket name.
func (c *Client) BucketName() string {
	return c.bucketName
}
