package s3client

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

// NewInProcess starts an in-memory gofakes3 server with bucketName already
// created and returns a Client for it. Call stop to shut the server down.
// Objects are lost when the server stops.
func NewInProcess(ctx context.Context, bucketName string) (c *Client, stop func(), err error) {
	faker := gofakes3.New(s3mem.New())
	ts := httptest.NewServer(faker.Server())

	c, err = New(ctx, Config{
		Endpoint:        ts.URL,
		Region:          "us-east-1",
		AccessKeyID:     "local-key",
		SecretAccessKey: "local-secret",
		BucketName:      bucketName,
		PublicURL:       ts.URL + "/" + bucketName,
		UsePathStyle:    true,
	})
	if err != nil {
		ts.Close()
		return nil, nil, err
	}

	if _, err := c.s3Client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	}); err != nil {
		ts.Close()
		return nil, nil, fmt.Errorf("s3client: failed to create bucket %q: %w", bucketName, err)
	}
	return c, ts.Close, nil
}

// NewFake is NewInProcess for tests. The server stops when the test ends.
func NewFake(t testing.TB, bucketName string) *Client {
	t.Helper()
	c, stop, err := NewInProcess(context.Background(), bucketName)
	if err != nil {
		t.Fatalf("failed to create fake S3 client: %v", err)
	}
	t.Cleanup(stop)
	return c
}
