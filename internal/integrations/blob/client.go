// Package blob stores uploaded attachments in S3.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the minimal S3 interface required by Client.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Client puts and deletes objects in a single bucket.
type Client struct {
	api     s3API
	bucket  string
	baseURL string
}

// New creates a Client for bucket. Object URLs are built from baseURL when
// given (e.g. a CDN origin), otherwise from the bucket's virtual-hosted
// endpoint in region.
func New(api s3API, bucket, region, baseURL string) (*Client, error) {
	if api == nil {
		return nil, errors.New("blob: api must not be nil")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("blob: bucket must not be empty")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		if region == "" {
			region = "us-east-1"
		}
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return &Client{api: api, bucket: bucket, baseURL: baseURL}, nil
}

// Put uploads data under name and returns its URL.
func (c *Client) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("blob: Put: name is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(name),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("blob: Put %q: %w", name, err)
	}
	return c.baseURL + "/" + url.PathEscape(name), nil
}

// Delete removes name. S3 treats deleting a missing key as success.
func (c *Client) Delete(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("blob: Delete: name is required")
	}
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("blob: Delete %q: %w", name, err)
	}
	return nil
}
