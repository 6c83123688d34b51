package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSProvider stores files in an Aliyun OSS bucket.
type OSSProvider struct {
	bucket *oss.Bucket
	domain string // Custom domain or CDN domain
}

// NewOSSProvider creates a new OSS storage provider
// Endpoint: oss-cn-hangzhou.aliyuncs.com
func NewOSSProvider(endpoint, accessKeyID, accessKeySecret, bucketName, domain string) (*OSSProvider, error) {
	client, err := oss.New(endpoint, accessKeyID, accessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", bucketName, err)
	}

	// Use bucket domain if custom domain is not provided
	if domain == "" {
		host := strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
		domain = fmt.Sprintf("https://%s.%s", bucketName, host)
	} else if !strings.HasPrefix(domain, "http") {
		domain = "https://" + domain
	}

	return &OSSProvider{
		bucket: bucket,
		domain: strings.TrimRight(domain, "/"),
	}, nil
}

func objectKey(folder, filename string) string {
	// Remove leading slash if present to avoid empty folder
	return strings.TrimPrefix(objectPath(strings.Trim(folder, "/"), filename), "/")
}

// Upload saves a file to OSS
func (p *OSSProvider) Upload(ctx context.Context, input UploadInput) (UploadOutput, error) {
	key := objectKey(input.Folder, input.Filename)

	counter := &countingReader{r: input.File}
	opts := []oss.Option{oss.WithContext(ctx)}
	if input.ContentType != "" {
		opts = append(opts, oss.ContentType(input.ContentType))
	}
	for k, v := range input.Metadata {
		opts = append(opts, oss.Meta(k, v))
	}

	if err := p.bucket.PutObject(key, counter, opts...); err != nil {
		return UploadOutput{}, fmt.Errorf("failed to upload to OSS: %w", err)
	}

	return UploadOutput{
		URL:      p.domain + "/" + key,
		Filename: input.Filename,
		Size:     counter.n,
		Metadata: input.Metadata,
	}, nil
}

// Delete removes a file from OSS
func (p *OSSProvider) Delete(ctx context.Context, input DeleteInput) error {
	if err := p.bucket.DeleteObject(objectKey(input.Folder, input.Filename), oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete from OSS: %w", err)
	}
	return nil
}

// GetURL returns the public URL of an object.
func (p *OSSProvider) GetURL(ctx context.Context, input GetURLInput) (string, error) {
	return p.domain + "/" + objectKey(input.Folder, input.Filename), nil
}

// GetSignedURL generates a signed URL for private object access
func (p *OSSProvider) GetSignedURL(ctx context.Context, input GetSignedURLInput) (string, error) {
	expirySec := int64(input.Expires / time.Second)
	if expirySec <= 0 {
		expirySec = 3600 // Default 1 hour
	}

	url, err := p.bucket.SignURL(objectKey(input.Folder, input.Filename), oss.HTTPGet, expirySec)
	if err != nil {
		return "", fmt.Errorf("failed to sign URL: %w", err)
	}
	return url, nil
}

// List returns up to Limit objects under Folder whose names start with Prefix.
func (p *OSSProvider) List(ctx context.Context, input ListInput) ([]FileInfo, error) {
	prefix := objectKey(input.Folder, input.Prefix)
	opts := []oss.Option{oss.Prefix(prefix), oss.WithContext(ctx)}
	if input.Limit > 0 {
		opts = append(opts, oss.MaxKeys(input.Limit))
	}

	res, err := p.bucket.ListObjects(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to list OSS objects: %w", err)
	}

	files := make([]FileInfo, 0, len(res.Objects))
	for _, obj := range res.Objects {
		files = append(files, FileInfo{
			Name:      strings.TrimPrefix(obj.Key, objectKey(input.Folder, "")),
			Size:      obj.Size,
			UpdatedAt: obj.LastModified.Unix(),
		})
	}
	return files, nil
}

func (p *OSSProvider) Name() string {
	return TypeOSS
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n += int64(n)
	return n, err
}
