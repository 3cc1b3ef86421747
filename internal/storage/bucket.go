// Package storage publishes dataset images to the S3 bucket the HIT
// templates point at.
package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/psantana5/hitctl/pkg/logging"
)

type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Bucket is one S3 bucket
type Bucket struct {
	client s3API
	name   string
	logger *logging.Logger
}

// NewBucket wraps an S3 client for bucket name
func NewBucket(cfg aws.Config, name string, logger *logging.Logger) *Bucket {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Bucket{client: s3.NewFromConfig(cfg), name: name, logger: logger.WithField("bucket", name)}
}

// List returns every key under prefix
func (b *Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(b.name)}
	if prefix != "" {
		in.Prefix = aws.String(prefix)
	}

	var keys []string
	p := s3.NewListObjectsV2Paginator(b.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return keys, fmt.Errorf("list bucket %s: %w", b.name, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// Upload puts the file at path under key
func (b *Bucket) Upload(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	in := &s3.PutObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		in.ContentType = aws.String(ct)
	}
	if _, err := b.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// SyncResult lists what Sync did
type SyncResult struct {
	Uploaded []string `json:"uploaded"`
	Skipped  int      `json:"skipped"`
}

// Sync uploads the files of folder matching pattern whose base name is not yet
// a key of the bucket. Keys are the base names, matching the URLs generators emit.
func (b *Bucket) Sync(ctx context.Context, folder, pattern string) (SyncResult, error) {
	var result SyncResult

	matches, err := filepath.Glob(filepath.Join(folder, pattern))
	if err != nil {
		return result, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	sort.Strings(matches)

	existing, err := b.List(ctx, "")
	if err != nil {
		return result, err
	}
	present := make(map[string]bool, len(existing))
	for _, k := range existing {
		present[k] = true
	}

	for _, path := range matches {
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		key := filepath.Base(path)
		if present[key] {
			result.Skipped++
			continue
		}
		if err := b.Upload(ctx, key, path); err != nil {
			return result, err
		}
		result.Uploaded = append(result.Uploaded, key)
		b.logger.Debug("Uploaded object", logging.Fields{"key": key})
	}

	b.logger.Info("Bucket synced", logging.Fields{"uploaded": len(result.Uploaded), "skipped": result.Skipped})
	return result, nil
}
