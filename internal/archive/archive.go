// Package archive uploads materialized report files to S3-compatible object
// storage under a date-scoped prefix, the archive task's write path.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store uploads report files to a named bucket.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewStore creates a Store. Credentials resolve through the default AWS
// credential chain.
func NewStore(ctx context.Context, region, profile, bucket, prefix string) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}
	return &Store{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

// UploadResult records the outcome of archiving one file.
type UploadResult struct {
	Name    string
	Key     string
	Success bool
	Error   string
}

// Key returns the date-scoped object key for name, the layout
// `{prefix}/{YYYY}/{MM}/{DD}/{name}`.
func (s *Store) Key(name string, at time.Time) string {
	return path.Join(s.prefix, at.Format("2006"), at.Format("01"), at.Format("02"), name)
}

// Upload writes one file's bytes to its date-scoped key.
func (s *Store) Upload(ctx context.Context, name string, data []byte, at time.Time) error {
	key := s.Key(name, at)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("archive: put object %s: %w", key, err)
	}
	return nil
}

// File is one local report file pending archival.
type File struct {
	Name string
	Data []byte
}

// UploadAll archives every file, collecting per-file outcomes; a partial
// failure does not abort the remaining uploads, matching the archive task's
// "collected per file" contract.
func (s *Store) UploadAll(ctx context.Context, files []File, at time.Time) []UploadResult {
	results := make([]UploadResult, 0, len(files))
	for _, f := range files {
		err := s.Upload(ctx, f.Name, f.Data, at)
		res := UploadResult{Name: f.Name, Key: s.Key(f.Name, at), Success: err == nil}
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results
}
