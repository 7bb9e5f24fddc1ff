package sessionstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// expiresAtMetadataKey is the S3 user-metadata key carrying the end of the
// resume window. S3 lowercases metadata keys, so this stays lowercase.
const expiresAtMetadataKey = "expires-at"

// S3API is the subset of the S3 client the store needs.
// *s3.Client satisfies it; tests substitute a fake.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Store is an S3-backed snapshot store.
//
// S3 has no per-object TTL, so expiry is recorded as object metadata and
// enforced on read. Pair the store with a bucket lifecycle rule on its
// prefix to reclaim storage for snapshots that are never read again.
//
// Example usage:
//
//	cfg, _ := config.LoadDefaultConfig(context.Background())
//	store := sessionstore.NewS3Store(s3.NewFromConfig(cfg), "my-bucket")
type S3Store struct {
	client S3API
	bucket string
	prefix string
	closed bool
}

// S3StoreOption configures S3Store behavior.
type S3StoreOption func(*s3StoreConfig)

type s3StoreConfig struct {
	prefix string
}

// WithS3Prefix sets the object key prefix for snapshots.
// Default: "sessions/".
func WithS3Prefix(prefix string) S3StoreOption {
	return func(c *s3StoreConfig) {
		c.prefix = prefix
	}
}

// NewS3Store creates a new S3-backed snapshot store writing to bucket.
func NewS3Store(client S3API, bucket string, opts ...S3StoreOption) *S3Store {
	cfg := &s3StoreConfig{
		prefix: "sessions/",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: cfg.prefix,
	}
}

// key returns the object key for a session ID.
func (s *S3Store) key(id string) string {
	return s.prefix + id
}

// Save uploads snapshot bytes with the expiry stamped into metadata.
func (s *S3Store) Save(ctx context.Context, id string, data []byte, expiresAt time.Time) error {
	if s.closed {
		return ErrStoreClosed{}
	}

	if time.Until(expiresAt) <= 0 {
		return s.Delete(ctx, id)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(id)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			expiresAtMetadataKey: expiresAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("sessionstore: s3 put failed: %w", err)
	}
	return nil
}

// Load retrieves snapshot bytes if the object exists and hasn't expired.
func (s *S3Store) Load(ctx context.Context, id string) ([]byte, error) {
	if s.closed {
		return nil, ErrStoreClosed{}
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("sessionstore: s3 get failed: %w", err)
	}
	defer out.Body.Close()

	if s3Expired(out.Metadata) {
		// Past the resume window; reap on read since S3 has no TTL.
		s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(id)),
		})
		return nil, nil
	}

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: s3 read failed: %w", err)
	}
	return data, nil
}

// Delete removes a snapshot object. S3 deletes are idempotent, so a
// missing key is not an error.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	if s.closed {
		return ErrStoreClosed{}
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return fmt.Errorf("sessionstore: s3 delete failed: %w", err)
	}
	return nil
}

// Touch rewrites the expiry metadata via an in-place copy, leaving the
// body untouched.
func (s *S3Store) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	if s.closed {
		return ErrStoreClosed{}
	}

	if time.Until(expiresAt) <= 0 {
		return s.Delete(ctx, id)
	}

	key := s.key(id)
	// Session IDs are hex, so the copy source needs no URL escaping.
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(s.bucket + "/" + key),
		MetadataDirective: types.MetadataDirectiveReplace,
		ContentType:       aws.String("application/json"),
		Metadata: map[string]string{
			expiresAtMetadataKey: expiresAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil
		}
		return fmt.Errorf("sessionstore: s3 copy failed: %w", err)
	}
	return nil
}

// SaveAll uploads snapshots sequentially; S3 has no batch put.
// Snapshots already past their expiry are skipped.
func (s *S3Store) SaveAll(ctx context.Context, snapshots map[string]Record) error {
	if s.closed {
		return ErrStoreClosed{}
	}

	for id, rec := range snapshots {
		if time.Until(rec.ExpiresAt) <= 0 {
			continue
		}
		if err := s.Save(ctx, id, rec.Data, rec.ExpiresAt); err != nil {
			return err
		}
	}
	return nil
}

// Close marks the store as closed. It does not shut down the underlying
// S3 client, which may be shared with other components.
func (s *S3Store) Close() error {
	s.closed = true
	return nil
}

// s3Expired reports whether object metadata carries an expires-at in the
// past. Objects without the key, or with a malformed value, never expire
// here; the bucket lifecycle rule is the backstop.
func s3Expired(metadata map[string]string) bool {
	raw, ok := metadata[expiresAtMetadataKey]
	if !ok {
		return false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return false
	}
	return time.Now().After(t)
}

// isNoSuchKey matches both the modeled GetObject error and the generic
// API error CopyObject reports for a missing source.
func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "NoSuchKey"
}
