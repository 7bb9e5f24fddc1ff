package sessionstore

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type fakeS3Object struct {
	data     []byte
	metadata map[string]string
}

type fakeS3Put struct {
	bucket      string
	key         string
	contentType string
	data        []byte
	metadata    map[string]string
}

type fakeS3Copy struct {
	bucket    string
	key       string
	source    string
	directive types.MetadataDirective
	metadata  map[string]string
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]*fakeS3Object

	puts    []fakeS3Put
	deletes []string
	copies  []fakeS3Copy

	copyErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]*fakeS3Object{}}
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	key := aws.ToString(params.Key)
	f.objects[key] = &fakeS3Object{data: data, metadata: params.Metadata}
	f.puts = append(f.puts, fakeS3Put{
		bucket:      aws.ToString(params.Bucket),
		key:         key,
		contentType: aws.ToString(params.ContentType),
		data:        data,
		metadata:    params.Metadata,
	})
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	obj, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:     io.NopCloser(bytes.NewReader(obj.data)),
		Metadata: obj.metadata,
	}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := aws.ToString(params.Key)
	delete(f.objects, key)
	f.deletes = append(f.deletes, key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.copyErr != nil {
		return nil, f.copyErr
	}

	source := aws.ToString(params.CopySource)
	parts := strings.SplitN(source, "/", 2)
	if len(parts) != 2 {
		return nil, &smithy.GenericAPIError{Code: "InvalidRequest"}
	}
	src, ok := f.objects[parts[1]]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey"}
	}

	metadata := src.metadata
	if params.MetadataDirective == types.MetadataDirectiveReplace {
		metadata = params.Metadata
	}

	key := aws.ToString(params.Key)
	f.objects[key] = &fakeS3Object{data: src.data, metadata: metadata}
	f.copies = append(f.copies, fakeS3Copy{
		bucket:    aws.ToString(params.Bucket),
		key:       key,
		source:    source,
		directive: params.MetadataDirective,
		metadata:  params.Metadata,
	})
	return &s3.CopyObjectOutput{}, nil
}

func TestS3Store_SaveUploadsWithExpiryMetadata(t *testing.T) {
	fake := newFakeS3()
	store := NewS3Store(fake, "bkt")

	expiresAt := time.Now().Add(time.Minute)
	if err := store.Save(context.Background(), "s1", []byte("snap"), expiresAt); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.puts) != 1 {
		t.Fatalf("PutObject calls got %d want 1", len(fake.puts))
	}
	put := fake.puts[0]
	if put.bucket != "bkt" {
		t.Errorf("bucket got %q want %q", put.bucket, "bkt")
	}
	if put.key != "sessions/s1" {
		t.Errorf("key got %q want %q", put.key, "sessions/s1")
	}
	if !bytes.Equal(put.data, []byte("snap")) {
		t.Errorf("body got %q want %q", put.data, "snap")
	}
	if put.contentType != "application/json" {
		t.Errorf("content type got %q", put.contentType)
	}

	raw, ok := put.metadata[expiresAtMetadataKey]
	if !ok {
		t.Fatalf("metadata missing %q: %v", expiresAtMetadataKey, put.metadata)
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t.Fatalf("expires-at %q not RFC3339: %v", raw, err)
	}
	if !parsed.Equal(expiresAt.UTC().Truncate(time.Second)) {
		t.Errorf("expires-at got %v want %v", parsed, expiresAt.UTC().Truncate(time.Second))
	}
}

func TestS3Store_Save_ExpiredDeletes(t *testing.T) {
	fake := newFakeS3()
	store := NewS3Store(fake, "bkt")

	if err := store.Save(context.Background(), "s1", []byte("x"), time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.puts) != 0 {
		t.Errorf("PutObject calls got %d want 0", len(fake.puts))
	}
	if len(fake.deletes) != 1 || fake.deletes[0] != "sessions/s1" {
		t.Errorf("deletes got %v want [sessions/s1]", fake.deletes)
	}
}

func TestS3Store_LoadRoundTrip(t *testing.T) {
	fake := newFakeS3()
	store := NewS3Store(fake, "bkt")

	ctx := context.Background()
	if err := store.Save(ctx, "s1", []byte("snap"), time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	data, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !bytes.Equal(data, []byte("snap")) {
		t.Errorf("Load() got %q want %q", data, "snap")
	}
}

func TestS3Store_LoadMissingReturnsNil(t *testing.T) {
	fake := newFakeS3()
	store := NewS3Store(fake, "bkt")

	data, err := store.Load(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if data != nil {
		t.Errorf("Load() got %q want nil", data)
	}
}

func TestS3Store_LoadExpiredReapsObject(t *testing.T) {
	fake := newFakeS3()
	fake.objects["sessions/s1"] = &fakeS3Object{
		data: []byte("stale"),
		metadata: map[string]string{
			expiresAtMetadataKey: time.Now().Add(-time.Minute).UTC().Format(time.RFC3339),
		},
	}
	store := NewS3Store(fake, "bkt")

	data, err := store.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if data != nil {
		t.Errorf("Load() got %q want nil", data)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.deletes) != 1 || fake.deletes[0] != "sessions/s1" {
		t.Errorf("deletes got %v want [sessions/s1]", fake.deletes)
	}
}

func TestS3Store_LoadWithoutExpiryMetadataSurvives(t *testing.T) {
	fake := newFakeS3()
	fake.objects["sessions/s1"] = &fakeS3Object{data: []byte("snap")}
	store := NewS3Store(fake, "bkt")

	data, err := store.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !bytes.Equal(data, []byte("snap")) {
		t.Errorf("Load() got %q want %q", data, "snap")
	}
}

func TestS3Store_TouchReplacesMetadataInPlace(t *testing.T) {
	fake := newFakeS3()
	store := NewS3Store(fake, "bkt")

	ctx := context.Background()
	if err := store.Save(ctx, "s1", []byte("snap"), time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	newExpiry := time.Now().Add(time.Hour)
	if err := store.Touch(ctx, "s1", newExpiry); err != nil {
		t.Fatalf("Touch() error: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.copies) != 1 {
		t.Fatalf("CopyObject calls got %d want 1", len(fake.copies))
	}
	cp := fake.copies[0]
	if cp.source != "bkt/sessions/s1" {
		t.Errorf("CopySource got %q want %q", cp.source, "bkt/sessions/s1")
	}
	if cp.key != "sessions/s1" {
		t.Errorf("key got %q want %q", cp.key, "sessions/s1")
	}
	if cp.directive != types.MetadataDirectiveReplace {
		t.Errorf("MetadataDirective got %v want %v", cp.directive, types.MetadataDirectiveReplace)
	}
	if _, ok := cp.metadata[expiresAtMetadataKey]; !ok {
		t.Errorf("metadata missing %q: %v", expiresAtMetadataKey, cp.metadata)
	}

	// Body is untouched.
	if got := fake.objects["sessions/s1"].data; !bytes.Equal(got, []byte("snap")) {
		t.Errorf("object data got %q want %q", got, "snap")
	}
}

func TestS3Store_TouchMissingIsNoError(t *testing.T) {
	fake := newFakeS3()
	store := NewS3Store(fake, "bkt")

	if err := store.Touch(context.Background(), "absent", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Touch() on missing snapshot error: %v", err)
	}
}

func TestS3Store_SaveAll_SkipsExpired(t *testing.T) {
	fake := newFakeS3()
	store := NewS3Store(fake, "bkt")

	now := time.Now()
	err := store.SaveAll(context.Background(), map[string]Record{
		"alive": {Data: []byte("a"), ExpiresAt: now.Add(time.Minute)},
		"stale": {Data: []byte("b"), ExpiresAt: now.Add(-time.Second)},
	})
	if err != nil {
		t.Fatalf("SaveAll() error: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.puts) != 1 {
		t.Fatalf("PutObject calls got %d want 1", len(fake.puts))
	}
	if fake.puts[0].key != "sessions/alive" {
		t.Errorf("key got %q want %q", fake.puts[0].key, "sessions/alive")
	}
}

func TestS3Store_WithS3Prefix(t *testing.T) {
	fake := newFakeS3()
	store := NewS3Store(fake, "bkt", WithS3Prefix("app/snapshots/"))

	if err := store.Save(context.Background(), "s1", []byte("x"), time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.puts[0].key != "app/snapshots/s1" {
		t.Errorf("key got %q want %q", fake.puts[0].key, "app/snapshots/s1")
	}
}

func TestS3Store_Close_MakesOperationsFail(t *testing.T) {
	fake := newFakeS3()
	store := NewS3Store(fake, "bkt")
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	ctx := context.Background()
	expiresAt := time.Now().Add(time.Minute)
	if err := store.Save(ctx, "s", []byte("x"), expiresAt); err == nil {
		t.Error("Save() expected error after Close, got nil")
	}
	if _, err := store.Load(ctx, "s"); err == nil {
		t.Error("Load() expected error after Close, got nil")
	}
	if err := store.Delete(ctx, "s"); err == nil {
		t.Error("Delete() expected error after Close, got nil")
	}
	if err := store.Touch(ctx, "s", expiresAt); err == nil {
		t.Error("Touch() expected error after Close, got nil")
	}
	if err := store.SaveAll(ctx, map[string]Record{}); err == nil {
		t.Error("SaveAll() expected error after Close, got nil")
	}
}
