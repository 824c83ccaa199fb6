package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/askdb/askdb/internal/storage"
)

func TestPutJoinsPrefixAndKey(t *testing.T) {
	fake := &fakeBucket{}
	store, err := newWithAPI("askdb-history", "/askdb/prod/", fake)
	if err != nil {
		t.Fatalf("newWithAPI() error = %v", err)
	}

	key := "history/service=askdb-api/date=2026-10-17/hour=09/asks-b1.parquet"
	if _, err := store.Put(context.Background(), "/"+key, bytes.NewBufferString("PAR1"), 4, storage.PutOptions{ContentType: "application/vnd.apache.parquet"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.putBucket != "askdb-history" {
		t.Fatalf("bucket = %q", fake.putBucket)
	}
	if fake.putKey != "askdb/prod/"+key {
		t.Fatalf("key = %q", fake.putKey)
	}
	if fake.putContentType != "application/vnd.apache.parquet" {
		t.Fatalf("content type = %q", fake.putContentType)
	}
}

func TestObjectKeyValidation(t *testing.T) {
	store, err := newWithAPI("b", "", &fakeBucket{})
	if err != nil {
		t.Fatalf("newWithAPI() error = %v", err)
	}
	for _, key := range []string{"", "   ", "../secrets.txt", "a/../../b", "."} {
		if _, err := store.Put(context.Background(), key, strings.NewReader("x"), 1, storage.PutOptions{}); err == nil {
			t.Fatalf("Put(%q) expected validation error", key)
		}
	}
}

func TestNotFoundIsNormalised(t *testing.T) {
	fake := &fakeBucket{readErr: storage.ErrObjectNotFound}
	store, _ := newWithAPI("b", "", fake)

	if _, err := store.Get(context.Background(), "missing.parquet"); err != storage.ErrObjectNotFound {
		t.Fatalf("Get() error = %v, want ErrObjectNotFound", err)
	}
	if _, err := store.Stat(context.Background(), "missing.parquet"); err != storage.ErrObjectNotFound {
		t.Fatalf("Stat() error = %v, want ErrObjectNotFound", err)
	}

	fake.readErr = errors.New("connection reset")
	if _, err := store.Stat(context.Background(), "x.parquet"); err == nil || errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat() error = %v, want wrapped transport error", err)
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := &fakeBucket{}
	store, _ := newWithAPI("b", "", fake)
	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if fake.madeRegion != "us-east-1" {
		t.Fatalf("MakeBucket region = %q", fake.madeRegion)
	}

	fake = &fakeBucket{exists: true}
	store, _ = newWithAPI("b", "", fake)
	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if fake.madeRegion != "" {
		t.Fatal("MakeBucket should not be called for an existing bucket")
	}
}

func TestPing(t *testing.T) {
	store, _ := newWithAPI("b", "", &fakeBucket{exists: true})
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	store, _ = newWithAPI("b", "", &fakeBucket{})
	if err := store.Ping(context.Background()); err == nil {
		t.Fatal("Ping() expected error for missing bucket")
	}
}

func TestListStripsStorePrefixAndSorts(t *testing.T) {
	fake := &fakeBucket{listed: []storage.ObjectInfo{
		{Key: "askdb/prod/history/service=askdb-api/date=2026-10-17/hour=10/asks-b.parquet", Size: 2},
		{Key: "askdb/prod/history/service=askdb-api/date=2026-10-17/hour=09/asks-a.parquet", Size: 1},
	}}
	store, _ := newWithAPI("b", "askdb/prod", fake)

	objects, err := store.List(context.Background(), "/history/service=askdb-api/date=2026-10-17/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if fake.listPrefix != "askdb/prod/history/service=askdb-api/date=2026-10-17/" {
		t.Fatalf("list prefix = %q", fake.listPrefix)
	}
	if len(objects) != 2 {
		t.Fatalf("len(objects) = %d", len(objects))
	}
	if objects[0].Key != "history/service=askdb-api/date=2026-10-17/hour=09/asks-a.parquet" {
		t.Fatalf("objects[0].Key = %q", objects[0].Key)
	}

	if _, err := store.List(context.Background(), "../other"); err == nil {
		t.Fatal("List() expected prefix validation error")
	}
	fake.readErr = errors.New("connection reset")
	if _, err := store.List(context.Background(), "history/"); err == nil {
		t.Fatal("List() expected transport error")
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw        string
		useSSL     bool
		wantHost   string
		wantSecure bool
		wantErr    bool
	}{
		{raw: "localhost:9000", wantHost: "localhost:9000"},
		{raw: "localhost:9000", useSSL: true, wantHost: "localhost:9000", wantSecure: true},
		{raw: "https://minio.example.com", wantHost: "minio.example.com", wantSecure: true},
		{raw: "http://minio:9000", wantHost: "minio:9000"},
		{raw: "", wantErr: true},
		{raw: "ftp://minio", wantErr: true},
		{raw: "http://", wantErr: true},
	}
	for _, tc := range tests {
		host, secure, err := parseEndpoint(tc.raw, tc.useSSL)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseEndpoint(%q) expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseEndpoint(%q) error = %v", tc.raw, err)
		}
		if host != tc.wantHost || secure != tc.wantSecure {
			t.Fatalf("parseEndpoint(%q) = %q/%v", tc.raw, host, secure)
		}
	}
}

type fakeBucket struct {
	putBucket      string
	putKey         string
	putContentType string
	exists         bool
	madeRegion     string
	readErr        error
	listPrefix     string
	listed         []storage.ObjectInfo
}

func (f *fakeBucket) PutObject(_ context.Context, bucket, key string, body io.Reader, size int64, contentType string) (storage.ObjectInfo, error) {
	f.putBucket = bucket
	f.putKey = key
	f.putContentType = contentType
	_, _ = io.Copy(io.Discard, body)
	return storage.ObjectInfo{Key: key, Size: size, ETag: "etag-1"}, nil
}

func (f *fakeBucket) GetObject(_ context.Context, _, key string) (io.ReadCloser, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return io.NopCloser(strings.NewReader(key)), nil
}

func (f *fakeBucket) StatObject(_ context.Context, _, key string) (storage.ObjectInfo, error) {
	if f.readErr != nil {
		return storage.ObjectInfo{}, f.readErr
	}
	return storage.ObjectInfo{Key: key, Size: 10, LastModified: time.Now().UTC()}, nil
}

func (f *fakeBucket) ListObjects(_ context.Context, _, prefix string) ([]storage.ObjectInfo, error) {
	f.listPrefix = prefix
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.listed, nil
}

func (f *fakeBucket) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.exists, nil
}

func (f *fakeBucket) MakeBucket(_ context.Context, _, region string) error {
	f.madeRegion = region
	return nil
}
