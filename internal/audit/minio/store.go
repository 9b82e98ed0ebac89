// Package minio stores audit entries as JSON objects in a MinIO or other
// S3-compatible bucket.
//
// Each entry is one object at <prefix>/<yyyy>/<mm>/<dd>/<id>.json. IDs sort
// by creation time, so walking the date directories and keys in reverse
// order yields newest first, and a listing stops as soon as it has enough.
//
// Usage:
//
//	store, err := minio.New(ctx, minio.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "askdb",
//	})
//	if err != nil { ... }
//	err = store.Record(ctx, audit.Entry{SQL: "SELECT 1"})
package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/koustreak/askdb/internal/audit"
	"github.com/koustreak/askdb/internal/errs"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds the connection and layout settings.
type Config struct {
	// Endpoint is host:port of the storage server, e.g. "localhost:9000".
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Region is only needed by region-aware backends such as AWS S3.
	Region string

	Bucket string
	// Prefix is prepended to every key. Defaults to "history".
	Prefix string
	// AutoCreateBucket creates Bucket on startup when it is missing.
	AutoCreateBucket bool
}

const defaultPrefix = "history"

// dayDepth is how many directory levels (year, month, day) sit between the
// prefix and an entry's key.
const dayDepth = 3

// client is the subset of the SDK the store needs.
type client interface {
	Put(ctx context.Context, bucket, key string, body []byte) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	// Children lists the immediate children of dir, which ends in "/".
	// Sub-directories are returned with a trailing "/".
	Children(ctx context.Context, bucket, dir string) ([]string, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket, region string) error
}

// Store is an audit.Recorder backed by an object store.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	client client
	bucket string
	prefix string
	now    func() time.Time
}

// New connects to the object store and verifies the bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "audit endpoint is required")
	}
	c, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create minio client", err)
	}

	s, err := newStore(&sdkClient{client: c}, cfg.Bucket, cfg.Prefix)
	if err != nil {
		return nil, err
	}
	if err := s.ensureBucket(ctx, cfg.Region, cfg.AutoCreateBucket); err != nil {
		return nil, err
	}
	return s, nil
}

func newStore(c client, bucket, prefix string) (*Store, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "audit bucket is required")
	}
	return &Store{
		client: c,
		bucket: bucket,
		prefix: cleanPrefix(prefix),
		now:    time.Now,
	}, nil
}

func (s *Store) ensureBucket(ctx context.Context, region string, create bool) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if !create {
		return errs.New(errs.ErrKindInvalidInput, "audit bucket "+s.bucket+" does not exist")
	}
	return s.client.MakeBucket(ctx, s.bucket, region)
}

// Record writes e as one JSON object.
func (s *Store) Record(ctx context.Context, e audit.Entry) error {
	e.Stamp(s.now())

	body, err := json.Marshal(e)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to encode audit entry", err)
	}
	return s.client.Put(ctx, s.bucket, s.key(e), body)
}

// List returns up to limit entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = audit.DefaultListLimit
	}

	keys, err := s.newestKeys(ctx, s.prefix+"/", 0, limit, nil)
	if err != nil {
		return nil, err
	}

	entries := make([]audit.Entry, 0, len(keys))
	for _, key := range keys {
		body, err := s.client.Get(ctx, s.bucket, key)
		if err != nil {
			return nil, err
		}
		var e audit.Entry
		if err := json.Unmarshal(body, &e); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "corrupt audit object "+key, err)
		}
		entries = append(entries, e)
	}
	audit.SortNewestFirst(entries)
	return entries, nil
}

// newestKeys walks dir's date directories newest first and appends entry
// keys until limit is reached, so older days are never listed.
func (s *Store) newestKeys(ctx context.Context, dir string, depth, limit int, keys []string) ([]string, error) {
	children, err := s.client.Children(ctx, s.bucket, dir)
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(children)))

	for _, child := range children {
		if len(keys) >= limit {
			break
		}
		isDir := strings.HasSuffix(child, "/")
		switch {
		case depth == dayDepth && !isDir && strings.HasSuffix(child, ".json"):
			keys = append(keys, child)
		case depth < dayDepth && isDir:
			if keys, err = s.newestKeys(ctx, child, depth+1, limit, keys); err != nil {
				return nil, err
			}
		}
	}
	return keys, nil
}

// key lays entries out by UTC day. Within a prefix, lexical key order is
// chronological because the date path and the ID both are.
func (s *Store) key(e audit.Entry) string {
	return path.Join(s.prefix, e.At.UTC().Format("2006/01/02"), e.ID+".json")
}

func cleanPrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return defaultPrefix
	}
	if cleaned := path.Clean(prefix); cleaned != "." {
		return cleaned
	}
	return defaultPrefix
}

// sdkClient adapts *miniogo.Client to client.
type sdkClient struct {
	client *miniogo.Client
}

func (c *sdkClient) Put(ctx context.Context, bucket, key string, body []byte) error {
	_, err := c.client.PutObject(ctx, bucket, key, bytes.NewReader(body), int64(len(body)),
		miniogo.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return mapError(err, "failed to write audit entry")
	}
	return nil
}

func (c *sdkClient) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get audit entry")
	}
	defer obj.Close()

	body, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapError(err, "failed to read audit entry")
	}
	return body, nil
}

func (c *sdkClient) Children(ctx context.Context, bucket, dir string) ([]string, error) {
	var children []string
	for obj := range c.client.ListObjects(ctx, bucket, miniogo.ListObjectsOptions{Prefix: dir}) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list audit entries")
		}
		children = append(children, obj.Key)
	}
	return children, nil
}

func (c *sdkClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	ok, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, mapError(err, "ping failed")
	}
	return ok, nil
}

func (c *sdkClient) MakeBucket(ctx context.Context, bucket, region string) error {
	if err := c.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{Region: region}); err != nil {
		return mapError(err, "failed to create audit bucket")
	}
	return nil
}
