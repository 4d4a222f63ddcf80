package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kilianp07/fieldcast/core/sink"
	"github.com/kilianp07/fieldcast/pkg/export"
)

// ObjectConfig points at an S3-compatible bucket.
type ObjectConfig struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	UseSSL    bool   `json:"use_ssl"`
}

// Validate checks the required fields.
func (c ObjectConfig) Validate() error {
	if c.Endpoint == "" || c.Bucket == "" {
		return fmt.Errorf("object sink: endpoint and bucket are required")
	}
	return nil
}

type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

var newObjectStore = func(cfg ObjectConfig) (objectStore, error) {
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
}

// ObjectSink stores each run as one JSON-lines object.
type ObjectSink struct {
	store objectStore
	cfg   ObjectConfig
}

// NewObjectSink connects and creates the bucket when missing.
func NewObjectSink(ctx context.Context, cfg ObjectConfig) (*ObjectSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := newObjectStore(cfg)
	if err != nil {
		return nil, err
	}
	exists, err := store.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket exists: %w", err)
	}
	if !exists {
		if err := store.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("make bucket: %w", err)
		}
	}
	return &ObjectSink{store: store, cfg: cfg}, nil
}

// Key returns the object name of run: <prefix>/<yyyy>/<mm>/<dd>/<id>.jsonl.
func (s *ObjectSink) Key(run *sink.Run) string {
	return path.Join(s.cfg.Prefix, run.Created.UTC().Format("2006/01/02"), run.ID+".jsonl")
}

func (s *ObjectSink) Write(ctx context.Context, run *sink.Run) error {
	var buf bytes.Buffer
	if err := export.WriteJSONL(&buf, run); err != nil {
		return err
	}
	_, err := s.store.PutObject(ctx, s.cfg.Bucket, s.Key(run), &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "application/x-ndjson",
		UserMetadata: map[string]string{
			"run-id":     run.ID,
			"mode":       run.Mode,
			"convention": run.Convention,
		},
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *ObjectSink) Close() error { return nil }

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
