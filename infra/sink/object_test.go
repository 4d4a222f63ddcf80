package sink

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	buckets map[string]bool
	objects map[string][]byte
	meta    map[string]minio.PutObjectOptions
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{buckets: map[string]bool{}, objects: map[string][]byte{}, meta: map[string]minio.PutObjectOptions{}}
}

func (f *fakeStore) BucketExists(_ context.Context, b string) (bool, error) { return f.buckets[b], nil }

func (f *fakeStore) MakeBucket(_ context.Context, b string, _ minio.MakeBucketOptions) error {
	f.buckets[b] = true
	return nil
}

func (f *fakeStore) PutObject(_ context.Context, b, o string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if n != size {
		return minio.UploadInfo{}, errors.New("size mismatch")
	}
	f.objects[b+"/"+o] = buf.Bytes()
	f.meta[b+"/"+o] = opts
	return minio.UploadInfo{Bucket: b, Key: o, Size: n}, nil
}

func useStore(t *testing.T, f *fakeStore) {
	t.Helper()
	prev := newObjectStore
	newObjectStore = func(ObjectConfig) (objectStore, error) { return f, nil }
	t.Cleanup(func() { newObjectStore = prev })
}

func TestObjectSinkCreatesBucketAndWrites(t *testing.T) {
	store := newFakeStore()
	useStore(t, store)
	s, err := NewObjectSink(context.Background(), ObjectConfig{Endpoint: "localhost:9000", Bucket: "predictions", Prefix: "runs"})
	require.NoError(t, err)
	assert.True(t, store.buckets["predictions"])

	run := testRun("r1")
	assert.Equal(t, "runs/2024/05/02/r1.jsonl", s.Key(run))
	require.NoError(t, s.Write(context.Background(), run))

	body := store.objects["predictions/runs/2024/05/02/r1.jsonl"]
	assert.Equal(t, 3, strings.Count(string(body), "\n"))
	opts := store.meta["predictions/runs/2024/05/02/r1.jsonl"]
	assert.Equal(t, "application/x-ndjson", opts.ContentType)
	assert.Equal(t, "r1", opts.UserMetadata["run-id"])
}

func TestObjectSinkErrors(t *testing.T) {
	_, err := NewObjectSink(context.Background(), ObjectConfig{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	store := newFakeStore()
	store.putErr = errors.New("denied")
	useStore(t, store)
	s, err := NewObjectSink(context.Background(), ObjectConfig{Endpoint: "localhost:9000", Bucket: "b"})
	require.NoError(t, err)
	assert.ErrorContains(t, s.Write(context.Background(), testRun("r1")), "denied")
}
