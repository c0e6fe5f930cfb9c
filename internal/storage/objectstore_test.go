package storage

import (
	"context"
	"os"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewObjectStore_EndpointScheme(t *testing.T) {
	tests := []struct {
		endpoint   string
		useSSL     bool
		wantScheme string
		wantHost   string
	}{
		{"minio:9000", false, "http", "minio:9000"},
		{"minio:9000", true, "https", "minio:9000"},
		{"https://s3.example.com", false, "https", "s3.example.com"},
		{"http://localhost:9000", true, "http", "localhost:9000"},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			s, err := NewObjectStore(ObjectStoreConfig{
				Endpoint:  tt.endpoint,
				AccessKey: "key",
				SecretKey: "secret",
				Bucket:    "gallery",
				UseSSL:    tt.useSSL,
			})
			require.NoError(t, err)
			u := s.client.EndpointURL()
			assert.Equal(t, tt.wantScheme, u.Scheme)
			assert.Equal(t, tt.wantHost, u.Host)
		})
	}
}

// liveObjectStore connects to VG_TEST_S3_ENDPOINT or skips the test.
func liveObjectStore(t *testing.T) *ObjectStore {
	t.Helper()
	endpoint := os.Getenv("VG_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("VG_TEST_S3_ENDPOINT not set")
	}
	s, err := NewObjectStore(ObjectStoreConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("VG_TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("VG_TEST_S3_SECRET_KEY"),
		Bucket:    "vg-test",
		Region:    "us-east-1",
	})
	require.NoError(t, err)
	require.NoError(t, s.EnsureBucket(context.Background()))
	return s
}

func TestObjectStore_RoundTrip(t *testing.T) {
	s := liveObjectStore(t)
	ctx := context.Background()
	prefix := "vehicles/" + uuid.NewString() + "/"

	require.NoError(t, s.Put(ctx, prefix+"a.jpg", []byte("original")))
	require.NoError(t, s.Put(ctx, prefix+"thumbnails/thumb_a.jpg", []byte("thumb")))

	data, err := s.Get(ctx, prefix+"a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), data)

	ok, err := s.Exists(ctx, prefix+"a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	keys, err := s.List(ctx, prefix)
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{prefix + "a.jpg", prefix + "thumbnails/thumb_a.jpg"}, keys)

	require.NoError(t, s.Delete(ctx, prefix+"a.jpg"))
	require.NoError(t, s.Delete(ctx, prefix+"a.jpg"), "delete is idempotent")
	require.NoError(t, s.Delete(ctx, prefix+"thumbnails/thumb_a.jpg"))

	_, err = s.Get(ctx, prefix+"a.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
	ok, err = s.Exists(ctx, prefix+"a.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}
