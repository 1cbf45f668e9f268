package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elimfilters/internal/config"
)

// memoryBucket хранилище объектов в памяти; страница листинга ограничена pageSize
type memoryBucket struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int
}

func newMemoryBucket() *memoryBucket {
	return &memoryBucket{objects: make(map[string][]byte), pageSize: 2}
}

func (m *memoryBucket) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *memoryBucket) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memoryBucket) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for key := range m.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) && key > aws.ToString(in.StartAfter) && key > aws.ToString(in.ContinuationToken) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if len(keys) > m.pageSize {
		keys = keys[:m.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	modified := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(m.objects[key]))),
			LastModified: &modified,
		})
	}
	return out, nil
}

func newTestBackup(t *testing.T) (*S3Backup, *memoryBucket) {
	t.Helper()
	bucket := newMemoryBucket()
	return NewS3BackupWithClient(bucket, "elim-backups", "nightly", nil), bucket
}

func TestKeyFor(t *testing.T) {
	b, _ := newTestBackup(t)
	at := time.Date(2026, 10, 15, 3, 4, 5, 0, time.UTC)

	assert.Equal(t, "nightly/catalog/catalog-20261015T030405Z.db", b.KeyFor("/var/lib/elim/catalog.db", at))
	assert.Equal(t, "nightly/learned_rules/learned_rules-20261015T030405Z.json", b.KeyFor("learned_rules.json", at))
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	b, bucket := newTestBackup(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "learned_rules.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"learnedPrefixes":{"S":"OIL|LD"}}`), 0o644))

	key, err := b.Upload(context.Background(), src)
	require.NoError(t, err)
	assert.Contains(t, bucket.objects, key)

	dest := filepath.Join(dir, "restored", "learned_rules.json")
	require.NoError(t, b.Download(context.Background(), key, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.JSONEq(t, `{"learnedPrefixes":{"S":"OIL|LD"}}`, string(data))
}

func TestDownloadMissingKeyKeepsDestination(t *testing.T) {
	b, _ := newTestBackup(t)
	dest := filepath.Join(t.TempDir(), "catalog.db")
	require.NoError(t, os.WriteFile(dest, []byte("current"), 0o644))

	err := b.Download(context.Background(), "nightly/catalog/missing.db", dest)
	require.Error(t, err)
	var noSuchKey *types.NoSuchKey
	assert.True(t, errors.As(err, &noSuchKey))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "current", string(data))
}

func TestListNewestFirstAcrossPages(t *testing.T) {
	b, _ := newTestBackup(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "catalog.db")
	require.NoError(t, os.WriteFile(src, []byte("sqlite"), 0o644))

	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		at := start.Add(time.Duration(i) * time.Hour)
		b.now = func() time.Time { return at }
		_, err := b.Upload(context.Background(), src)
		require.NoError(t, err)
	}
	other := filepath.Join(dir, "failure_log.json")
	require.NoError(t, os.WriteFile(other, []byte("[]"), 0o644))
	_, err := b.Upload(context.Background(), other)
	require.NoError(t, err)

	objects, err := b.List(context.Background(), "catalog.db")
	require.NoError(t, err)
	require.Len(t, objects, 5)
	assert.Equal(t, "nightly/catalog/catalog-20261001T040000Z.db", objects[0].Key)
	assert.Equal(t, int64(6), objects[0].Size)

	all, err := b.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 6)

	latest, err := b.Latest(context.Background(), "catalog.db")
	require.NoError(t, err)
	assert.Equal(t, objects[0].Key, latest)

	_, err = b.Latest(context.Background(), "absent.db")
	assert.Error(t, err)
}

func TestNewS3BackupRequiresBucket(t *testing.T) {
	_, err := NewS3Backup(context.Background(), &config.BackupConfig{Region: "us-east-1"}, nil)
	assert.Error(t, err)
}
