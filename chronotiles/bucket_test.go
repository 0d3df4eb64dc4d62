package chronotiles

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLocalFile(t *testing.T) {
	bucket, key, _ := NormalizeBucketKey("", "", "../foo/bar.cts")
	assert.Equal(t, "bar.cts", key)
	assert.True(t, strings.HasSuffix(bucket, "/foo"))
	assert.True(t, strings.HasPrefix(bucket, "file://"))
}

func TestNormalizeHttp(t *testing.T) {
	bucket, key, _ := NormalizeBucketKey("", "", "http://example.com/foo/bar.cts")
	assert.Equal(t, "bar.cts", key)
	assert.Equal(t, "http://example.com/foo", bucket)
}

func TestNormalizePathPrefixServer(t *testing.T) {
	bucket, key, _ := NormalizeBucketKey("", "../foo", "")
	assert.Equal(t, "", key)
	assert.True(t, strings.HasSuffix(bucket, "/foo"))
	assert.True(t, strings.HasPrefix(bucket, "file://"))
}

func TestNormalizeExplicitBucket(t *testing.T) {
	bucket, key, _ := NormalizeBucketKey("s3://mybucket", "", "tiles/foo.cts")
	assert.Equal(t, "s3://mybucket", bucket)
	assert.Equal(t, "tiles/foo.cts", key)
}

func TestMockBucketRead(t *testing.T) {
	bucket := mockBucket{items: map[string][]byte{"a/b": []byte("hello")}}

	data, err := readAll(context.Background(), bucket, "a/b")
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = readAll(context.Background(), bucket, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
