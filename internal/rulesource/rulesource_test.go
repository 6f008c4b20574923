package rulesource

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.txt")
	require.NoError(t, os.WriteFile(path, []byte("u:r:alice::/a\n"), 0o644))

	rc, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "u:r:alice::/a\n", string(data))
}

func TestOpenMissingLocalFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIsS3(t *testing.T) {
	assert.True(t, IsS3("s3://bucket/key"))
	assert.False(t, IsS3("/etc/permtree/rules"))
	assert.False(t, IsS3("s3:/bucket"))
}

func TestSplitS3Ref(t *testing.T) {
	bucket, key, err := splitS3Ref("s3://acme-rules/prod/rules.txt")
	require.NoError(t, err)
	assert.Equal(t, "acme-rules", bucket)
	assert.Equal(t, "prod/rules.txt", key)

	for _, bad := range []string{"s3://", "s3://bucket", "s3://bucket/"} {
		_, _, err := splitS3Ref(bad)
		assert.Error(t, err, bad)
	}
}
