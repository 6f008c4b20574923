package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyBuildInfo(t *testing.T) {
	Version = "0.1.0-dev"
	Revision = "HEAD"
	BuildDate = ""

	applyBuildInfo("v1.2.3", map[string]string{
		"vcs.revision": "abc123",
		"vcs.modified": "true",
		"vcs.time":     "2025-01-02T03:04:05Z",
	})

	assert.Equal(t, "1.2.3", Version)
	assert.Equal(t, "abc123-dirty", Revision)
	assert.Equal(t, "2025-01-02T03:04:05Z", BuildDate)
}

func TestApplyBuildInfoKeepsLdflags(t *testing.T) {
	Version = "2.0.0"
	Revision = "release-sha"
	BuildDate = "2025-06-01T00:00:00Z"

	applyBuildInfo("v9.9.9", map[string]string{"vcs.revision": "other"})

	assert.Equal(t, "2.0.0", Version)
	assert.Equal(t, "release-sha", Revision)
	assert.Equal(t, "2025-06-01T00:00:00Z", BuildDate)
}
