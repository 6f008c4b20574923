package acl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadWriteSupersetsReadOnly(t *testing.T) {
	assert.True(t, PermSet(FileWritePerms).Contains(FileReadPerms))
	assert.True(t, PermSet(DirWritePerms).Contains(DirReadPerms))
}

func TestFullPermsSupersetReadWrite(t *testing.T) {
	assert.True(t, PermSet(FileFullPerms).Contains(FileWritePerms))
	assert.True(t, PermSet(DirFullPerms).Contains(DirWritePerms))

	// administrative rights include security and ownership bits
	assert.True(t, PermSet(FileFullPerms).Contains(PermWriteSecurity|PermChangeOwner))
	assert.True(t, PermSet(DirFullPerms).Contains(PermWriteSecurity|PermChangeOwner))
}

func TestVocabularyPerNodeType(t *testing.T) {
	// write-style expansions differ: files get write/append data, directories
	// get add-file/add-subdirectory/delete-child
	assert.True(t, PermSet(FileWritePerms).Contains(PermWriteData|PermAppendData))
	assert.False(t, PermSet(FileWritePerms).Contains(PermDeleteChild))
	assert.True(t, PermSet(DirWritePerms).Contains(PermDeleteChild))

	// search exists only in the directory read expansion
	assert.True(t, PermSet(DirReadPerms).Contains(PermSearch))
	assert.False(t, PermSet(FileReadPerms).Contains(PermExecute))
}

func TestPermSetString(t *testing.T) {
	assert.Equal(t, "none", PermSet(0).String())
	assert.Equal(t, "execute", PermExecute.String())
	assert.Contains(t, PermSet(FileReadPerms).String(), "read-data")
}
