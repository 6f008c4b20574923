package acl

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, fs FileAccess, rs *RuleSet, opts ...func(*Config)) *Engine {
	t.Helper()

	cfg := &Config{FS: fs, Rules: rs}
	for _, opt := range opts {
		opt(cfg)
	}
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	return e
}

// The §8 reference scenario: one read-write group rule at /data over a
// directory and a file.
func TestComposeDirAndFile(t *testing.T) {
	rs := buildTestRuleSet(t, []*Rule{
		{Path: "/data", Entries: []RuleEntry{ruleEntry(PrincipalGroup, "g", AccessReadWrite)}},
	})
	adminID := rs.Administrative().FileEntries[0].Principal
	groupID := rs.rules["/data"].Template.FileEntries[0].Principal

	e := newTestEngine(t, newFakeFS(), rs)

	dir := e.Compose(&NodeInfo{Path: "/data", Type: NodeDir}, nil, true)
	require.Len(t, dir, 2, "directories get no global-deny entry")

	assert.Equal(t, adminID, dir[0].Principal)
	assert.Equal(t, PermSet(DirFullPerms), dir[0].Perms)
	assert.False(t, dir[0].Flags.Inherited, "admin entry is origin at the batch root")
	assert.True(t, dir[0].Flags.FileInherit)
	assert.True(t, dir[0].Flags.DirInherit)

	assert.Equal(t, groupID, dir[1].Principal)
	assert.Equal(t, PermSet(DirWritePerms), dir[1].Perms)
	assert.False(t, dir[1].Flags.Inherited, "rule at /data is origin at /data")

	file := e.Compose(&NodeInfo{Path: "/data/f.txt", Type: NodeFile}, nil, false)
	require.Len(t, file, 3)

	assert.Equal(t, adminID, file[0].Principal)
	assert.Equal(t, PermSet(FileFullPerms), file[0].Perms)
	assert.True(t, file[0].Flags.Inherited)
	assert.False(t, file[0].Flags.FileInherit, "file entries never propagate")

	assert.Equal(t, groupID, file[1].Principal)
	assert.Equal(t, PermSet(FileWritePerms), file[1].Perms)
	assert.True(t, file[1].Flags.Inherited)

	assert.Equal(t, TagDeny, file[2].Tag)
	assert.Equal(t, EveryonePrincipal, file[2].Principal)
	assert.Equal(t, PermExecute, file[2].Perms)
	assert.True(t, file[2].Flags.Inherited)
}

func TestComposeStripsUngovernedEntries(t *testing.T) {
	rs := buildTestRuleSet(t, nil)
	e := newTestEngine(t, newFakeFS(), rs)

	stale := NativeACL{
		{Tag: TagAllow, Principal: uuid.New(), Perms: FileWritePerms},
		{Tag: TagDeny, Principal: uuid.New(), Perms: PermDelete},
	}

	desired := e.Compose(&NodeInfo{Path: "/data/f", Type: NodeFile}, stale, true)
	require.Len(t, desired, 2) // admin + global deny only
	for _, s := range stale {
		for _, d := range desired {
			assert.NotEqual(t, s.Principal, d.Principal)
		}
	}
}

func TestComposeWhitelistInvariance(t *testing.T) {
	indexer := uuid.New()
	rs := buildTestRuleSet(t, nil)
	e := newTestEngine(t, newFakeFS(), rs, func(c *Config) {
		c.Whitelist = mapset.NewThreadUnsafeSet(indexer)
	})

	kept := Entry{Tag: TagAllow, Principal: indexer, Perms: FileReadPerms,
		Flags: EntryFlags{Inherited: true}}
	current := NativeACL{
		{Tag: TagAllow, Principal: uuid.New(), Perms: FileWritePerms},
		kept,
	}

	desired := e.Compose(&NodeInfo{Path: "/data/f", Type: NodeFile}, current, true)

	// present exactly once, byte-identical, ahead of the injected entries
	require.Equal(t, kept, desired[0])
	count := 0
	for _, d := range desired {
		if d.Principal == indexer {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestComposeIdempotent(t *testing.T) {
	rs := buildTestRuleSet(t, []*Rule{
		{Path: "/data", Entries: []RuleEntry{ruleEntry(PrincipalGroup, "g", AccessReadWrite)}},
	})
	e := newTestEngine(t, newFakeFS(), rs)

	node := &NodeInfo{Path: "/data/sub", Type: NodeDir}
	first := e.Compose(node, nil, false)
	second := e.Compose(node, first, false)

	assert.Equal(t, first.Encode(), second.Encode())
}

func TestComposeGlobalDenyAsymmetry(t *testing.T) {
	rs := buildTestRuleSet(t, nil)
	e := newTestEngine(t, newFakeFS(), rs)

	dir := e.Compose(&NodeInfo{Path: "/x", Type: NodeDir}, nil, true)
	for _, ent := range dir {
		assert.NotEqual(t, TagDeny, ent.Tag)
	}

	file := e.Compose(&NodeInfo{Path: "/x/f", Type: NodeFile}, nil, false)
	require.NotEmpty(t, file)
	last := file[len(file)-1]
	assert.Equal(t, TagDeny, last.Tag)
	assert.Equal(t, PermExecute, last.Perms)
}

// Administrative and global-deny entries are origin only at the literal top
// of the walk, never below it.
func TestComposeBatchRootOrigin(t *testing.T) {
	rs := buildTestRuleSet(t, nil)
	e := newTestEngine(t, newFakeFS(), rs)

	root := e.Compose(&NodeInfo{Path: "/a", Type: NodeDir}, nil, true)
	assert.False(t, root[0].Flags.Inherited)

	below := e.Compose(&NodeInfo{Path: "/a/b", Type: NodeDir}, nil, false)
	assert.True(t, below[0].Flags.Inherited)
}
