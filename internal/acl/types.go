package acl

import (
	"context"
	"errors"
	"io/fs"

	"github.com/google/uuid"
)

// PrincipalID is the 16-byte globally-unique identifier assigned to a user
// or group by the directory service. It is opaque and compared by equality.
type PrincipalID = uuid.UUID

// EveryonePrincipal is the well-known GUID of the "everyone" group.
var EveryonePrincipal = uuid.MustParse("ABCDEFAB-CDEF-ABCD-EFAB-CDEF0000000C")

var (
	ErrUnresolvedPrincipal = errors.New("unresolved principal")
	ErrNoACL               = errors.New("no acl present")
	ErrUnknownEntryTag     = errors.New("unknown acl entry tag")
	ErrBadEncoding         = errors.New("malformed acl encoding")
)

// SkipDir can be returned from a WalkFunc on a directory node to skip its
// entire subtree.
var SkipDir = fs.SkipDir

// PrincipalKind distinguishes user and group principals for directory lookups.
type PrincipalKind uint8

const (
	PrincipalUser PrincipalKind = iota
	PrincipalGroup
)

func (k PrincipalKind) String() string {
	switch k {
	case PrincipalUser:
		return "user"
	case PrincipalGroup:
		return "group"
	default:
		return "unknown"
	}
}

// PrincipalRef is an unresolved user/group reference as it appears in a rule file.
type PrincipalRef struct {
	Kind PrincipalKind
	Name string
}

func (r PrincipalRef) String() string {
	return r.Kind.String() + ":" + r.Name
}

// Directory resolves human-readable principal names to stable PrincipalIDs.
// Implementations must fail with ErrUnresolvedPrincipal when a name matches
// zero or multiple records, or when the stored identifier is malformed.
type Directory interface {
	Resolve(ctx context.Context, kind PrincipalKind, name string) (PrincipalID, error)
}

// NodeType is the file-system type of a visited node.
type NodeType uint8

const (
	NodeFile NodeType = iota
	NodeDir
	NodeSymlink
	NodeOther
)

func (t NodeType) String() string {
	switch t {
	case NodeFile:
		return "file"
	case NodeDir:
		return "dir"
	case NodeSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// NodeInfo describes one node as yielded by the file-access layer.
type NodeInfo struct {
	Path            string
	Type            NodeType
	SystemImmutable bool
	UserImmutable   bool
}

// WalkFunc is invoked for every node of a pre-order enumeration.
type WalkFunc func(node *NodeInfo) error

// FileAccess is the OS collaborator for reading a directory tree and
// reading/writing a node's native ACL and immutability flags.
type FileAccess interface {
	// Stat returns the NodeInfo for a single path.
	Stat(path string) (*NodeInfo, error)

	// Walk enumerates every descendant of root in pre-order. The root node
	// itself is not visited. Returning SkipDir from fn on a directory skips
	// its subtree.
	Walk(root string, fn WalkFunc) error

	// ReadACL returns the node's current native ACL, or ErrNoACL if the node
	// has none.
	ReadACL(path string) (NativeACL, error)

	// WriteACL replaces the node's native ACL.
	WriteACL(path string, acl NativeACL) error

	// SetFileFlags sets the node's system- and user-immutability flags.
	SetFileFlags(path string, system, user bool) error
}
