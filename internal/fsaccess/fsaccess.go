// Package fsaccess is the production FileAccess layer: it enumerates
// directory trees, stores native ACLs in an extended attribute using the
// canonical byte encoding, and manages per-node immutability flags.
package fsaccess

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/permtree/permtree/internal/acl"
)

// DefaultACLAttr is the extended attribute holding a node's native ACL.
const DefaultACLAttr = "system.nfs4_acl"

// FS implements acl.FileAccess against the local filesystem.
type FS struct {
	attr string
}

// New creates an FS storing ACLs under the given extended attribute name
// (DefaultACLAttr if empty).
func New(attr string) *FS {
	if attr == "" {
		attr = DefaultACLAttr
	}
	return &FS{attr: attr}
}

func (f *FS) Stat(path string) (*acl.NodeInfo, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	return f.nodeInfo(path, info.Mode().Type())
}

func (f *FS) Walk(root string, fn acl.WalkFunc) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("enumerate %q: %w", path, err)
		}
		if path == root {
			return nil
		}

		node, err := f.nodeInfo(path, d.Type())
		if err != nil {
			return fmt.Errorf("enumerate %q: %w", path, err)
		}

		if err := fn(node); err != nil {
			if err == acl.SkipDir && d.IsDir() {
				return fs.SkipDir
			}
			return err
		}
		return nil
	})
}

func (f *FS) nodeInfo(path string, mode fs.FileMode) (*acl.NodeInfo, error) {
	node := &acl.NodeInfo{
		Path: filepath.ToSlash(path),
		Type: nodeType(mode),
	}

	// Immutability flags exist only for files and directories; other node
	// types are skipped by the walker without ever being composed.
	if node.Type == acl.NodeFile || node.Type == acl.NodeDir {
		system, user, err := getFileFlags(path)
		if err != nil {
			return nil, err
		}
		node.SystemImmutable = system
		node.UserImmutable = user
	}

	return node, nil
}

func nodeType(mode fs.FileMode) acl.NodeType {
	switch {
	case mode.IsRegular():
		return acl.NodeFile
	case mode.IsDir():
		return acl.NodeDir
	case mode&fs.ModeSymlink != 0:
		return acl.NodeSymlink
	default:
		return acl.NodeOther
	}
}

func (f *FS) ReadACL(path string) (acl.NativeACL, error) {
	data, err := getXattr(path, f.attr)
	if err != nil {
		return nil, err
	}
	return acl.DecodeACL(data)
}

func (f *FS) WriteACL(path string, a acl.NativeACL) error {
	return setXattr(path, f.attr, a.Encode())
}

func (f *FS) SetFileFlags(path string, system, user bool) error {
	return setFileFlags(path, system, user)
}

var _ acl.FileAccess = (*FS)(nil)
