package acl

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// fakeDirectory resolves from a static map and counts lookups per ref.
type fakeDirectory struct {
	mu    sync.Mutex
	ids   map[PrincipalRef]PrincipalID
	calls map[PrincipalRef]int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		ids:   make(map[PrincipalRef]PrincipalID),
		calls: make(map[PrincipalRef]int),
	}
}

func (d *fakeDirectory) add(kind PrincipalKind, name string) PrincipalID {
	id := uuid.New()
	d.ids[PrincipalRef{Kind: kind, Name: name}] = id
	return id
}

func (d *fakeDirectory) Resolve(_ context.Context, kind PrincipalKind, name string) (PrincipalID, error) {
	ref := PrincipalRef{Kind: kind, Name: name}
	d.mu.Lock()
	d.calls[ref]++
	id, ok := d.ids[ref]
	d.mu.Unlock()
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: no match for %s", ErrUnresolvedPrincipal, ref)
	}
	return id, nil
}

type flagCall struct {
	path   string
	system bool
	user   bool
}

// fakeFS is an in-memory FileAccess. Walk yields descendants in lexicographic
// order, which is pre-order for the slash-separated test trees used here.
type fakeFS struct {
	nodes map[string]*NodeInfo
	acls  map[string]NativeACL

	readErr  map[string]error
	writeErr map[string]error
	flagErr  map[string]error

	writes    []string
	flagCalls []flagCall
}

func newFakeFS() *fakeFS {
	return &fakeFS{
		nodes:    make(map[string]*NodeInfo),
		acls:     make(map[string]NativeACL),
		readErr:  make(map[string]error),
		writeErr: make(map[string]error),
		flagErr:  make(map[string]error),
	}
}

func (f *fakeFS) addNode(path string, nt NodeType) *NodeInfo {
	n := &NodeInfo{Path: path, Type: nt}
	f.nodes[path] = n
	return n
}

func (f *fakeFS) Stat(path string) (*NodeInfo, error) {
	n, ok := f.nodes[path]
	if !ok {
		return nil, fmt.Errorf("stat %q: not found", path)
	}
	clone := *n
	return &clone, nil
}

func (f *fakeFS) Walk(root string, fn WalkFunc) error {
	paths := make([]string, 0, len(f.nodes))
	for p := range f.nodes {
		if strings.HasPrefix(p, root+"/") {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	var skipped string
	for _, p := range paths {
		if skipped != "" && strings.HasPrefix(p, skipped+"/") {
			continue
		}
		info, _ := f.Stat(p)
		if err := fn(info); err != nil {
			if err == SkipDir {
				skipped = p
				continue
			}
			return err
		}
	}
	return nil
}

func (f *fakeFS) ReadACL(path string) (NativeACL, error) {
	if err := f.readErr[path]; err != nil {
		return nil, err
	}
	a, ok := f.acls[path]
	if !ok {
		return nil, ErrNoACL
	}
	// decode(encode) mimics the native round trip through the acl store
	return DecodeACL(a.Encode())
}

func (f *fakeFS) WriteACL(path string, a NativeACL) error {
	f.writes = append(f.writes, path)
	if err := f.writeErr[path]; err != nil {
		return err
	}
	f.acls[path] = a
	return nil
}

func (f *fakeFS) SetFileFlags(path string, system, user bool) error {
	f.flagCalls = append(f.flagCalls, flagCall{path: path, system: system, user: user})
	if err := f.flagErr[path]; err != nil {
		return err
	}
	if n, ok := f.nodes[path]; ok {
		n.SystemImmutable = system
		n.UserImmutable = user
	}
	return nil
}
