package directory

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/permtree/permtree/internal/acl"
)

// DefaultCacheSize bounds the memoized lookups of a Cached directory.
const DefaultCacheSize = 4096

// Cached memoizes successful lookups of another Directory. Failed lookups
// are not cached; a rule-set build fails fast on the first of those anyway.
type Cached struct {
	next  acl.Directory
	cache *lru.Cache[acl.PrincipalRef, acl.PrincipalID]
}

// NewCached wraps next with an LRU of the given size (DefaultCacheSize if
// size <= 0).
func NewCached(next acl.Directory, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[acl.PrincipalRef, acl.PrincipalID](size)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) Resolve(ctx context.Context, kind acl.PrincipalKind, name string) (acl.PrincipalID, error) {
	ref := acl.PrincipalRef{Kind: kind, Name: name}
	if id, ok := c.cache.Get(ref); ok {
		return id, nil
	}

	id, err := c.next.Resolve(ctx, kind, name)
	if err != nil {
		return id, err
	}

	c.cache.Add(ref, id)
	return id, nil
}

var _ acl.Directory = (*Cached)(nil)
