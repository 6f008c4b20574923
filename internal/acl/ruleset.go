package acl

import (
	"context"
	"fmt"
	"path"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Access is the configured right of one rule entry.
type Access uint8

const (
	AccessReadOnly Access = iota
	AccessReadWrite
)

func (a Access) String() string {
	if a == AccessReadWrite {
		return "read-write"
	}
	return "read-only"
}

// RuleEntry grants one principal read-only or read-write rights.
type RuleEntry struct {
	PrincipalRef
	Access Access
}

// Rule is one parsed rule record: a canonical absolute path and an ordered
// entry list. The parser guarantees at most one Rule per canonical path.
type Rule struct {
	Path    string
	Entries []RuleEntry
}

// CompiledRule pairs a rule path with its compiled template.
type CompiledRule struct {
	Path     string
	Template *Template
}

// RuleSet holds every compiled rule plus the two built-in templates. It is
// built once per run and read-only afterwards.
type RuleSet struct {
	rules map[string]*CompiledRule
	admin *Template
	deny  *Template
}

// lookupWorkers bounds concurrent directory lookups during rule-set builds.
// The walk itself stays single-threaded.
const lookupWorkers = 8

// DefaultAdminRef is the administrative principal used when none is configured.
var DefaultAdminRef = PrincipalRef{Kind: PrincipalGroup, Name: "admin"}

// BuildRuleSet resolves every referenced principal exactly once through the
// directory and compiles one template per rule. Any lookup failure aborts the
// build; there is no partial-rule-set mode.
func BuildRuleSet(ctx context.Context, dir Directory, rules []*Rule, admin PrincipalRef) (*RuleSet, error) {
	if admin.Name == "" {
		admin = DefaultAdminRef
	}

	refs := map[PrincipalRef]struct{}{admin: {}}
	for _, r := range rules {
		if !path.IsAbs(r.Path) || r.Path != path.Clean(r.Path) {
			return nil, fmt.Errorf("rule path %q is not canonical", r.Path)
		}
		for _, e := range r.Entries {
			refs[e.PrincipalRef] = struct{}{}
		}
	}

	resolved, err := resolveAll(ctx, dir, refs)
	if err != nil {
		return nil, err
	}

	rs := &RuleSet{
		rules: make(map[string]*CompiledRule, len(rules)),
		admin: NewAdministrativeTemplate(resolved[admin]),
		deny:  NewGlobalDenyTemplate(),
	}

	for _, r := range rules {
		if _, dup := rs.rules[r.Path]; dup {
			return nil, fmt.Errorf("duplicate rule for path %q", r.Path)
		}
		rs.rules[r.Path] = &CompiledRule{
			Path:     r.Path,
			Template: newRuleTemplate(r, resolved),
		}
	}

	return rs, nil
}

// resolveAll resolves a deduplicated set of principal references with bounded
// concurrency, failing fast on the first error.
func resolveAll(ctx context.Context, dir Directory, refs map[PrincipalRef]struct{}) (map[PrincipalRef]PrincipalID, error) {
	var mu sync.Mutex
	resolved := make(map[PrincipalRef]PrincipalID, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupWorkers)

	for ref := range refs {
		g.Go(func() error {
			id, err := dir.Resolve(gctx, ref.Kind, ref.Name)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", ref, err)
			}
			mu.Lock()
			resolved[ref] = id
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}

// Administrative returns the built-in administrative template.
func (rs *RuleSet) Administrative() *Template {
	return rs.admin
}

// GlobalDeny returns the built-in global-deny template.
func (rs *RuleSet) GlobalDeny() *Template {
	return rs.deny
}

// Rule returns the compiled rule configured exactly at path, if any.
func (rs *RuleSet) Rule(path string) (*CompiledRule, bool) {
	r, ok := rs.rules[path]
	return r, ok
}

// Len returns the number of compiled rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}
