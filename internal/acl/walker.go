package acl

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
)

var ErrTargetNotAbsolute = errors.New("target path is not absolute")

// NodeResult records the outcome of one visited node.
type NodeResult struct {
	Path    string  `json:"path"`
	Type    string  `json:"type"`
	Outcome Outcome `json:"-"`
	Result  string  `json:"result"`
}

// RunStats aggregates one engine run.
type RunStats struct {
	Started     time.Time     `json:"started"`
	Took        time.Duration `json:"took"`
	BatchRoots  []string      `json:"batchRoots"`
	Visited     int           `json:"visited"`
	Applied     int           `json:"applied"`
	Skipped     int           `json:"skipped"`
	WouldApply  int           `json:"wouldApply"`
	WriteFailed int           `json:"writeFailed"`
	Ignored     int           `json:"ignored"`
	Results     []NodeResult  `json:"nodes"`
}

func (s *RunStats) record(node *NodeInfo, outcome Outcome) {
	s.Visited++
	switch outcome {
	case OutcomeApplied:
		s.Applied++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeWouldApply:
		s.WouldApply++
	case OutcomeWriteFailed:
		s.WriteFailed++
	}
	s.Results = append(s.Results, NodeResult{
		Path:    node.Path,
		Type:    node.Type.String(),
		Outcome: outcome,
		Result:  outcome.String(),
	})
}

// CanonicalTarget validates and canonicalizes one configured target path:
// absolute, no ".." components, no trailing slash.
func CanonicalTarget(p string) (string, error) {
	if !path.IsAbs(p) {
		return "", fmt.Errorf("%w: %q", ErrTargetNotAbsolute, p)
	}
	return path.Clean(p), nil
}

// Run applies the rule set to every configured target subtree. Targets are
// canonicalized, sorted shallow-to-deep (string length is a valid proxy for
// canonical absolute paths), and a target that is a strict descendant of an
// already-treated one is skipped entirely. Re-walking a nested target as its
// own batch root would re-mark its administrative and global-deny entries as
// origin, corrupting the inherited-flag invariant established by the
// ancestor's walk.
func (e *Engine) Run(ctx context.Context, targets []string) (*RunStats, error) {
	stats := &RunStats{Started: time.Now()}
	defer func() { stats.Took = time.Since(stats.Started) }()

	canonical := make([]string, 0, len(targets))
	for _, t := range targets {
		c, err := CanonicalTarget(t)
		if err != nil {
			return stats, err
		}
		canonical = append(canonical, c)
	}

	sort.Slice(canonical, func(i, j int) bool {
		if len(canonical[i]) != len(canonical[j]) {
			return len(canonical[i]) < len(canonical[j])
		}
		return canonical[i] < canonical[j]
	})

	treated := make([]string, 0, len(canonical))
	for _, target := range canonical {
		if covered, by := coveredBy(target, treated); covered {
			e.log.Info("subtree already covered", "path", target, "by", by)
			continue
		}
		treated = append(treated, target)
		stats.BatchRoots = append(stats.BatchRoots, target)

		if err := e.runBatch(ctx, target, stats); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// coveredBy reports whether target is equal to or a strict descendant of an
// already-treated path.
func coveredBy(target string, treated []string) (bool, string) {
	for _, t := range treated {
		if target == t || strings.HasPrefix(target, t+"/") {
			return true, t
		}
	}
	return false, ""
}

// runBatch walks one batch root: the root node itself first, then every
// descendant in pre-order.
func (e *Engine) runBatch(ctx context.Context, root string, stats *RunStats) error {
	e.log.Info("batch root", "path", root, "dryRun", e.dryRun)

	if err := ctx.Err(); err != nil {
		return err
	}

	rootInfo, err := e.fs.Stat(root)
	if err != nil {
		return fmt.Errorf("stat batch root %q: %w", root, err)
	}

	if err := e.visit(rootInfo, true, stats); err != nil {
		return err
	}

	return e.fs.Walk(root, func(node *NodeInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if e.ignored(root, node) {
			stats.Ignored++
			e.log.Debug("node ignored", "path", node.Path)
			if node.Type == NodeDir {
				return SkipDir
			}
			return nil
		}

		return e.visit(node, false, stats)
	})
}

// visit composes and applies the ACL for a single node. Node types other
// than file and directory are skipped with no mutation. A failure to read the
// node's current ACL (other than its absence) aborts the run: the desired
// state cannot be trusted without it.
func (e *Engine) visit(node *NodeInfo, isBatchRoot bool, stats *RunStats) error {
	if node.Type != NodeFile && node.Type != NodeDir {
		e.log.Debug("node type skipped", "path", node.Path, "type", node.Type)
		return nil
	}

	current, err := e.fs.ReadACL(node.Path)
	if err != nil {
		if !errors.Is(err, ErrNoACL) {
			return fmt.Errorf("read acl %q: %w", node.Path, err)
		}
		current = nil
	}

	desired := e.Compose(node, current, isBatchRoot)
	outcome := e.Apply(node, current, desired)
	stats.record(node, outcome)

	if outcome != OutcomeSkipped {
		e.log.Debug("node visited", "path", node.Path, "type", node.Type, "outcome", outcome)
	}
	return nil
}

func (e *Engine) ignored(root string, node *NodeInfo) bool {
	if e.ignore == nil {
		return false
	}
	rel := strings.TrimPrefix(node.Path, root+"/")
	// directory-only patterns ("b/") match paths with a trailing slash
	if node.Type == NodeDir {
		rel += "/"
	}
	return e.ignore.MatchesPath(rel)
}
