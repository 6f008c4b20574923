package acl

import "bytes"

// Outcome is the per-node result of a diff-and-apply step.
type Outcome uint8

const (
	OutcomeSkipped Outcome = iota
	OutcomeApplied
	OutcomeWouldApply
	OutcomeWriteFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeApplied:
		return "applied"
	case OutcomeWouldApply:
		return "would-apply"
	case OutcomeWriteFailed:
		return "write-failed"
	default:
		return "unknown"
	}
}

// Apply compares the current and desired ACLs via their canonical byte
// encodings and writes the desired ACL when they differ. The byte comparison,
// not a semantic one, is the idempotence check.
//
// Writes are immutability-safe: a set system- or user-immutability flag is
// cleared before the write and restored after it, independent of whether the
// write succeeded. Flag and write failures are logged and never abort the
// run; the node is left with whatever ACL state currently exists.
func (e *Engine) Apply(node *NodeInfo, current, desired NativeACL) Outcome {
	if bytes.Equal(current.Encode(), desired.Encode()) {
		return OutcomeSkipped
	}

	if e.dryRun {
		e.log.Info("acl diff (dry run)", "path", node.Path, "type", node.Type,
			"current", len(current), "desired", len(desired))
		return OutcomeWouldApply
	}

	locked := node.SystemImmutable || node.UserImmutable
	if locked {
		if err := e.fs.SetFileFlags(node.Path, false, false); err != nil {
			// Best effort. The write below is attempted regardless.
			e.log.Warn("clear immutability flags", "path", node.Path, "error", err)
		}
	}

	outcome := OutcomeApplied
	if err := e.fs.WriteACL(node.Path, desired); err != nil {
		e.log.Error("acl write", "path", node.Path, "error", err)
		outcome = OutcomeWriteFailed
	}

	if locked {
		if err := e.fs.SetFileFlags(node.Path, node.SystemImmutable, node.UserImmutable); err != nil {
			e.log.Warn("restore immutability flags", "path", node.Path, "error", err)
		}
	}

	return outcome
}
