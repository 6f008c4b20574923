// Package rulefile parses the line-oriented access rule format:
//
//	([u|g]:[r|rw]:principal-name:)* :canonical-or-relative-path
//
// One rule per line. Blank lines and lines starting with '#' are skipped.
// Later lines for the same resolved path replace earlier ones; the engine
// relies on this collapsing as a precondition.
package rulefile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/permtree/permtree/internal/acl"
)

// Parse reads rules from r. Relative rule paths are resolved against base,
// which must be an absolute directory path.
func Parse(r io.Reader, base string) ([]*acl.Rule, error) {
	scanner := bufio.NewScanner(r)

	var order []string
	byPath := make(map[string]*acl.Rule)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rule, err := parseLine(line, base)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		if _, seen := byPath[rule.Path]; !seen {
			order = append(order, rule.Path)
		}
		byPath[rule.Path] = rule
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}

	rules := make([]*acl.Rule, 0, len(order))
	for _, p := range order {
		rules = append(rules, byPath[p])
	}
	return rules, nil
}

// ParseFile parses the rule file at rulePath; relative rule paths resolve
// against the file's directory.
func ParseFile(rulePath string) ([]*acl.Rule, error) {
	fd, err := os.Open(rulePath)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	base, err := filepath.Abs(filepath.Dir(rulePath))
	if err != nil {
		return nil, err
	}
	return Parse(fd, filepath.ToSlash(base))
}

func parseLine(line, base string) (*acl.Rule, error) {
	tokens := strings.Split(line, ":")

	var entries []acl.RuleEntry
	i := 0
	for i < len(tokens) && tokens[i] != "" {
		if len(tokens)-i < 3 {
			return nil, fmt.Errorf("incomplete entry near %q", strings.Join(tokens[i:], ":"))
		}

		kind, err := parseKind(tokens[i])
		if err != nil {
			return nil, err
		}
		access, err := parseAccess(tokens[i+1])
		if err != nil {
			return nil, err
		}
		name := tokens[i+2]
		if name == "" {
			return nil, fmt.Errorf("empty principal name")
		}

		entries = append(entries, acl.RuleEntry{
			PrincipalRef: acl.PrincipalRef{Kind: kind, Name: name},
			Access:       access,
		})
		i += 3
	}

	if i >= len(tokens) {
		return nil, fmt.Errorf("missing path separator")
	}

	// tokens[i] is the empty separator; the remainder is the path
	rulePath := strings.Join(tokens[i+1:], ":")
	if rulePath == "" {
		return nil, fmt.Errorf("empty rule path")
	}

	if !path.IsAbs(rulePath) {
		rulePath = path.Join(base, rulePath)
	}
	rulePath = path.Clean(rulePath)

	return &acl.Rule{Path: rulePath, Entries: entries}, nil
}

func parseKind(s string) (acl.PrincipalKind, error) {
	switch s {
	case "u":
		return acl.PrincipalUser, nil
	case "g":
		return acl.PrincipalGroup, nil
	default:
		return 0, fmt.Errorf("unknown principal kind %q", s)
	}
}

func parseAccess(s string) (acl.Access, error) {
	switch s {
	case "r":
		return acl.AccessReadOnly, nil
	case "rw":
		return acl.AccessReadWrite, nil
	default:
		return 0, fmt.Errorf("unknown access %q", s)
	}
}
