package acl

import "strings"

// ResolvedTemplate is one rule template that applies to a node, with Origin
// marking whether the rule is configured at the node itself.
type ResolvedTemplate struct {
	Path     string
	Template *Template
	Origin   bool
}

// ResolveHierarchy walks the path from the filesystem root down to nodePath
// inclusive and returns every rule configured at a prefix, outermost first.
// Rules do not shadow one another: a node inherits every ancestor's rule in
// addition to its own, applied in ancestor-first order.
func (rs *RuleSet) ResolveHierarchy(nodePath string) []ResolvedTemplate {
	if len(rs.rules) == 0 {
		return nil
	}

	var out []ResolvedTemplate

	appendRule := func(prefix string) {
		if r, ok := rs.rules[prefix]; ok {
			out = append(out, ResolvedTemplate{
				Path:     prefix,
				Template: r.Template,
				Origin:   prefix == nodePath,
			})
		}
	}

	appendRule("/")
	if nodePath == "/" {
		return out
	}

	prefix := ""
	for _, part := range strings.Split(strings.TrimPrefix(nodePath, "/"), "/") {
		prefix += "/" + part
		appendRule(prefix)
	}

	return out
}
