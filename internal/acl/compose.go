package acl

// Compose builds the desired ACL for one node. The fixed order is: surviving
// whitelisted entries from the current ACL, the administrative template, every
// hierarchically matching rule template outermost first, and the global-deny
// template for files. The administrative and global-deny entries are origin
// entries only at the literal top of the current walk.
//
// Compose is idempotent: running it twice with an unchanged rule set yields
// the same result, because every entry it injected on a previous run is
// stripped again before re-injection.
func (e *Engine) Compose(node *NodeInfo, current NativeACL, isBatchRoot bool) NativeACL {
	desired := make(NativeACL, 0, len(current)+4)

	// Entries of whitelisted principals survive every run untouched.
	for _, ent := range current {
		if e.whitelist.Contains(ent.Principal) {
			desired = append(desired, ent)
		}
	}

	desired = appendTemplate(desired, node.Type, e.rules.Administrative(), isBatchRoot)

	for _, rt := range e.rules.ResolveHierarchy(node.Path) {
		desired = appendTemplate(desired, node.Type, rt.Template, rt.Origin)
	}

	if node.Type == NodeFile {
		desired = appendTemplate(desired, node.Type, e.rules.GlobalDeny(), isBatchRoot)
	}

	return desired
}

// appendTemplate appends the type-matching variant of a template. Origin
// entries are marked as directly configured at the node; all others are
// marked inherited. Propagation flags come from the template spec regardless
// of origin.
func appendTemplate(dst NativeACL, nt NodeType, t *Template, origin bool) NativeACL {
	for _, spec := range t.Variant(nt) {
		dst = append(dst, Entry{
			Tag:       spec.Tag,
			Principal: spec.Principal,
			Perms:     spec.Perms,
			Flags: EntryFlags{
				Inherited:   !origin,
				FileInherit: spec.Propagate,
				DirInherit:  spec.Propagate,
			},
		})
	}
	return dst
}
