package acl

// TemplateKind is the closed set of template origins. File-vs-directory
// variant selection is a pure function of the node type, never runtime type
// inspection.
type TemplateKind uint8

const (
	TemplateAdministrative TemplateKind = iota
	TemplateGlobalDeny
	TemplateFromRule
)

func (k TemplateKind) String() string {
	switch k {
	case TemplateAdministrative:
		return "administrative"
	case TemplateGlobalDeny:
		return "global-deny"
	case TemplateFromRule:
		return "rule"
	default:
		return "unknown"
	}
}

// EntrySpec is one reusable entry of a compiled template. Propagate marks
// directory-variant entries that carry file/dir-inherit flags to the node.
type EntrySpec struct {
	Tag       EntryTag
	Principal PrincipalID
	Perms     PermSet
	Propagate bool
}

// Template holds the two native-ACL variants compiled from a rule or from a
// built-in administrative/deny rule. Templates are built once per run and
// read-only afterwards.
type Template struct {
	Kind        TemplateKind
	FileEntries []EntrySpec
	DirEntries  []EntrySpec
}

// Variant selects the entry list matching the node type. Only files and
// directories have variants; other node types are never composed.
func (t *Template) Variant(nt NodeType) []EntrySpec {
	if nt == NodeDir {
		return t.DirEntries
	}
	return t.FileEntries
}

// NewAdministrativeTemplate compiles the built-in administrative rule: full
// rights for the admin principal, allow, both variants.
func NewAdministrativeTemplate(admin PrincipalID) *Template {
	return &Template{
		Kind: TemplateAdministrative,
		FileEntries: []EntrySpec{
			{Tag: TagAllow, Principal: admin, Perms: FileFullPerms},
		},
		DirEntries: []EntrySpec{
			{Tag: TagAllow, Principal: admin, Perms: DirFullPerms, Propagate: true},
		},
	}
}

// NewGlobalDenyTemplate compiles the built-in deny rule: deny execute for
// everyone, file variant only. A directory has no execute permission of its
// own, so there is deliberately no directory variant.
func NewGlobalDenyTemplate() *Template {
	return &Template{
		Kind: TemplateGlobalDeny,
		FileEntries: []EntrySpec{
			{Tag: TagDeny, Principal: EveryonePrincipal, Perms: PermExecute},
		},
	}
}

// newRuleTemplate compiles one configured rule into its file and directory
// variants. Read-only and read-write rights expand into the disjoint
// per-type permission subsets; directory entries always propagate.
func newRuleTemplate(rule *Rule, resolved map[PrincipalRef]PrincipalID) *Template {
	t := &Template{
		Kind:        TemplateFromRule,
		FileEntries: make([]EntrySpec, 0, len(rule.Entries)),
		DirEntries:  make([]EntrySpec, 0, len(rule.Entries)),
	}

	for _, re := range rule.Entries {
		principal := resolved[re.PrincipalRef]

		filePerms := FileReadPerms
		dirPerms := DirReadPerms
		if re.Access == AccessReadWrite {
			filePerms = FileWritePerms
			dirPerms = DirWritePerms
		}

		t.FileEntries = append(t.FileEntries, EntrySpec{
			Tag:       TagAllow,
			Principal: principal,
			Perms:     filePerms,
		})
		t.DirEntries = append(t.DirEntries, EntrySpec{
			Tag:       TagAllow,
			Principal: principal,
			Perms:     dirPerms,
			Propagate: true,
		})
	}

	return t
}
