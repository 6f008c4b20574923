package acl

import "strings"

// PermSet is a bitmask of permissions using the NFSv4 acemask bit layout.
// Files and directories have distinct legal vocabularies; the directory
// aliases below share bit positions with their file counterparts.
type PermSet uint32

const (
	PermReadData      PermSet = 0x00000001
	PermWriteData     PermSet = 0x00000002
	PermAppendData    PermSet = 0x00000004
	PermReadXattrs    PermSet = 0x00000008
	PermWriteXattrs   PermSet = 0x00000010
	PermExecute       PermSet = 0x00000020
	PermDeleteChild   PermSet = 0x00000040
	PermReadAttrs     PermSet = 0x00000080
	PermWriteAttrs    PermSet = 0x00000100
	PermDelete        PermSet = 0x00010000
	PermReadSecurity  PermSet = 0x00020000
	PermWriteSecurity PermSet = 0x00040000
	PermChangeOwner   PermSet = 0x00080000
)

// Directory-specific aliases.
const (
	PermListDirectory   = PermReadData
	PermAddFile         = PermWriteData
	PermAddSubdirectory = PermAppendData
	PermSearch          = PermExecute
)

// Read-only and read-write expansions per node type. Read-write is a strict
// superset of read-only.
const (
	FileReadPerms = PermReadAttrs | PermReadXattrs | PermReadData
	DirReadPerms  = PermReadAttrs | PermReadXattrs | PermListDirectory | PermSearch

	FileWritePerms = FileReadPerms | PermDelete | PermWriteAttrs | PermWriteXattrs |
		PermWriteData | PermAppendData
	DirWritePerms = DirReadPerms | PermDelete | PermWriteAttrs | PermWriteXattrs |
		PermAddFile | PermAddSubdirectory | PermDeleteChild
)

// Full administrative rights per node type.
const (
	FileFullPerms = FileWritePerms | PermExecute | PermReadSecurity | PermWriteSecurity | PermChangeOwner
	DirFullPerms  = DirWritePerms | PermReadSecurity | PermWriteSecurity | PermChangeOwner
)

// Contains reports whether every bit of p is set in s.
func (s PermSet) Contains(p PermSet) bool {
	return s&p == p
}

var permNames = []struct {
	bit  PermSet
	name string
}{
	{PermReadData, "read-data"},
	{PermWriteData, "write-data"},
	{PermAppendData, "append-data"},
	{PermReadXattrs, "read-xattrs"},
	{PermWriteXattrs, "write-xattrs"},
	{PermExecute, "execute"},
	{PermDeleteChild, "delete-child"},
	{PermReadAttrs, "read-attrs"},
	{PermWriteAttrs, "write-attrs"},
	{PermDelete, "delete"},
	{PermReadSecurity, "read-security"},
	{PermWriteSecurity, "write-security"},
	{PermChangeOwner, "change-owner"},
}

func (s PermSet) String() string {
	if s == 0 {
		return "none"
	}

	var parts []string
	for _, p := range permNames {
		if s.Contains(p.bit) {
			parts = append(parts, p.name)
		}
	}
	return strings.Join(parts, "+")
}
