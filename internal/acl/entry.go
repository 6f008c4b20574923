package acl

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// EntryTag marks an ACL entry as granting or denying its permission set.
type EntryTag uint8

const (
	TagAllow EntryTag = iota
	TagDeny
)

func (t EntryTag) String() string {
	switch t {
	case TagAllow:
		return "allow"
	case TagDeny:
		return "deny"
	default:
		return "unknown"
	}
}

// EntryFlags are the per-entry inheritance flags. Inherited marks entries
// copied down from an ancestor's rule during the walk; FileInherit and
// DirInherit are OS-level propagation metadata for future-created children.
type EntryFlags struct {
	Inherited   bool
	FileInherit bool
	DirInherit  bool
}

// Entry is one allow/deny entry of a node's native ACL.
type Entry struct {
	Tag       EntryTag
	Principal PrincipalID
	Perms     PermSet
	Flags     EntryFlags
}

func (e Entry) String() string {
	var flags []string
	if e.Flags.Inherited {
		flags = append(flags, "inherited")
	}
	if e.Flags.FileInherit {
		flags = append(flags, "file_inherit")
	}
	if e.Flags.DirInherit {
		flags = append(flags, "dir_inherit")
	}
	return fmt.Sprintf("%s %s %s [%s]", e.Tag, e.Principal, e.Perms, strings.Join(flags, ","))
}

// NativeACL is the ordered entry list of one file-system node. It is owned
// exclusively by that node during a single compose-and-apply cycle and is
// never retained across nodes.
type NativeACL []Entry

// Wire values of the canonical byte encoding. The layout matches the
// NFSv4 xattr format: u32 entry count, then per entry u32 type, u32 flags,
// u32 mask and a length-prefixed, 4-byte aligned who string (the principal
// GUID in its canonical text form).
const (
	wireTagAllow uint32 = 0
	wireTagDeny  uint32 = 1

	wireFlagFileInherit uint32 = 0x00000001
	wireFlagDirInherit  uint32 = 0x00000002
	wireFlagInherited   uint32 = 0x00000080
)

func pad4(n int) int {
	return (n + 3) &^ 3
}

// Encode returns the canonical byte encoding of the ACL. Two ACLs are treated
// as equal exactly when their encodings are byte-identical.
func (a NativeACL) Encode() []byte {
	size := 4
	for range a {
		size += 16 + pad4(36) // fixed header + uuid string
	}

	buf := make([]byte, 0, size)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(a)))

	for _, e := range a {
		tag := wireTagAllow
		if e.Tag == TagDeny {
			tag = wireTagDeny
		}

		var flags uint32
		if e.Flags.FileInherit {
			flags |= wireFlagFileInherit
		}
		if e.Flags.DirInherit {
			flags |= wireFlagDirInherit
		}
		if e.Flags.Inherited {
			flags |= wireFlagInherited
		}

		who := e.Principal.String()
		buf = binary.BigEndian.AppendUint32(buf, tag)
		buf = binary.BigEndian.AppendUint32(buf, flags)
		buf = binary.BigEndian.AppendUint32(buf, uint32(e.Perms))
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(who)))
		buf = append(buf, who...)
		for i := len(who); i < pad4(len(who)); i++ {
			buf = append(buf, 0)
		}
	}

	return buf
}

// DecodeACL parses the canonical byte encoding back into a NativeACL.
// An entry with an unrecognized tag value fails with ErrUnknownEntryTag;
// any structural problem fails with ErrBadEncoding. Both are fatal to a run.
func DecodeACL(data []byte) (NativeACL, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: short header", ErrBadEncoding)
	}

	count := binary.BigEndian.Uint32(data)
	off := 4

	// The count field is untrusted input; every entry needs at least 16
	// bytes of payload, so cap the preallocation by what the data can hold.
	out := make(NativeACL, 0, min(int(count), len(data)/16))
	for i := uint32(0); i < count; i++ {
		if len(data)-off < 16 {
			return nil, fmt.Errorf("%w: truncated entry %d", ErrBadEncoding, i)
		}

		tag := binary.BigEndian.Uint32(data[off:])
		flags := binary.BigEndian.Uint32(data[off+4:])
		mask := binary.BigEndian.Uint32(data[off+8:])
		whoLen := int(binary.BigEndian.Uint32(data[off+12:]))
		off += 16

		if whoLen <= 0 || len(data)-off < pad4(whoLen) {
			return nil, fmt.Errorf("%w: truncated who in entry %d", ErrBadEncoding, i)
		}

		var e Entry
		switch tag {
		case wireTagAllow:
			e.Tag = TagAllow
		case wireTagDeny:
			e.Tag = TagDeny
		default:
			return nil, fmt.Errorf("%w: tag %#x in entry %d", ErrUnknownEntryTag, tag, i)
		}

		principal, err := uuid.Parse(string(data[off : off+whoLen]))
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d principal: %v", ErrBadEncoding, i, err)
		}
		off += pad4(whoLen)

		e.Principal = principal
		e.Perms = PermSet(mask)
		e.Flags = EntryFlags{
			Inherited:   flags&wireFlagInherited != 0,
			FileInherit: flags&wireFlagFileInherit != 0,
			DirInherit:  flags&wireFlagDirInherit != 0,
		}
		out = append(out, e)
	}

	if off != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadEncoding, len(data)-off)
	}

	return out, nil
}
