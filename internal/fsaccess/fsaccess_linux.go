//go:build linux

package fsaccess

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/permtree/permtree/internal/acl"
)

// On Linux the system-immutability flag maps to FS_IMMUTABLE_FL and the
// user-immutability flag to FS_APPEND_FL, the user-settable write lock.
// The values come from linux/fs.h; x/sys/unix exports the FS_IOC ioctls
// but not the flag bits themselves.
const (
	systemImmutableFlag = 0x00000010 // FS_IMMUTABLE_FL
	userImmutableFlag   = 0x00000020 // FS_APPEND_FL
)

func getXattr(path, attr string) ([]byte, error) {
	for {
		size, err := unix.Getxattr(path, attr, nil)
		if err != nil {
			return nil, xattrError("getxattr", path, err)
		}
		if size == 0 {
			return nil, nil
		}

		buf := make([]byte, size)
		n, err := unix.Getxattr(path, attr, buf)
		if errors.Is(err, unix.ERANGE) {
			// attribute grew between the two calls
			continue
		}
		if err != nil {
			return nil, xattrError("getxattr", path, err)
		}
		return buf[:n], nil
	}
}

func setXattr(path, attr string, data []byte) error {
	if err := unix.Setxattr(path, attr, data, 0); err != nil {
		return fmt.Errorf("setxattr %q: %w", path, err)
	}
	return nil
}

func xattrError(op, path string, err error) error {
	if errors.Is(err, unix.ENODATA) {
		return fmt.Errorf("%s %q: %w", op, path, acl.ErrNoACL)
	}
	return fmt.Errorf("%s %q: %w", op, path, err)
}

func openNode(path string) (int, error) {
	return unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC|unix.O_NOFOLLOW, 0)
}

func getFileFlags(path string) (system, user bool, err error) {
	fd, err := openNode(path)
	if err != nil {
		return false, false, fmt.Errorf("open %q: %w", path, err)
	}
	defer unix.Close(fd)

	flags, err := unix.IoctlGetInt(fd, unix.FS_IOC_GETFLAGS)
	if err != nil {
		// filesystems without attribute flags have no immutable nodes
		if unsupportedIoctl(err) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("get flags %q: %w", path, err)
	}

	return flags&systemImmutableFlag != 0, flags&userImmutableFlag != 0, nil
}

func setFileFlags(path string, system, user bool) error {
	fd, err := openNode(path)
	if err != nil {
		return fmt.Errorf("open %q: %w", path, err)
	}
	defer unix.Close(fd)

	flags, err := unix.IoctlGetInt(fd, unix.FS_IOC_GETFLAGS)
	if err != nil {
		return fmt.Errorf("get flags %q: %w", path, err)
	}

	flags &^= systemImmutableFlag | userImmutableFlag
	if system {
		flags |= systemImmutableFlag
	}
	if user {
		flags |= userImmutableFlag
	}

	if err := unix.IoctlSetPointerInt(fd, unix.FS_IOC_SETFLAGS, flags); err != nil {
		return fmt.Errorf("set flags %q: %w", path, err)
	}
	return nil
}

func unsupportedIoctl(err error) bool {
	return errors.Is(err, unix.ENOTTY) ||
		errors.Is(err, unix.EOPNOTSUPP) ||
		errors.Is(err, unix.ENOSYS) ||
		errors.Is(err, unix.EINVAL)
}
