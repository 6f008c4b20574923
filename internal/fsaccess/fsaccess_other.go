//go:build !linux

package fsaccess

import "errors"

// Native ACL and flag storage is currently implemented for Linux only.

func getXattr(path, attr string) ([]byte, error) {
	return nil, errors.ErrUnsupported
}

func setXattr(path, attr string, data []byte) error {
	return errors.ErrUnsupported
}

func getFileFlags(path string) (system, user bool, err error) {
	return false, false, nil
}

func setFileFlags(path string, system, user bool) error {
	return errors.ErrUnsupported
}
