//go:build !windows && !plan9

package local

import (
	"errors"
	"syscall"
)

func isNoSpace(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.ENOSPC
}
