//go:build unix

package services

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func isCrossDevice(err error) bool {
	if errors.Is(err, unix.EXDEV) {
		return true
	}
	var linkErr *os.LinkError
	return errors.As(err, &linkErr) && errors.Is(linkErr.Err, unix.EXDEV)
}
