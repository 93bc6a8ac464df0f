//go:build linux

package filequeue

import (
	"os"

	"golang.org/x/sys/unix"
)

// fdatasync flushes file data without forcing a metadata sync.
func fdatasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
