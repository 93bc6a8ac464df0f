//go:build !linux

package filequeue

import "os"

func fdatasync(f *os.File) error {
	return f.Sync()
}
