//go:build !linux && !openbsd

package journal

import "os"

func fdatasync(f *os.File) error {
	return f.Sync()
}
