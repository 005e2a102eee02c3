package journal

import "os"

// Fdatasync flushes the data written to f to stable storage, skipping file
// metadata where the operating system allows it.
//
// An error means the written data cannot be trusted anymore; the journal
// stops accepting writes after one.
func Fdatasync(f *os.File) error {
	return fdatasync(f)
}
