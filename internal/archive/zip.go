// Package archive assembles finished segment files into a single ZIP.
package archive

import (
	"archive/zip"
	"compress/flate"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ArchiveError reports a failure while building the ZIP. If it surfaces after
// response headers were sent, the caller can only abort the connection.
type ArchiveError struct {
	Entry string
	Err   error
}

func (e *ArchiveError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("archive: adding %s: %v", e.Entry, e.Err)
	}
	return fmt.Sprintf("archive: %v", e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// WriteZip streams the given files into w as a ZIP with maximum compression.
// Entries are named by base filename only, so the archive is a flat bag of
// clips. The writer is finalized exactly once, after the last file.
func WriteZip(w io.Writer, paths []string) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, p := range paths {
		if err := addFile(zw, p); err != nil {
			zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return &ArchiveError{Err: err}
	}
	return nil
}

func addFile(zw *zip.Writer, path string) error {
	name := filepath.Base(path)

	f, err := os.Open(path)
	if err != nil {
		return &ArchiveError{Entry: name, Err: err}
	}
	defer f.Close()

	entry, err := zw.Create(name)
	if err != nil {
		return &ArchiveError{Entry: name, Err: err}
	}

	if _, err := io.Copy(entry, f); err != nil {
		return &ArchiveError{Entry: name, Err: err}
	}
	return nil
}
