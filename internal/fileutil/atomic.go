// Package fileutil provides file helpers shared by the batch driver.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// OwnerReadWrite is used for plaintext written during decryption.
	OwnerReadWrite os.FileMode = 0o600
	// WorldReadable is used for encrypted payloads, which are meant to be shipped as static assets.
	WorldReadable os.FileMode = 0o644

	dirPerm os.FileMode = 0o755
)

// TempContext holds state for an atomic file write.
type TempContext struct {
	TmpFile *os.File
	TmpName string
	OutPath string
}

// NewTempContext creates the destination directory if needed and a temp file beside outPath.
// Caller must defer CleanupOnError.
func NewTempContext(outPath string) (*TempContext, error) {
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating output directory %q: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}

	return &TempContext{
		TmpFile: tmpFile,
		TmpName: tmpFile.Name(),
		OutPath: outPath,
	}, nil
}

// CleanupOnError closes the temp file and removes it if the write failed.
func (tc *TempContext) CleanupOnError(errp *error) {
	tc.TmpFile.Close() //nolint:gosec // best-effort cleanup

	if *errp != nil {
		os.Remove(tc.TmpName) //nolint:gosec // best-effort cleanup
	}
}

// Commit sets perm on the temp file, closes it, and renames it over OutPath.
func (tc *TempContext) Commit(perm os.FileMode) error {
	if err := os.Chmod(tc.TmpName, perm); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := tc.TmpFile.Close(); err != nil {
		return fmt.Errorf("closing temporary file: %w", err)
	}

	if err := os.Rename(tc.TmpName, tc.OutPath); err != nil {
		return fmt.Errorf("renaming output file: %w", err)
	}

	return nil
}

// WriteFile atomically replaces path with data, so a reader never sees a partial file.
// The returned size is the number of bytes written.
func WriteFile(path string, data []byte, perm os.FileMode) (size int64, err error) {
	tc, err := NewTempContext(path)
	if err != nil {
		return 0, fmt.Errorf("preparing atomic write: %w", err)
	}

	defer tc.CleanupOnError(&err)

	n, err := tc.TmpFile.Write(data)
	if err != nil {
		return 0, fmt.Errorf("writing %q: %w", path, err)
	}

	if err = tc.Commit(perm); err != nil {
		return 0, err
	}

	return int64(n), nil
}
