// Package fileutil copies caption documents and other small artifacts with
// integrity checks.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// BackupSuffix is appended to a file's path to name its backup.
const BackupSuffix = ".bak"

// Backup copies path to path+BackupSuffix, replacing an older backup, and
// returns the backup path. A missing source is not an error; the returned
// path is then empty.
func Backup(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	dst := path + BackupSuffix
	if err := CopyVerified(path, dst); err != nil {
		return "", fmt.Errorf("back up %s: %w", path, err)
	}
	return dst, nil
}

// CopyVerified streams src to dst and compares size and SHA-256 of both
// sides. dst keeps src's permission bits and is removed on mismatch.
func CopyVerified(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHash := sha256.New()
	dstHash := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, dstHash), io.TeeReader(in, srcHash))
	if err != nil {
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}

	if written != info.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
	}
	if !bytes.Equal(srcHash.Sum(nil), dstHash.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: %s changed during copy", src)
	}
	return nil
}
