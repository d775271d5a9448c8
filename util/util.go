package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	. "github.com/stevegt/goadapt"
)

// CopyFile copies a file from src to dst.  dst must not exist.
func CopyFile(src, dst string) (err error) {
	defer Return(&err)
	// open src file
	srcfh, err := os.Open(src)
	Ck(err)
	defer srcfh.Close()
	// ensure dst file does not exist
	_, err = os.Stat(dst)
	if err == nil {
		return fmt.Errorf("%s already exists", dst)
	}
	// open dst file with same mode as src
	fi, err := srcfh.Stat()
	Ck(err)
	dstfh, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fi.Mode())
	Ck(err)
	defer dstfh.Close()
	// copy
	_, err = io.Copy(dstfh, srcfh)
	Ck(err)
	return
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (out string, err error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// WriteFileAtomic writes data to a temporary file next to path and
// renames it into place.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	defer Return(&err)
	tmpfn := path + ".tmp"
	fh, err := os.OpenFile(tmpfn, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	Ck(err)
	_, err = fh.Write(data)
	if err != nil {
		fh.Close()
		os.Remove(tmpfn)
		return
	}
	err = fh.Close()
	Ck(err)
	err = os.Rename(tmpfn, path)
	Ck(err)
	return
}
