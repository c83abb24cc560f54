package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrTooLarge is returned when a stream exceeds the write limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// Written describes a file produced by WriteStream.
type Written struct {
	Path   string
	Size   int64
	SHA256 string
}

// WriteStream copies r into dst through a sibling ".partial" file, renaming
// it into place only after the copy completes. A limit <= 0 disables the size
// check. The partial file is removed on every failure.
func WriteStream(dst string, r io.Reader, limit int64) (Written, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Written{}, fmt.Errorf("create parent: %w", err)
	}
	partial := dst + ".partial"
	out, err := os.OpenFile(partial, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Written{}, err
	}
	cleanup := func() {
		_ = out.Close()
		_ = os.Remove(partial)
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, hasher), src)
	if err != nil {
		cleanup()
		return Written{}, err
	}
	if limit > 0 && written > limit {
		cleanup()
		return Written{}, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(partial)
		return Written{}, err
	}
	if err := os.Rename(partial, dst); err != nil {
		_ = os.Remove(partial)
		return Written{}, err
	}
	return Written{Path: dst, Size: written, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// CopyFile streams src to dst through WriteStream.
func CopyFile(src, dst string) (Written, error) {
	in, err := os.Open(src)
	if err != nil {
		return Written{}, err
	}
	defer in.Close()
	return WriteStream(dst, in, 0)
}

// SafeName reduces a client-supplied file name to its base name with path
// separators and control characters replaced. Empty results become "upload".
func SafeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		base = ""
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case r == '/' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			return '_'
		}
		return r
	}, base)
	cleaned = strings.TrimLeft(cleaned, ".")
	if cleaned == "" {
		return "upload"
	}
	return cleaned
}
