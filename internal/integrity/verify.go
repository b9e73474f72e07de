// Package integrity computes and checks content hashes of model artifacts.
// Files are streamed in fixed-size blocks so memory stays bounded no matter
// how large the artifact is.
package integrity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// blockSize is the read granularity for hashing. Cancellation is observed
// between blocks.
const blockSize = 64 * 1024

// MismatchError reports a hash comparison failure. The file on disk is left
// untouched so the user can inspect or retry.
type MismatchError struct {
	Path string
	Got  string
	Want string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("integrity mismatch for %s: got %s want %s", e.Path, e.Got, e.Want)
}

// IsMismatch reports whether err is a hash mismatch (as opposed to an I/O
// failure while hashing).
func IsMismatch(err error) bool {
	_, ok := err.(*MismatchError)
	return ok
}

// Sum streams the file through SHA-256 and returns the lowercase hex digest.
func Sum(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, blockSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify compares the file's SHA-256 against expectedHex (case-insensitive).
// A nil return means the file matched. A *MismatchError means the content
// differs from the declaration; any other error is an I/O problem. Callers
// that have no declared hash should skip Verify entirely and accept the file
// on trust.
func Verify(ctx context.Context, path, expectedHex string) error {
	want := strings.ToLower(strings.TrimSpace(expectedHex))
	if want == "" {
		return fmt.Errorf("no expected hash for %s", path)
	}
	got, err := Sum(ctx, path)
	if err != nil {
		return err
	}
	if got != want {
		return &MismatchError{Path: path, Got: got, Want: want}
	}
	return nil
}
