// Package export writes finished reports to disk as indented JSON, with an
// optional BLAKE2b-256 digest sidecar for evidence integrity checks.
package export

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HerbHall/hostprobe/internal/report"
	"golang.org/x/crypto/blake2b"
)

// DigestExt is appended to the report path to name the digest sidecar.
const DigestExt = ".b2sum"

// ErrDigestMismatch is returned by Verify when the file no longer matches
// its recorded digest.
var ErrDigestMismatch = errors.New("report digest mismatch")

// Encode renders r as JSON indented with four spaces.
func Encode(r *report.Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return buf.Bytes(), nil
}

// Digest returns the hex BLAKE2b-256 digest of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Result describes what WriteJSON wrote.
type Result struct {
	Path       string
	DigestPath string // empty when no sidecar was written
	Digest     string
	Bytes      int
}

// WriteJSON writes r to path, creating parent directories as needed. With
// withDigest set it also writes "<digest>  <file name>\n" to path+DigestExt,
// the format b2sum -l 256 checks.
func WriteJSON(path string, r *report.Report, withDigest bool) (Result, error) {
	data, err := Encode(r)
	if err != nil {
		return Result{}, err
	}
	if err := EnsureDir(path); err != nil {
		return Result{}, err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return Result{}, err
	}

	res := Result{Path: path, Digest: Digest(data), Bytes: len(data)}
	if withDigest {
		res.DigestPath = path + DigestExt
		line := res.Digest + "  " + filepath.Base(path) + "\n"
		if err := writeFileAtomic(res.DigestPath, []byte(line)); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Verify recomputes the digest of path and compares it with its sidecar.
func Verify(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}
	side, err := os.ReadFile(path + DigestExt)
	if err != nil {
		return fmt.Errorf("read digest: %w", err)
	}
	fields := strings.Fields(string(side))
	if len(fields) == 0 {
		return fmt.Errorf("%w: empty digest file", ErrDigestMismatch)
	}
	if got := Digest(data); got != fields[0] {
		return fmt.Errorf("%w: recorded %s, computed %s", ErrDigestMismatch, fields[0], got)
	}
	return nil
}

// EnsureDir creates the parent directory of path if it does not exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output directory %q: %w", dir, err)
	}
	return nil
}

// writeFileAtomic writes via a temp file in the same directory and renames
// it into place so a reader never sees a half-written report.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %q: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o640); err != nil {
		return fmt.Errorf("chmod %q: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %q: %w", path, err)
	}
	return nil
}
