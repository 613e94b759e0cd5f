// Package fingerprint decides what is outdated. It hashes commands,
// dependency sets and outputs, compares them against the stored metadata
// per the trigger policy, and persists fresh records as nodes complete.
package fingerprint

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
)

// HashBytes returns the xxhash digest of the data, hex encoded.
func HashBytes(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// HashString returns the xxhash digest of the string, hex encoded.
func HashString(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

// HashFile hashes the file contents in a streaming fashion. A file that
// does not exist is reported via missing, not an error.
func HashFile(path string) (hash string, missing bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", true, nil
		}
		return "", false, zerr.Wrap(err, "failed to open file for hashing")
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", false, zerr.Wrap(err, "failed to hash file")
	}
	return fmt.Sprintf("%016x", h.Sum64()), false, nil
}

// DepDigest hashes the mapping from dependency name to content hash.
// Names are sorted and entries NUL-separated so the digest is stable and
// unambiguous across runs.
func DepDigest(deps map[string]string) string {
	if len(deps) == 0 {
		return ""
	}
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	h := xxhash.New()
	for _, name := range names {
		h.WriteString(name)
		h.Write([]byte{0})
		h.WriteString(deps[name])
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
