// Package fsys is the filesystem seam used by cache slots and the clearing
// tool. [Real] is the production implementation; tests substitute their own
// to inject failures.
package fsys

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// FS defines the filesystem operations the cache needs.
type FS interface {
	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// Find walks root and returns the paths accepted by match, in lexical
	// order. Directories that match are not descended into unless
	// recurseOnMatch is set. A missing root yields no paths.
	Find(root string, match MatchFunc, recurseOnMatch bool) ([]string, error)

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFileAtomic replaces path with data through a temp file and a
	// rename, creating missing parent directories. Readers never observe a
	// partially written file.
	WriteFileAtomic(path string, data []byte) error

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error
}

// MatchFunc selects entries during [FS.Find].
type MatchFunc func(path string, d fs.DirEntry) bool

// RegularFiles matches every regular file.
func RegularFiles(_ string, d fs.DirEntry) bool {
	return d.Type().IsRegular()
}

// EnvRoot overrides the default cache root.
const EnvRoot = "PERSISTCACHE_DIR"

// ErrNoRoot is returned when no cache root can be resolved.
var ErrNoRoot = errors.New("fsys: cannot resolve cache root")

// DefaultRoot resolves the cache root.
// Precedence:
//  1. PERSISTCACHE_DIR, if set and non-empty
//  2. os.UserCacheDir()/persistcache
func DefaultRoot() (string, error) {
	if dir, ok := os.LookupEnv(EnvRoot); ok && dir != "" {
		return dir, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		return "", errors.Join(ErrNoRoot, err)
	}
	return filepath.Join(dir, "persistcache"), nil
}
