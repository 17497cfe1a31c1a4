package fsys

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is the default error returned by [Faulty].
var ErrInjected = errors.New("fsys: injected fault")

// Fault selects which operations fail for matching paths.
type Fault struct {
	Read   bool
	Write  bool
	Remove bool
	Err    error
}

// Faulty wraps an FS and fails operations on paths containing a registered
// pattern. It is meant for tests.
type Faulty struct {
	FS FS

	mu    sync.Mutex
	rules map[string]Fault
}

// NewFaulty wraps fs, or a [Real] filesystem when fs is nil.
func NewFaulty(fs FS) *Faulty {
	if fs == nil {
		fs = NewReal()
	}
	return &Faulty{FS: fs, rules: make(map[string]Fault)}
}

// AddRule registers fault for every path containing pattern.
func (f *Faulty) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fault.Err == nil {
		fault.Err = ErrInjected
	}
	f.rules[pattern] = fault
}

func (f *Faulty) fault(path string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pattern, rule := range f.rules {
		if strings.Contains(path, pattern) {
			return rule, true
		}
	}
	return Fault{}, false
}

func (f *Faulty) Exists(path string) (bool, error) {
	if rule, ok := f.fault(path); ok && rule.Read {
		return false, &os.PathError{Op: "stat", Path: path, Err: rule.Err}
	}
	return f.FS.Exists(path)
}

func (f *Faulty) Find(root string, match MatchFunc, recurseOnMatch bool) ([]string, error) {
	return f.FS.Find(root, match, recurseOnMatch)
}

func (f *Faulty) Stat(path string) (os.FileInfo, error) {
	if rule, ok := f.fault(path); ok && rule.Read {
		return nil, &os.PathError{Op: "stat", Path: path, Err: rule.Err}
	}
	return f.FS.Stat(path)
}

func (f *Faulty) ReadFile(path string) ([]byte, error) {
	if rule, ok := f.fault(path); ok && rule.Read {
		return nil, &os.PathError{Op: "open", Path: path, Err: rule.Err}
	}
	return f.FS.ReadFile(path)
}

func (f *Faulty) WriteFileAtomic(path string, data []byte) error {
	if rule, ok := f.fault(path); ok && rule.Write {
		return &os.PathError{Op: "write", Path: path, Err: rule.Err}
	}
	return f.FS.WriteFileAtomic(path, data)
}

func (f *Faulty) Remove(path string) error {
	if rule, ok := f.fault(path); ok && rule.Remove {
		return &os.PathError{Op: "remove", Path: path, Err: rule.Err}
	}
	return f.FS.Remove(path)
}

var _ FS = (*Faulty)(nil)
