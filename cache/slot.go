package cache

import (
	"fmt"
	"path/filepath"

	"github.com/jonwraymond/persistcache/codec"
)

// Slot is the storage location of one call's result.
type Slot struct {
	policy Policy
	path   string
}

// NewSlot binds call to sig, selects key material under p and derives the
// slot path. Binding and hashing errors are returned before any storage is
// touched.
func NewSlot(p Policy, fn Function, sig Signature, call Call) (*Slot, error) {
	if p.Root == "" {
		return nil, ErrNoRoot
	}
	p = p.withDefaults()

	selected, err := p.selectKeyMaterial(sig, call)
	if err != nil {
		return nil, err
	}

	material := make([]any, 0, len(selected)+2)
	material = append(material, fn, p.extraKeys())
	material = append(material, selected...)

	digest, err := p.Keyer.Key(p.EffectiveReducer(), material)
	if err != nil {
		return nil, err
	}

	return &Slot{
		policy: p,
		path:   filepath.Join(p.Root, fn.Dir(), digest),
	}, nil
}

// Path returns the file the slot is stored in.
func (s *Slot) Path() string {
	return s.path
}

// Get decodes the stored value into v. Every failure wraps ErrKeyNotFound;
// content that cannot be decoded also wraps codec.ErrCorrupt.
func (s *Slot) Get(v any) error {
	data, err := s.policy.FS.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeyNotFound, err)
	}
	if err := codec.Decode(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrKeyNotFound, err)
	}
	return nil
}

// Set encodes v and replaces the stored value. A value that would not decode
// back to an equal value is rejected with codec.ErrEncode; pass a pointer to
// check against the type Get will decode into.
func (s *Slot) Set(v any) error {
	data, err := codec.Encode(s.policy.Codec, s.policy.Compression, v)
	if err != nil {
		return err
	}
	if err := codec.Verify(data, v); err != nil {
		return err
	}
	if err := s.policy.FS.WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("cache: store %s: %w", s.path, err)
	}
	return nil
}
