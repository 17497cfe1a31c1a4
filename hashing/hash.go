package hashing

import (
	"encoding/binary"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"

	"github.com/jonwraymond/persistcache/reduce"
)

// DigestSize is the digest length in bytes. Hex digests are twice as long.
const DigestSize = 20

// ErrUnhashable is returned for values that have no deterministic encoding.
var ErrUnhashable = errors.New("hashing: value cannot be hashed")

// ComputeHash digests material under r and returns it as lowercase hex.
// The reducer name is part of the digest, so the same material hashed with
// different reducers never collides. A nil reducer means [reduce.Base].
func ComputeHash(r *reduce.Reducer, material ...any) (string, error) {
	if r == nil {
		r = reduce.Base
	}

	e := newEncoder(r)
	e.writeString(r.Name())
	e.buf = binary.AppendUvarint(e.buf, uint64(len(material)))
	for _, m := range material {
		if err := e.encodeAny(m); err != nil {
			return "", err
		}
	}

	h, err := blake2b.New(DigestSize, nil)
	if err != nil {
		return "", err
	}
	_, _ = h.Write(e.buf)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Encode returns the canonical byte encoding of v under r.
func Encode(r *reduce.Reducer, v any) ([]byte, error) {
	if r == nil {
		r = reduce.Base
	}
	e := newEncoder(r)
	if err := e.encodeAny(v); err != nil {
		return nil, err
	}
	return e.buf, nil
}
