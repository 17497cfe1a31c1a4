// Package hashing derives fixed-length digests from arbitrary Go values.
//
// Values are serialized by a structural traversal that consults a
// [reduce.Reducer] at every value boundary, then digested with BLAKE2b-160.
// The digest only needs to be deterministic and collision resistant for
// honest inputs; it is not a security boundary.
//
// Encoding rules:
//   - Integers are normalized to int64/uint64 and floats to float64, so the
//     declared width of a value never changes its digest.
//   - Pointers and interfaces are transparent: f(x) and f(&x) hash alike.
//   - Map entries are ordered by their encoded keys.
//   - Structs are encoded field by field in declaration order, including
//     unexported fields, prefixed with the qualified type name.
//   - Reference cycles are encoded as back references to the ancestor.
//   - Channels and unsafe pointers are rejected with [ErrUnhashable].
package hashing
