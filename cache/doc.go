// Package cache memoizes function results on disk.
//
// A wrapped function is called with the same Go signature as the original.
// Every call binds its arguments against a [Signature], selects the key
// material, derives a [Slot] path from the function identity and that
// material, and either decodes the stored result or runs the function and
// stores what it returned:
//
//	<root>/<module>/<function>/<40 hex digest>
//
// Key material is chosen once per call, in priority order: explicit key
// arguments ([WithKeyArgs]), else per-argument reducers ([WithArgReducers]),
// else every positional argument followed by every keyword argument.
// Extra key material ([WithExtraKeys]) is always added.
//
// Unreadable, truncated or empty slots are misses. Errors returned by the
// wrapped function are never stored.
package cache
