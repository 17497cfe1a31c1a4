// Package observe instruments memoized calls with OpenTelemetry traces and
// metrics and a small structured JSON logger.
//
// It performs no caching itself. The cache package reports each call's
// outcome (hit, miss or error) through a [Middleware]; without an
// [Observer] every primitive is a no-op.
package observe
