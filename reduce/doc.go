// Package reduce provides the reducer chain used when deriving cache keys.
//
// A [Reducer] is an ordered table of [Rule] values. Each rule declares the
// runtime types it applies to and turns a value that is unstable or expensive
// to hash (a function, an open file, a model, a large array) into a smaller
// deterministic proxy. The key hasher serializes the proxy in place of the
// value, recursively, so a proxy may itself contain values that need
// reduction.
//
// Three tables are predefined:
//
//   - [Base]: code (funcs, types) and open handles.
//   - [DeepLearning]: Base plus models, tensors and Apache Arrow data.
//   - [Speedup]: DeepLearning plus lossy subsampling of large arrays,
//     model weights and datasets.
//
// Tables are composed, not inherited: [Reducer.Extend] places new rules
// ahead of the parent's and replaces parent rules with the same name.
package reduce
