// Package codec encodes cached result values into self-describing slot files.
//
// A slot file is an envelope around the bytes produced by a [Codec]: a magic
// tag, the codec name, the compression used and a CRC32 of the payload. The
// envelope lets a reader tell a committed slot apart from an empty, torn or
// foreign file; every such file decodes to [ErrCorrupt] and is treated by the
// cache as a miss.
//
// Codec selection is a breaking-change boundary only for new slots: existing
// slots record the codec name and are decoded with the codec that wrote them.
package codec
