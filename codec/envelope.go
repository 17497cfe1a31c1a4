package codec

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how slot payloads are compressed.
type Compression uint8

const (
	// CompressionNone stores the payload as produced by the codec.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, modest ratio).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd (better ratio for large results).
	CompressionZSTD Compression = 2
)

// String returns the configuration name of the compression.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses a configuration name. The empty string is "none".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return CompressionNone, fmt.Errorf("codec: unknown compression %q", s)
	}
}

// Envelope layout (little endian):
//
//	[magic 4]["PCV1"]
//	[version 1]
//	[compression 1]
//	[name length 1][codec name]
//	[payload length u32][payload crc32 u32]
//	[stored payload...]
//
// The length and checksum describe the uncompressed payload.
const (
	magic           = "PCV1"
	envelopeVersion = 1

	// Payloads smaller than this are never compressed.
	minCompressSize = 512

	// Largest payload a slot may hold.
	maxPayloadSize = 1 << 30

	// An lz4 block never expands its input by more than this factor.
	lz4MaxRatio = 255
)

var crcTable = crc32.MakeTable(crc32.IEEE)

// Encode marshals v with c and frames the result. Compression is applied
// only when it shrinks the payload by at least 10%.
func Encode(c Codec, comp Compression, v any) ([]byte, error) {
	if c == nil {
		c = Default
	}
	name := c.Name()
	if len(name) == 0 || len(name) > 255 {
		return nil, fmt.Errorf("%w: invalid codec name %q", ErrEncode, name)
	}

	payload, err := c.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEncode, name, err)
	}
	if len(payload) > maxPayloadSize {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds slot limit", ErrEncode, len(payload))
	}

	stored, used, err := compress(payload, comp)
	if err != nil {
		return nil, fmt.Errorf("%w: %s compression: %v", ErrEncode, comp, err)
	}

	out := make([]byte, 0, len(magic)+3+len(name)+8+len(stored))
	out = append(out, magic...)
	out = append(out, envelopeVersion, byte(used), byte(len(name)))
	out = append(out, name...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	out = binary.LittleEndian.AppendUint32(out, crc32.Checksum(payload, crcTable))
	out = append(out, stored...)
	return out, nil
}

// Decode unframes data and unmarshals the payload into v with the codec
// recorded in the envelope. Every failure wraps [ErrCorrupt].
func Decode(data []byte, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty", ErrCorrupt)
	}
	if len(data) < len(magic)+3 || string(data[:len(magic)]) != magic {
		return fmt.Errorf("%w: missing envelope", ErrCorrupt)
	}
	pos := len(magic)
	if data[pos] != envelopeVersion {
		return fmt.Errorf("%w: envelope version %d", ErrCorrupt, data[pos])
	}
	comp := Compression(data[pos+1])
	nameLen := int(data[pos+2])
	pos += 3

	if len(data) < pos+nameLen+8 {
		return fmt.Errorf("%w: truncated header", ErrCorrupt)
	}
	name := string(data[pos : pos+nameLen])
	pos += nameLen
	c, ok := ByName(name)
	if !ok {
		return fmt.Errorf("%w: unknown codec %q", ErrCorrupt, name)
	}

	size := binary.LittleEndian.Uint32(data[pos:])
	sum := binary.LittleEndian.Uint32(data[pos+4:])
	pos += 8
	if size > maxPayloadSize {
		return fmt.Errorf("%w: payload length %d out of range", ErrCorrupt, size)
	}

	payload, err := decompress(data[pos:], comp, int(size))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if crc32.Checksum(payload, crcTable) != sum {
		return fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	if err := c.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	return nil
}

func compress(payload []byte, comp Compression) ([]byte, Compression, error) {
	if comp == CompressionNone || len(payload) < minCompressSize {
		return payload, CompressionNone, nil
	}

	var compressed []byte
	switch comp {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(payload)))
		n, err := lz4.CompressBlock(payload, buf, nil)
		if err != nil {
			return nil, comp, err
		}
		compressed = buf[:n]
	case CompressionZSTD:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, comp, err
		}
		compressed = enc.EncodeAll(payload, nil)
		_ = enc.Close()
	default:
		return nil, comp, fmt.Errorf("unknown compression %d", uint8(comp))
	}

	// If compression doesn't help (ratio > 0.9), store uncompressed
	if len(compressed) == 0 || float64(len(compressed)) > float64(len(payload))*0.9 {
		return payload, CompressionNone, nil
	}
	return compressed, comp, nil
}

func decompress(stored []byte, comp Compression, size int) ([]byte, error) {
	switch comp {
	case CompressionNone:
		if len(stored) != size {
			return nil, fmt.Errorf("payload is %d bytes, header says %d", len(stored), size)
		}
		return stored, nil

	case CompressionLZ4:
		if size < minCompressSize || size > len(stored)*lz4MaxRatio {
			return nil, fmt.Errorf("header length %d impossible for %d lz4 bytes", size, len(stored))
		}
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(stored, out)
		if err != nil {
			return nil, err
		}
		if n != size {
			return nil, fmt.Errorf("decompressed size mismatch")
		}
		return out, nil

	case CompressionZSTD:
		if size < minCompressSize {
			return nil, fmt.Errorf("header length %d below compression threshold", size)
		}
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(size)))
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(stored, nil)
		if err != nil {
			return nil, err
		}
		if len(out) != size {
			return nil, fmt.Errorf("decompressed size mismatch")
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unknown compression %d", uint8(comp))
	}
}
