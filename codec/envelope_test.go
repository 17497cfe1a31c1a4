package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zstd"
)

type result struct {
	Name   string
	Scores []float64
	Attrs  map[string]int
}

func sampleResult() result {
	return result{
		Name:   "run-7",
		Scores: []float64{0.5, 1.25, -3},
		Attrs:  map[string]int{"epochs": 10, "batch": 32},
	}
}

func TestEncodeDecode_Codecs(t *testing.T) {
	for _, c := range []Codec{GoJSON{}, Gob{}} {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := Encode(c, CompressionNone, sampleResult())
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			var got result
			if err := Decode(data, &got); err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if diff := cmp.Diff(sampleResult(), got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncode_CompressesLargePayloads(t *testing.T) {
	value := strings.Repeat("persistcache ", 4096)

	for _, comp := range []Compression{CompressionLZ4, CompressionZSTD} {
		t.Run(comp.String(), func(t *testing.T) {
			plain, err := Encode(GoJSON{}, CompressionNone, value)
			if err != nil {
				t.Fatalf("Encode(none) error = %v", err)
			}
			packed, err := Encode(GoJSON{}, comp, value)
			if err != nil {
				t.Fatalf("Encode(%s) error = %v", comp, err)
			}
			if len(packed) >= len(plain) {
				t.Errorf("compressed size %d, want < %d", len(packed), len(plain))
			}

			var got string
			if err := Decode(packed, &got); err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got != value {
				t.Error("decoded value differs from original")
			}
		})
	}
}

func TestEncode_SmallPayloadStaysUncompressed(t *testing.T) {
	data, err := Encode(GoJSON{}, CompressionZSTD, 42)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if Compression(data[len(magic)+1]) != CompressionNone {
		t.Errorf("compression byte = %d, want none", data[len(magic)+1])
	}
}

func TestEncode_UnencodableValue(t *testing.T) {
	_, err := Encode(GoJSON{}, CompressionNone, make(chan int))
	if !errors.Is(err, ErrEncode) {
		t.Fatalf("Encode(chan) error = %v, want ErrEncode", err)
	}
}

func TestDecode_CorruptInputs(t *testing.T) {
	valid, err := Encode(GoJSON{}, CompressionNone, sampleResult())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	flipped := bytes.Clone(valid)
	flipped[len(flipped)-2] ^= 0xff

	unknown := bytes.Clone(valid)
	copy(unknown[len(magic)+3:], "xx")

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"zero bytes", make([]byte, 16)},
		{"magic only", []byte(magic)},
		{"truncated header", valid[:len(magic)+5]},
		{"truncated payload", valid[:len(valid)-3]},
		{"checksum mismatch", flipped},
		{"unknown codec", unknown},
		{"foreign file", []byte("\x80\x04\x95 not an envelope")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got result
			err := Decode(tt.data, &got)
			if !errors.Is(err, ErrCorrupt) {
				t.Errorf("Decode() error = %v, want ErrCorrupt", err)
			}
		})
	}
}

// frame builds an envelope around stored with a forged header.
func frame(comp Compression, size uint32, stored []byte) []byte {
	out := append([]byte(magic), envelopeVersion, byte(comp), byte(len("gob")))
	out = append(out, "gob"...)
	out = binary.LittleEndian.AppendUint32(out, size)
	out = binary.LittleEndian.AppendUint32(out, 0)
	return append(out, stored...)
}

func TestDecode_ForgedLengths(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	bomb := enc.EncodeAll(make([]byte, 1<<20), nil)
	_ = enc.Close()

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"lz4 length beyond ratio", frame(CompressionLZ4, maxPayloadSize, []byte("tiny")), "impossible"},
		{"lz4 length below threshold", frame(CompressionLZ4, 16, bytes.Repeat([]byte("x"), 16)), "impossible"},
		{"zstd output beyond length", frame(CompressionZSTD, minCompressSize, bomb), ""},
		{"zstd length below threshold", frame(CompressionZSTD, 16, bomb), "threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []byte
			err := Decode(tt.data, &got)
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("Decode() error = %v, want ErrCorrupt", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Decode() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in      string
		want    Compression
		wantErr bool
	}{
		{"", CompressionNone, false},
		{"none", CompressionNone, false},
		{"LZ4", CompressionLZ4, false},
		{"zstd", CompressionZSTD, false},
		{"brotli", CompressionNone, true},
	}

	for _, tt := range tests {
		got, err := ParseCompression(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCompression(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseCompression(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"go-json", "json", "gob"} {
		if _, ok := ByName(name); !ok {
			t.Errorf("ByName(%q) not found", name)
		}
	}
	if _, ok := ByName("pickle"); ok {
		t.Error("ByName(pickle) should not resolve")
	}
}
