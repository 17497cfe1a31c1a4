package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Gob is a type-faithful codec backed by encoding/gob.
//
// Interface-typed values must have their concrete types registered with
// gob.Register by the caller.
type Gob struct{}

// Marshal encodes the value with gob. Values gob panics on, such as nil
// pointers, are reported as errors.
func (Gob) Marshal(v any) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("gob: %v", r)
		}
	}()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes gob data into v.
func (Gob) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// Name returns the unique name of the codec ("gob").
func (Gob) Name() string { return "gob" }
