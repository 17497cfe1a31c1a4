package codec

import "errors"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

var (
	// ErrEncode indicates a result value could not be encoded.
	ErrEncode = errors.New("codec: value cannot be encoded")

	// ErrCorrupt indicates stored bytes are empty, truncated, unframed or undecodable.
	ErrCorrupt = errors.New("codec: corrupted slot content")
)

// Default is the codec used for new slots when none is configured. Gob keeps
// concrete types behind interface values, so results decode to the type they
// were computed as.
var Default Codec = Gob{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "go-json", "json":
		return GoJSON{}, true
	case "gob":
		return Gob{}, true
	default:
		return nil, false
	}
}
