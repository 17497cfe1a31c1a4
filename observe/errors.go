package observe

import "errors"

// Errors returned by [Config.Validate].
var (
	ErrInvalidTracingExporter = errors.New("observe: unknown trace exporter")
	ErrInvalidMetricsExporter = errors.New("observe: unknown metrics exporter")
	ErrInvalidSampleRate      = errors.New("observe: sample rate must be within [0, 1]")
	ErrInvalidLogLevel        = errors.New("observe: unknown log level")
)

var (
	// ErrNilObserver is returned by [MiddlewareFromObserver] for a nil Observer.
	ErrNilObserver = errors.New("observe: observer is nil")

	// ErrMissingFuncName indicates FuncMeta.Name is empty.
	ErrMissingFuncName = errors.New("observe: function name is required")
)

// RedactedFields lists log field keys whose values are replaced with
// "[REDACTED]". Call arguments and results may be large or sensitive.
var RedactedFields = []string{
	"args",
	"kwargs",
	"key_material",
	"result",
}
