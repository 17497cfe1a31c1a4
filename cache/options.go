package cache

import (
	"io"
	"slices"

	"github.com/jonwraymond/persistcache/codec"
	"github.com/jonwraymond/persistcache/fsys"
	"github.com/jonwraymond/persistcache/observe"
	"github.com/jonwraymond/persistcache/reduce"
)

// Option configures a Decorator.
type Option func(*options)

type options struct {
	policy      Policy
	compression bool // Compression was set explicitly
	params      []string
	configPath  string
	observer    observe.Observer
	logger      observe.Logger
	telemetry   io.Writer
}

// WithRoot sets the storage root. Without it the root comes from the
// configuration files and PERSISTCACHE_DIR.
func WithRoot(root string) Option {
	return func(o *options) { o.policy.Root = root }
}

// WithConfigFile loads configuration from path in addition to the global
// file. It is only read when no root is given.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithKeyArgs keys calls on the named arguments only, in the given order.
// Names that are not parameters key as nil.
func WithKeyArgs(names ...string) Option {
	return func(o *options) { o.policy.KeyArgs = slices.Clone(names) }
}

// WithArgReducers keys calls on the transformed named arguments only.
// Ignored when key arguments are set.
func WithArgReducers(reducers ...ArgReducer) Option {
	return func(o *options) { o.policy.ArgReducers = slices.Clone(reducers) }
}

// WithExtraKeys adds caller-supplied key material to every call.
func WithExtraKeys(keys any) Option {
	return func(o *options) { o.policy.ExtraKeys = keys }
}

// WithReducer hashes arguments with r. It takes precedence over
// WithDeepLearning and WithSpeedup.
func WithReducer(r *reduce.Reducer) Option {
	return func(o *options) { o.policy.Reducer = r }
}

// WithDeepLearning hashes models and tensors through their weights.
func WithDeepLearning() Option {
	return func(o *options) { o.policy.DeepLearning = true }
}

// WithSpeedup hashes large arrays, models and datasets from samples. Values
// that differ only outside the sample share a slot.
func WithSpeedup() Option {
	return func(o *options) { o.policy.Speedup = true }
}

// WithCodec sets the codec new slots are written with.
func WithCodec(c codec.Codec) Option {
	return func(o *options) { o.policy.Codec = c }
}

// WithCompression sets the compression new slots are written with.
func WithCompression(c codec.Compression) Option {
	return func(o *options) {
		o.policy.Compression = c
		o.compression = true
	}
}

// WithFS replaces the filesystem slots are stored on.
func WithFS(fs fsys.FS) Option {
	return func(o *options) { o.policy.FS = fs }
}

// WithKeyer replaces the slot digest.
func WithKeyer(k Keyer) Option {
	return func(o *options) { o.policy.Keyer = k }
}

// WithParams names the parameters of the wrapped function, in order. The
// default names are arg0, arg1, ...
func WithParams(names ...string) Option {
	return func(o *options) { o.params = slices.Clone(names) }
}

// WithObserver traces, counts and logs every call through obs.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithLogger logs calls through l. Ignored when an observer is set.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTelemetryOutput sends the logs and stdout exporter data of telemetry
// enabled by configuration to w instead of the standard streams.
func WithTelemetryOutput(w io.Writer) Option {
	return func(o *options) { o.telemetry = w }
}
