package cache

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/jonwraymond/persistcache/codec"
	"github.com/jonwraymond/persistcache/config"
	"github.com/jonwraymond/persistcache/observe"
)

// Decorator holds resolved memoization settings. It is safe for concurrent
// use and may wrap any number of functions.
type Decorator struct {
	opts   []Option
	policy Policy
	params []string
	mw     *observe.Middleware
	owned  observe.Observer
	err    error
}

// New resolves opts once. When no root is given, the root, codec,
// compression, log level and telemetry come from [config.Load]; explicit
// options win. A resolution error is returned by every call of the wrapped
// functions.
func New(opts ...Option) *Decorator {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	d := &Decorator{opts: slices.Clone(opts), params: o.params}
	logger := o.logger
	obs := o.observer

	if o.policy.Root == "" {
		cfg, _, err := config.Load(o.configPath, nil)
		if err != nil {
			d.err = err
		} else {
			o.policy.Root = cfg.Root
			if o.policy.Codec == nil {
				o.policy.Codec, _ = codec.ByName(cfg.Codec)
			}
			if !o.compression {
				o.policy.Compression, _ = codec.ParseCompression(cfg.Compression)
			}
			if obsCfg := cfg.Observe(); obs == nil && logger == nil && obsCfg.Enabled() {
				obsCfg.Output, obsCfg.LogOutput = o.telemetry, o.telemetry
				owned, err := observe.NewObserver(context.Background(), obsCfg)
				if err != nil {
					d.err = err
				} else {
					d.owned, obs = owned, owned
				}
			}
		}
	}
	d.policy = o.policy.withDefaults()

	switch {
	case obs != nil:
		mw, err := observe.MiddlewareFromObserver(obs)
		if err != nil {
			d.err = errors.Join(d.err, err)
			mw = observe.NopMiddleware()
		}
		d.mw = mw
	case logger != nil:
		d.mw = observe.LoggingMiddleware(logger)
	default:
		d.mw = observe.NopMiddleware()
	}
	return d
}

// With returns a Decorator with opts applied after d's options.
func (d *Decorator) With(opts ...Option) *Decorator {
	return New(append(slices.Clone(d.opts), opts...)...)
}

// Policy returns the resolved policy.
func (d *Decorator) Policy() Policy {
	return d.policy
}

// Err returns the error configuration resolution failed with, if any.
func (d *Decorator) Err() error {
	return d.err
}

// Shutdown flushes telemetry d started from configuration. Observers passed
// with [WithObserver] are left to their owner.
func (d *Decorator) Shutdown(ctx context.Context) error {
	if d.owned == nil {
		return nil
	}
	return d.owned.Shutdown(ctx)
}

// memoize serves one call from its slot or computes and stores it.
func memoize[R any](ctx context.Context, d *Decorator, fn Function, sig Signature, call Call, compute func(context.Context) (R, error)) (R, error) {
	var out R
	if d.err != nil {
		return out, d.err
	}

	meta := observe.FuncMeta{Module: fn.Module, Name: fn.Name, Root: d.policy.Root}
	_, err := d.mw.Wrap(func(ctx context.Context, meta observe.FuncMeta) (observe.CallResult, error) {
		slot, err := NewSlot(d.policy, fn, sig, call)
		if err != nil {
			return observe.CallResult{}, err
		}
		res := observe.CallResult{Slot: slot.Path()}

		err = slot.Get(&out)
		if err == nil {
			res.Outcome = observe.OutcomeHit
			return res, nil
		}
		if errors.Is(err, codec.ErrCorrupt) {
			d.mw.Logger().WithFunc(meta).Warn(ctx, "discarding unreadable slot",
				observe.Field{Key: "slot", Value: res.Slot},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}

		var zero R
		out = zero
		start := time.Now()
		out, err = compute(ctx)
		res.Computed = true
		res.Compute = time.Since(start)
		if err != nil {
			return res, err
		}

		if err := slot.Set(&out); err != nil {
			out = zero
			return res, err
		}
		res.Outcome = observe.OutcomeMiss
		return res, nil
	})(ctx, meta)
	return out, err
}
