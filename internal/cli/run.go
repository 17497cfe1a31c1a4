// Package cli implements persistcache-clear.
package cli

import (
	"context"
	"errors"
	"io"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/jonwraymond/persistcache/config"
	"github.com/jonwraymond/persistcache/fsys"
	"github.com/jonwraymond/persistcache/observe"
)

const usage = "persistcache-clear [flags]"

const longHelp = `Clear stored function results.

Deletes every slot under the cache root whose modification time is older
than --max-age minutes. Without --max-age every slot is deleted.`

// Run is the main entry point. Returns exit code. A nil env means the
// process environment.
func Run(ctx context.Context, out io.Writer, errOut io.Writer, args []string, env map[string]string) int {
	return newClearCommand(env, fsys.NewReal(), time.Now).Run(ctx, NewIO(out, errOut), args[min(1, len(args)):])
}

func newClearCommand(env map[string]string, fs fsys.FS, now func() time.Time) *Command {
	flags := flag.NewFlagSet("persistcache-clear", flag.ContinueOnError)
	maxAge := flags.Int("max-age", 0, "Maximal age of entries to delete, in minutes (0 deletes all)")
	verbose := flags.Bool("verbose", true, "Show removed entries")
	cachePath := flags.String("cache-path", "", "Root of the cache directory (default from configuration)")
	dryRun := flags.Bool("dry-run", false, "List entries without deleting them")
	configPath := flags.StringP("config", "c", "", "Use specified config file")
	logLevel := flags.String("log-level", "", "Structured log level: debug|info|warn|error")

	return &Command{
		Flags:  flags,
		Usage:  usage,
		Short:  "Clear stored function results",
		Long:   longHelp,
		NoArgs: true,
		Examples: []string{
			"persistcache-clear --max-age 1440",
			"persistcache-clear --dry-run --cache-path /tmp/persistcache",
		},
		Exec: func(ctx context.Context, o *IO, _ []string) (err error) {
			cfg, _, err := config.Load(*configPath, environ(env))
			if err != nil {
				return err
			}
			if *cachePath != "" {
				cfg.Root = *cachePath
			}
			if *logLevel != "" {
				cfg.LogLevel = *logLevel
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			c := &Clearer{
				FS:      fs,
				Root:    cfg.Root,
				MaxAge:  time.Duration(max(*maxAge, 0)) * time.Minute,
				DryRun:  *dryRun,
				Verbose: *verbose,
				Now:     now,
			}

			obsCfg := cfg.Observe()
			if obsCfg.Enabled() {
				// Keep stdout for the list of removed slots.
				obsCfg.Output, obsCfg.LogOutput = o.ErrWriter(), o.ErrWriter()
				obs, obsErr := observe.NewObserver(ctx, obsCfg)
				if obsErr != nil {
					return obsErr
				}
				c.Observe = obs
				defer func() { err = errors.Join(err, obs.Shutdown(context.WithoutCancel(ctx))) }()
			}

			_, err = c.Clear(ctx, o)
			return err
		},
	}
}

// environ converts env to KEY=value pairs, keeping nil as nil.
func environ(env map[string]string) []string {
	if env == nil {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
