package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jonwraymond/persistcache/fsys"
	"github.com/jonwraymond/persistcache/observe"
)

// Clearer deletes stored slots by age.
type Clearer struct {
	FS      fsys.FS
	Root    string
	MaxAge  time.Duration // zero clears every slot
	DryRun  bool
	Verbose bool
	Logger  observe.Logger   // defaults to Observer's logger
	Observe observe.Observer // optional span and counters per clear
	Now     func() time.Time
}

// Removed describes one cleared slot.
type Removed struct {
	Path    string // relative to the root
	ModTime time.Time
	Size    int64
}

// Report summarizes a clear.
type Report struct {
	Removed []Removed
	Bytes   uint64
}

// Clear removes every regular file under Root modified before Now-MaxAge.
// Failures on single files are collected and clearing continues.
func (c *Clearer) Clear(ctx context.Context, o *IO) (Report, error) {
	var report Report
	_, err := observe.ObserveClear(ctx, c.Observe, func(ctx context.Context) (observe.ClearStats, error) {
		var err error
		report, err = c.clear(ctx, o)
		return observe.ClearStats{
			Root:   c.Root,
			Files:  len(report.Removed),
			Bytes:  report.Bytes,
			DryRun: c.DryRun,
		}, err
	})
	return report, err
}

func (c *Clearer) clear(ctx context.Context, o *IO) (Report, error) {
	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}
	logger := c.Logger
	switch {
	case logger != nil:
	case c.Observe != nil:
		logger = c.Observe.Logger()
	default:
		logger = observe.NopLogger()
	}

	files, err := c.FS.Find(c.Root, fsys.RegularFiles, true)
	if err != nil {
		return Report{}, err
	}

	var (
		report Report
		errs   []error
	)
	cutoff := now.Add(-c.MaxAge)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		info, err := c.FS.Stat(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if c.MaxAge > 0 && !info.ModTime().Before(cutoff) {
			continue
		}

		rel, err := filepath.Rel(c.Root, path)
		if err != nil {
			rel = path
		}
		if !c.DryRun {
			if err := c.FS.Remove(path); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		logger.Debug(ctx, "removed slot", observe.Field{Key: "slot", Value: rel}, observe.Field{Key: "dry_run", Value: c.DryRun})

		report.Removed = append(report.Removed, Removed{Path: rel, ModTime: info.ModTime(), Size: info.Size()})
		report.Bytes += uint64(info.Size())
		if c.Verbose {
			o.Printf("%s (%s, %s)\n",
				filepath.ToSlash(rel),
				info.ModTime().UTC().Format(time.RFC3339),
				humanize.RelTime(info.ModTime(), now, "ago", "from now"),
			)
		}
	}

	verb := "removed"
	if c.DryRun {
		verb = "would remove"
	}
	o.Printf("%s %s (%s)\n", verb, fileCount(len(report.Removed)), humanize.Bytes(report.Bytes))
	logger.Info(ctx, "cache cleared",
		observe.Field{Key: "root", Value: c.Root},
		observe.Field{Key: "files", Value: len(report.Removed)},
		observe.Field{Key: "bytes", Value: report.Bytes},
		observe.Field{Key: "dry_run", Value: c.DryRun},
	)

	if len(errs) > 0 {
		return report, fmt.Errorf("clearing %s: %w", c.Root, errors.Join(errs...))
	}
	return report, nil
}

func fileCount(n int) string {
	if n == 1 {
		return "1 file"
	}
	return humanize.Comma(int64(n)) + " files"
}
