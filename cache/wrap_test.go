package cache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/persistcache/codec"
	"github.com/jonwraymond/persistcache/fsys"
	"github.com/jonwraymond/persistcache/hashing"
	"github.com/jonwraymond/persistcache/observe"
	"github.com/jonwraymond/persistcache/reduce"
)

var doubleCalls int

func double(_ context.Context, x int) (int, error) {
	doubleCalls++
	return x * 2, nil
}

// slotFiles lists the stored slots under root as slash-separated relative
// paths.
func slotFiles(t *testing.T, root string) []string {
	t.Helper()
	files, err := fsys.NewReal().Find(root, fsys.RegularFiles, false)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	rel := make([]string, len(files))
	for i, f := range files {
		r, err := filepath.Rel(root, f)
		if err != nil {
			t.Fatal(err)
		}
		rel[i] = filepath.ToSlash(r)
	}
	sort.Strings(rel)
	return rel
}

// counter returns a memoizable function that counts its invocations.
func counter[A any](calls *int) func(context.Context, A) (A, error) {
	return func(_ context.Context, a A) (A, error) {
		*calls++
		return a, nil
	}
}

func TestWrap_Scenario(t *testing.T) {
	root := t.TempDir()
	doubleCalls = 0
	f := Wrap(double, WithRoot(root))
	ctx := context.Background()

	if got, err := f(ctx, 3); err != nil || got != 6 {
		t.Fatalf("f(3) = %d, %v", got, err)
	}
	files := slotFiles(t, root)
	if len(files) != 1 {
		t.Fatalf("slots after f(3) = %v, want 1", files)
	}
	parts := strings.Split(files[0], "/")
	if len(parts) != 3 || parts[0] != "github_com_jonwraymond_persistcache_cache" || parts[1] != "double" {
		t.Errorf("slot %q, want github_com_jonwraymond_persistcache_cache/double/<digest>", files[0])
	}
	if !digestPattern.MatchString(parts[len(parts)-1]) {
		t.Errorf("slot %q does not end in a 40 hex digest", files[0])
	}

	if got, err := f(ctx, 3); err != nil || got != 6 {
		t.Fatalf("second f(3) = %d, %v", got, err)
	}
	if doubleCalls != 1 {
		t.Errorf("double ran %d times, want 1", doubleCalls)
	}

	if got, err := f(ctx, 4); err != nil || got != 8 {
		t.Fatalf("f(4) = %d, %v", got, err)
	}
	if doubleCalls != 2 {
		t.Errorf("double ran %d times, want 2", doubleCalls)
	}
	if files := slotFiles(t, root); len(files) != 2 || files[0] == files[1] {
		t.Errorf("slots after f(4) = %v, want 2 distinct", files)
	}
}

func TestWrap_BareAndFactoryShareSlots(t *testing.T) {
	root := t.TempDir()
	var calls int
	fn := counter[string](&calls)
	ctx := context.Background()

	bare := Wrap(fn, WithRoot(root))
	factory := Apply(New(WithRoot(root)), fn)

	if _, err := bare(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := factory(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if files := slotFiles(t, root); len(files) != 1 {
		t.Errorf("slots = %v, want 1", files)
	}
}

func TestWrap_KeyArgs(t *testing.T) {
	var calls int
	f := Wrap2(func(_ context.Context, value string, verbose bool) (string, error) {
		calls++
		return strings.ToUpper(value), nil
	}, WithRoot(t.TempDir()), WithParams("value", "verbose"), WithKeyArgs("value"))
	ctx := context.Background()

	a, _ := f(ctx, "test", false)
	b, _ := f(ctx, "test", true)
	if a != "TEST" || b != "TEST" || calls != 1 {
		t.Errorf("results %q, %q after %d calls; want one call", a, b, calls)
	}
	if _, _ = f(ctx, "other", false); calls != 2 {
		t.Errorf("calls = %d, want 2 after changing the key argument", calls)
	}
}

func TestWrap_ArgReducer(t *testing.T) {
	var calls int
	f := Wrap(counter[string](&calls),
		WithRoot(t.TempDir()),
		WithParams("value"),
		WithArgReducers(ReduceArg("value", strings.TrimSpace)),
	)
	ctx := context.Background()

	if _, err := f(ctx, "test "); err != nil {
		t.Fatal(err)
	}
	if _, err := f(ctx, "test"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want the trimmed argument to share a slot", calls)
	}
}

func TestWrap_ExtraKeys(t *testing.T) {
	root := t.TempDir()
	var calls int
	fn := counter[int](&calls)
	ctx := context.Background()

	if _, err := Wrap(fn, WithRoot(root), WithExtraKeys("v1"))(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := Wrap(fn, WithRoot(root), WithExtraKeys("v2"))(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want extra keys to separate slots", calls)
	}
	if files := slotFiles(t, root); len(files) != 2 {
		t.Errorf("slots = %v, want 2", files)
	}
}

func TestWrap_StructArgument(t *testing.T) {
	type query struct {
		Text  string
		Limit int    `cache:"limit"`
		Trace string `cache:"-"`
	}

	var calls int
	f := Wrap(func(_ context.Context, q query) (int, error) {
		calls++
		return len(q.Text) * q.Limit, nil
	}, WithRoot(t.TempDir()), WithKeyArgs("Text"))
	ctx := context.Background()

	a, _ := f(ctx, query{Text: "abc", Limit: 1, Trace: "x"})
	b, _ := f(ctx, query{Text: "abc", Limit: 5, Trace: "y"})
	if calls != 1 || a != 3 || b != 3 {
		t.Errorf("results %d, %d after %d calls; want one call keyed on Text", a, b, calls)
	}
}

func TestWrap_Corruption(t *testing.T) {
	for name, data := range map[string][]byte{
		"zero bytes": {},
		"truncated":  []byte("PCV1\x01"),
	} {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			var calls int
			var logs bytes.Buffer
			f := Wrap(counter[string](&calls), WithRoot(root), WithLogger(observe.NewLoggerWithWriter("warn", &logs)))
			ctx := context.Background()

			if _, err := f(ctx, "x"); err != nil {
				t.Fatal(err)
			}
			slot := filepath.Join(root, slotFiles(t, root)[0])
			if err := os.WriteFile(slot, data, 0o644); err != nil {
				t.Fatal(err)
			}

			got, err := f(ctx, "x")
			if err != nil || got != "x" {
				t.Fatalf("call after corruption = %q, %v", got, err)
			}
			if calls != 2 {
				t.Errorf("calls = %d, want a recomputation", calls)
			}
			stored, err := os.ReadFile(slot)
			if err != nil || bytes.Equal(stored, data) {
				t.Errorf("slot was not overwritten: %q, %v", stored, err)
			}
			if !strings.Contains(logs.String(), "discarding unreadable slot") {
				t.Errorf("logs = %q, want a warning", logs.String())
			}
		})
	}
}

func TestWrap_ErrorsAreNotCached(t *testing.T) {
	boom := errors.New("boom")
	var calls int
	f := Wrap(func(_ context.Context, x int) (int, error) {
		calls++
		return 0, boom
	}, WithRoot(t.TempDir()))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := f(ctx, 1); err != boom {
			t.Fatalf("error = %v, want the function's error unchanged", err)
		}
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestWrap_FatalErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unhashable argument", func(t *testing.T) {
		var calls int
		f := Wrap(counter[chan int](&calls), WithRoot(t.TempDir()))
		if _, err := f(ctx, make(chan int)); !errors.Is(err, hashing.ErrUnhashable) {
			t.Errorf("error = %v, want ErrUnhashable", err)
		}
		if calls != 0 {
			t.Errorf("function ran %d times before keying failed", calls)
		}
	})

	t.Run("unencodable result", func(t *testing.T) {
		f := Wrap(func(context.Context, int) (chan int, error) {
			return make(chan int), nil
		}, WithRoot(t.TempDir()))
		got, err := f(ctx, 1)
		if !errors.Is(err, codec.ErrEncode) {
			t.Errorf("error = %v, want ErrEncode", err)
		}
		if got != nil {
			t.Error("result should be the zero value on encode failure")
		}
	})

	t.Run("unwritable root", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(root, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		var calls int
		f := Wrap(counter[int](&calls), WithRoot(root))
		_, err := f(ctx, 1)
		if err == nil || errors.Is(err, ErrKeyNotFound) {
			t.Errorf("error = %v, want the write failure", err)
		}
	})

	t.Run("nil function", func(t *testing.T) {
		var fn func(context.Context, int) (int, error)
		if _, err := Wrap(fn, WithRoot(t.TempDir()))(ctx, 1); !errors.Is(err, ErrNilFunc) {
			t.Errorf("error = %v, want ErrNilFunc", err)
		}
	})

	t.Run("missing variadic parameter", func(t *testing.T) {
		f := WrapVariadic(func(_ context.Context, xs ...int) (int, error) {
			return len(xs), nil
		}, WithRoot(t.TempDir()), WithParams("first"))
		if _, err := f(ctx); !errors.Is(err, ErrBind) {
			t.Errorf("error = %v, want ErrBind", err)
		}
	})
}

type weighted struct {
	N      int
	weight int
}

func TestWrap_HitKeepsResultType(t *testing.T) {
	var calls int
	f := Wrap(func(_ context.Context, x int) (any, error) {
		calls++
		return x * 2, nil
	}, WithRoot(t.TempDir()))
	ctx := context.Background()

	miss, err := f(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	hit, err := f(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if miss != any(6) || hit != any(6) {
		t.Errorf("miss = %v (%T), hit = %v (%T), want int 6 both times", miss, miss, hit, hit)
	}
}

func TestWrap_LossyResultIsAnError(t *testing.T) {
	ctx := context.Background()

	t.Run("interface under json", func(t *testing.T) {
		root := t.TempDir()
		f := Wrap(func(_ context.Context, x int) (any, error) {
			return x * 2, nil
		}, WithRoot(root), WithCodec(codec.GoJSON{}))

		got, err := f(ctx, 3)
		if !errors.Is(err, codec.ErrEncode) {
			t.Errorf("error = %v, want ErrEncode", err)
		}
		if got != nil {
			t.Errorf("result = %v, want the zero value", got)
		}
		if files := slotFiles(t, root); len(files) != 0 {
			t.Errorf("slots = %v, want none", files)
		}
	})

	t.Run("unexported field", func(t *testing.T) {
		var calls int
		f := Wrap(func(_ context.Context, x int) (weighted, error) {
			calls++
			return weighted{N: x, weight: x * 10}, nil
		}, WithRoot(t.TempDir()))

		for i := 0; i < 2; i++ {
			got, err := f(ctx, 3)
			if !errors.Is(err, codec.ErrEncode) {
				t.Errorf("error = %v, want ErrEncode", err)
			}
			if got != (weighted{}) {
				t.Errorf("result = %+v, want the zero value", got)
			}
		}
		if calls != 2 {
			t.Errorf("calls = %d, want every call to recompute", calls)
		}
	})
}

func TestWrap_WithFS(t *testing.T) {
	root := t.TempDir()
	faulty := fsys.NewFaulty(nil)
	faulty.AddRule(root, fsys.Fault{Write: true})

	var calls int
	f := Wrap(counter[int](&calls), WithRoot(root), WithFS(faulty))
	got, err := f(context.Background(), 1)
	if !errors.Is(err, fsys.ErrInjected) {
		t.Errorf("error = %v, want the write failure", err)
	}
	if got != 0 || calls != 1 {
		t.Errorf("result = %d after %d calls, want zero after one call", got, calls)
	}
}

// fixedKeyer stores every call in one slot and records what it was given.
type fixedKeyer struct {
	material [][]any
}

func (k *fixedKeyer) Key(_ *reduce.Reducer, material []any) (string, error) {
	k.material = append(k.material, material)
	return "fixed", nil
}

func TestWrap_WithKeyer(t *testing.T) {
	root := t.TempDir()
	keyer := &fixedKeyer{}
	var calls int
	f := Wrap(counter[int](&calls), WithRoot(root), WithKeyer(keyer), WithExtraKeys("v1"))
	ctx := context.Background()

	if got, _ := f(ctx, 1); got != 1 {
		t.Fatalf("f(1) = %d", got)
	}
	if got, _ := f(ctx, 2); got != 1 || calls != 1 {
		t.Errorf("f(2) = %d after %d calls, want the shared slot", got, calls)
	}

	if len(keyer.material) != 2 {
		t.Fatalf("Key called %d times, want 2", len(keyer.material))
	}
	first := keyer.material[0]
	if fn, ok := first[0].(Function); !ok || fn.Name == "" {
		t.Errorf("material[0] = %#v, want the Function", first[0])
	}
	if diff := cmp.Diff([]any{[]any{"v1"}, 1}, first[1:]); diff != "" {
		t.Errorf("material mismatch (-want +got):\n%s", diff)
	}
	if files := slotFiles(t, root); len(files) != 1 || !strings.HasSuffix(files[0], "/fixed") {
		t.Errorf("slots = %v, want one named fixed", files)
	}
}

func TestWrap_Arity(t *testing.T) {
	root := t.TempDir()
	d := New(WithRoot(root))
	ctx := context.Background()
	var calls int

	f0 := Apply0(d, func(context.Context) (string, error) { calls++; return "zero", nil })
	f3 := Apply3(d, func(_ context.Context, a, b, c int) (int, error) { calls++; return a + b + c, nil })
	fv := ApplyVariadic(d, func(_ context.Context, xs ...int) (int, error) {
		calls++
		sum := 0
		for _, x := range xs {
			sum += x
		}
		return sum, nil
	})

	for i := 0; i < 2; i++ {
		if got, err := f0(ctx); err != nil || got != "zero" {
			t.Fatalf("f0() = %q, %v", got, err)
		}
		if got, err := f3(ctx, 1, 2, 3); err != nil || got != 6 {
			t.Fatalf("f3() = %d, %v", got, err)
		}
		if got, err := fv(ctx, 1, 2, 3, 4); err != nil || got != 10 {
			t.Fatalf("fv() = %d, %v", got, err)
		}
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if got, _ := fv(ctx, 1, 2); got != 3 || calls != 4 {
		t.Errorf("fv(1, 2) = %d after %d calls", got, calls)
	}
}

func TestWrap_LogsOutcomes(t *testing.T) {
	var logs bytes.Buffer
	var calls int
	f := Wrap(counter[int](&calls), WithRoot(t.TempDir()), WithLogger(observe.NewLoggerWithWriter("debug", &logs)))
	ctx := context.Background()

	_, _ = f(ctx, 1)
	_, _ = f(ctx, 1)

	var msgs []string
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		switch {
		case strings.Contains(line, `"msg":"memo stored"`):
			msgs = append(msgs, "stored")
		case strings.Contains(line, `"msg":"memo hit"`):
			msgs = append(msgs, "hit")
		}
		if strings.Contains(line, `"args"`) && !strings.Contains(line, "[REDACTED]") {
			t.Errorf("argument values leaked into logs: %s", line)
		}
	}
	if diff := cmp.Diff([]string{"stored", "hit"}, msgs); diff != "" {
		t.Errorf("log messages mismatch (-want +got):\n%s", diff)
	}
}

func TestWrap_Observer(t *testing.T) {
	var logs bytes.Buffer
	obs, err := observe.NewObserver(context.Background(), observe.Config{
		ServiceName: "persistcache-test",
		LogLevel:    "debug",
		LogOutput:   &logs,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })

	var calls int
	f := Wrap(counter[int](&calls), WithRoot(t.TempDir()), WithObserver(obs))
	if _, err := f(context.Background(), 7); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(logs.String(), `"func.name":"counter`) {
		t.Errorf("logs = %q, want the function name", logs.String())
	}
}

func TestNew_FromEnvironment(t *testing.T) {
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(fsys.EnvRoot, root)
	t.Setenv("PERSISTCACHE_LOG", "")

	d := New()
	if err := d.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if got := d.Policy().Root; got != root {
		t.Errorf("root = %q, want %q", got, root)
	}

	var calls int
	if _, err := Apply(d, counter[int](&calls))(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if files := slotFiles(t, root); len(files) != 1 {
		t.Errorf("slots = %v, want 1 under the configured root", files)
	}
}

func TestNew_TelemetryFromConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(fsys.EnvRoot, "")
	t.Setenv("PERSISTCACHE_LOG", "")
	root := t.TempDir()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{
		"root": "`+filepath.ToSlash(root)+`",
		"log_level": "debug",
		"telemetry": {"traces": "stdout", "service_name": "trainer"},
	}`), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	d := New(WithConfigFile(path), WithTelemetryOutput(&out))
	if err := d.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}

	var calls int
	if _, err := Apply(d, counter[int](&calls))(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	for _, want := range []string{`"msg":"memo stored"`, `memo.call.github.com/jonwraymond/persistcache/cache.counter`, "trainer"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("telemetry output lacks %q:\n%s", want, out.String())
		}
	}
}

func TestNew_ConfigError(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	d := New(WithConfigFile(filepath.Join(t.TempDir(), "missing.json")))
	if d.Err() == nil {
		t.Fatal("Err() = nil, want a missing config file error")
	}

	var calls int
	if _, err := Apply(d, counter[int](&calls))(context.Background(), 1); err == nil || calls != 0 {
		t.Errorf("call = %v after %d calls, want the configuration error", err, calls)
	}
}

func TestDecorator_With(t *testing.T) {
	root := t.TempDir()
	base := New(WithRoot(root))
	speedy := base.With(WithSpeedup())

	if base.Policy().Speedup {
		t.Error("With() modified the receiver")
	}
	if !speedy.Policy().Speedup || speedy.Policy().Root != root {
		t.Errorf("With() policy = %+v", speedy.Policy())
	}
}
