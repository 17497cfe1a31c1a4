package cache_test

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jonwraymond/persistcache/cache"
)

func ExampleWrap() {
	root, _ := os.MkdirTemp("", "persistcache-example")
	defer os.RemoveAll(root)

	calls := 0
	square := cache.Wrap(func(_ context.Context, x int) (int, error) {
		calls++
		return x * x, nil
	}, cache.WithRoot(root))

	ctx := context.Background()
	a, _ := square(ctx, 12)
	b, _ := square(ctx, 12)
	fmt.Println(a, b, calls)
	// Output: 144 144 1
}

func ExampleNew() {
	root, _ := os.MkdirTemp("", "persistcache-example")
	defer os.RemoveAll(root)

	memo := cache.New(
		cache.WithRoot(root),
		cache.WithParams("name", "greeting"),
		cache.WithArgReducers(cache.ReduceArg("name", strings.ToLower)),
	)

	calls := 0
	greet := cache.Apply2(memo, func(_ context.Context, name, greeting string) (string, error) {
		calls++
		return greeting + ", " + name, nil
	})

	ctx := context.Background()
	first, _ := greet(ctx, "Ada", "Hello")
	second, _ := greet(ctx, "ADA", "Goodbye")
	fmt.Println(first)
	fmt.Println(second)
	fmt.Println(calls)
	// Output:
	// Hello, Ada
	// Hello, Ada
	// 1
}
