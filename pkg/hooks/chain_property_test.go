package hooks

import (
	"context"
	"fmt"
	"testing"

	"github.com/platinummonkey/hookrt/pkg/observability"
	"github.com/platinummonkey/hookrt/pkg/plugins"
	"pgregory.net/rapid"
)

func passThrough(ctx context.Context, next plugins.Next, args ...any) (any, error) {
	return next(ctx, args...)
}

// Handlers that always delegate are indistinguishable from no handlers.
func TestRunChain_PassThroughProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(t, "handlers")
		arg := rapid.String().Draw(t, "arg")

		m := NewManager(nil, WithLogger(observability.NewDiscardLogger()))
		for i := 0; i < n; i++ {
			m.Register("cat", plugins.NewHandlerSet(fmt.Sprint(i), map[string]plugins.Handler{"h": passThrough}))
		}

		var calls int
		res, err := m.RunChain(context.Background(), "cat", "h", func(_ context.Context, args ...any) (any, error) {
			calls++
			return "default:" + args[0].(string), nil
		}, arg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res != "default:"+arg {
			t.Fatalf("got %v", res)
		}
		if calls != 1 {
			t.Fatalf("default called %d times", calls)
		}
	})
}

// A chain visits handlers from last to first and the default last.
func TestRunChain_VisitOrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "handlers")
		stop := rapid.IntRange(-1, n-1).Draw(t, "stop")

		m := NewManager(nil, WithLogger(observability.NewDiscardLogger()))
		var visited []int
		for i := 0; i < n; i++ {
			i := i
			m.Register("cat", plugins.NewHandlerSet(fmt.Sprint(i), map[string]plugins.Handler{
				"h": func(ctx context.Context, next plugins.Next, args ...any) (any, error) {
					visited = append(visited, i)
					if i == stop {
						return i, nil
					}
					return next(ctx, args...)
				},
			}))
		}

		res, err := m.RunChain(context.Background(), "cat", "h", func(context.Context, ...any) (any, error) {
			visited = append(visited, -1)
			return -1, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res != stop {
			t.Fatalf("got result %v, want %d", res, stop)
		}

		// The default records -1, so stop == -1 means every handler delegated.
		want := []int{}
		for i := n - 1; i >= stop; i-- {
			want = append(want, i)
		}
		if fmt.Sprint(visited) != fmt.Sprint(want) {
			t.Fatalf("visited %v, want %v", visited, want)
		}
	})
}
