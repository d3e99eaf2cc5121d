package interaction

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/hookrt/pkg/hooks"
	"github.com/platinummonkey/hookrt/pkg/observability"
	"github.com/platinummonkey/hookrt/pkg/plugins"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager() *hooks.Manager {
	return hooks.NewManager(nil, hooks.WithLogger(observability.NewDiscardLogger()))
}

func TestCoordinator_DefaultTerminal(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	in := strings.NewReader("alice\r\nhunter2\n")

	c := NewCoordinator(newManager(),
		WithTerminal(NewLineTerminal(in, &out)),
		WithLogger(observability.NewDiscardLogger()),
	)

	require.NoError(t, c.DisplayMessage(ctx, "deploy", "starting"))

	name, err := c.RequestInput(ctx, "deploy", "Name")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	secret, err := c.RequestSecretInput(ctx, "", "Password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", secret)

	assert.Equal(t, "[deploy] starting\n[deploy] Name: Password: ", out.String())
}

func TestCoordinator_HandlersIntercept(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	var shown []string
	m.Register(Category, plugins.NewHandlerSet("test", map[string]plugins.Handler{
		HookDisplayMessage: func(_ context.Context, _ plugins.Next, args ...any) (any, error) {
			shown = append(shown, args[1].(string))
			return nil, nil
		},
		HookRequestInput: func(ctx context.Context, next plugins.Next, args ...any) (any, error) {
			return next(ctx, args[0], "Your "+args[1].(string))
		},
		HookRequestSecretInput: func(context.Context, plugins.Next, ...any) (any, error) {
			return "from-vault", nil
		},
	}))

	var out bytes.Buffer
	c := NewCoordinator(m,
		WithTerminal(NewLineTerminal(strings.NewReader("bob\n"), &out)),
		WithLogger(observability.NewDiscardLogger()),
	)

	require.NoError(t, c.DisplayMessage(ctx, "x", "hello"))
	assert.Equal(t, []string{"hello"}, shown)

	name, err := c.RequestInput(ctx, "x", "name")
	require.NoError(t, err)
	assert.Equal(t, "bob", name)
	assert.Equal(t, "[x] Your name: ", out.String())

	secret, err := c.RequestSecretInput(ctx, "x", "token")
	require.NoError(t, err)
	assert.Equal(t, "from-vault", secret)
}

func TestCoordinator_SecretNeverLogged(t *testing.T) {
	var logs bytes.Buffer
	logger := observability.NewLogger(observability.DebugLevel, observability.JSONFormat, &logs)

	c := NewCoordinator(newManager(),
		WithTerminal(NewLineTerminal(strings.NewReader("correct-horse\n"), &bytes.Buffer{})),
		WithLogger(logger),
	)

	secret, err := c.RequestSecretInput(context.Background(), "keystore", "Password")
	require.NoError(t, err)
	assert.Equal(t, "correct-horse", secret)
	assert.NotEmpty(t, logs.String())
	assert.NotContains(t, logs.String(), "correct-horse")
	assert.Contains(t, logs.String(), "interaction_id")
}

// recorder is a userInterruption handler set that logs when each
// interaction starts and ends.
type recorder struct {
	mu     sync.Mutex
	events []string
	delay  time.Duration
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) set() *plugins.HandlerSet {
	h := func(_ context.Context, _ plugins.Next, args ...any) (any, error) {
		msg := args[1].(string)
		r.add("start:" + msg)
		time.Sleep(r.delay)
		r.add("end:" + msg)
		return msg, nil
	}
	return plugins.NewHandlerSet("recorder", map[string]plugins.Handler{
		HookDisplayMessage: h,
		HookRequestInput:   h,
	})
}

func TestCoordinator_NoInterleaving(t *testing.T) {
	m := newManager()
	rec := &recorder{delay: 10 * time.Millisecond}
	m.Register(Category, rec.set())
	c := NewCoordinator(m, WithLogger(observability.NewDiscardLogger()))

	var wg sync.WaitGroup
	for _, msg := range []string{"a", "b", "c", "d"} {
		msg := msg
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.RequestInput(context.Background(), "t", msg)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	events := rec.snapshot()
	require.Len(t, events, 8)
	for i := 0; i < len(events); i += 2 {
		msg := strings.TrimPrefix(events[i], "start:")
		assert.Equal(t, "end:"+msg, events[i+1], "interaction %q was interleaved: %v", msg, events)
	}
}

func TestCoordinator_Uninterrupted(t *testing.T) {
	m := newManager()
	rec := &recorder{}
	m.Register(Category, rec.set())
	c := NewCoordinator(m, WithLogger(observability.NewDiscardLogger()))

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- c.Uninterrupted(context.Background(), func(ctx context.Context) error {
			if err := c.DisplayMessage(ctx, "t", "first"); err != nil {
				return err
			}
			close(entered)
			<-release
			return c.DisplayMessage(ctx, "t", "second")
		})
	}()

	<-entered
	outsider := make(chan error, 1)
	go func() {
		outsider <- c.DisplayMessage(context.Background(), "t", "outsider")
	}()

	require.Eventually(t, func() bool { return c.Waiting() == 1 }, time.Second, time.Millisecond)
	close(release)

	require.NoError(t, <-done)
	require.NoError(t, <-outsider)
	assert.Equal(t, []string{
		"start:first", "end:first",
		"start:second", "end:second",
		"start:outsider", "end:outsider",
	}, rec.snapshot())
}

func TestCoordinator_FailureReleasesSection(t *testing.T) {
	boom := errors.New("prompt failed")
	m := newManager()
	fail := plugins.NewHandlerSet("fail", map[string]plugins.Handler{
		HookRequestInput: func(context.Context, plugins.Next, ...any) (any, error) {
			return nil, boom
		},
	})
	m.Register(Category, fail)

	c := NewCoordinator(m,
		WithTerminal(NewLineTerminal(strings.NewReader("ok\n"), &bytes.Buffer{})),
		WithLogger(observability.NewDiscardLogger()),
	)

	_, err := c.RequestInput(context.Background(), "t", "x")
	assert.ErrorIs(t, err, boom)

	m.Unregister(Category, fail)
	v, err := c.RequestInput(context.Background(), "t", "x")
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestCoordinator_DefaultRejectsMalformedArgs(t *testing.T) {
	m := newManager()
	m.Register(Category, plugins.NewHandlerSet("bad", map[string]plugins.Handler{
		HookDisplayMessage: func(ctx context.Context, next plugins.Next, _ ...any) (any, error) {
			return next(ctx, "only-one")
		},
	}))
	c := NewCoordinator(m, WithTerminal(NewLineTerminal(strings.NewReader(""), &bytes.Buffer{})))

	err := c.DisplayMessage(context.Background(), "t", "x")
	assert.ErrorContains(t, err, "(interruptor, message)")
}

func TestCoordinator_Cancellation(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	c := NewCoordinator(newManager(),
		WithTerminal(NewLineTerminal(pr, &bytes.Buffer{})),
		WithLogger(observability.NewDiscardLogger()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.RequestInput(ctx, "t", "never answered")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, c.section.Busy())
}

func TestCoordinator_Metrics(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	c := NewCoordinator(newManager(),
		WithTerminal(NewLineTerminal(strings.NewReader(""), &bytes.Buffer{})),
		WithLogger(observability.NewDiscardLogger()),
		WithMetrics(metrics),
	)

	require.NoError(t, c.DisplayMessage(context.Background(), "t", "x"))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.InteractionsTotal.WithLabelValues(HookDisplayMessage, "success")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.InteractionWaitSeconds))
}
