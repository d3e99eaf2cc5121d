package interaction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/hookrt/pkg/exclusive"
	"github.com/platinummonkey/hookrt/pkg/hooks"
	"github.com/platinummonkey/hookrt/pkg/observability"
	"github.com/platinummonkey/hookrt/pkg/plugins"
	"github.com/sirupsen/logrus"
)

// Category is the hook category interaction handlers register under. Every
// hook receives (interruptor string, message string).
const Category = "userInterruption"

// Hook names of the userInterruption category.
const (
	HookDisplayMessage     = "displayMessage"
	HookRequestInput       = "requestInput"
	HookRequestSecretInput = "requestSecretInput"
)

// ChainRunner runs a hook chain. *hooks.Manager implements it.
type ChainRunner interface {
	RunChain(ctx context.Context, category, hook string, def plugins.Next, args ...any) (any, error)
}

// Coordinator is the single entry point for user interaction.
type Coordinator struct {
	hooks    ChainRunner
	section  *exclusive.Section
	terminal Terminal
	logger   *logrus.Logger
	metrics  *observability.Metrics
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTerminal sets the terminal the default handlers use.
func WithTerminal(t Terminal) Option {
	return func(c *Coordinator) {
		c.terminal = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithMetrics records interactions and section wait times.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = metrics
	}
}

// NewCoordinator creates a coordinator over runner. Without WithTerminal the
// default handlers use the process's standard streams.
func NewCoordinator(runner ChainRunner, opts ...Option) *Coordinator {
	c := &Coordinator{hooks: runner}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logrus.New()
	}
	if c.terminal == nil {
		c.terminal = StdTerminal()
	}
	c.section = exclusive.New(exclusive.WithWaitObserver(c.metrics.ObserveInteractionWait))
	return c
}

// DisplayMessage shows message to the user.
func (c *Coordinator) DisplayMessage(ctx context.Context, interruptor, message string) error {
	def := func(ctx context.Context, args ...any) (any, error) {
		who, msg, err := interactionArgs(args)
		if err != nil {
			return nil, err
		}
		return nil, c.terminal.DisplayMessage(ctx, who, msg)
	}

	_, err := c.interact(ctx, HookDisplayMessage, interruptor, message, def)
	return err
}

// RequestInput asks the user for a line of input.
func (c *Coordinator) RequestInput(ctx context.Context, interruptor, description string) (string, error) {
	def := func(ctx context.Context, args ...any) (any, error) {
		who, msg, err := interactionArgs(args)
		if err != nil {
			return nil, err
		}
		return c.terminal.RequestInput(ctx, who, msg)
	}

	return c.interact(ctx, HookRequestInput, interruptor, description, def)
}

// RequestSecretInput asks the user for input that is neither echoed nor
// logged.
func (c *Coordinator) RequestSecretInput(ctx context.Context, interruptor, description string) (string, error) {
	def := func(ctx context.Context, args ...any) (any, error) {
		who, msg, err := interactionArgs(args)
		if err != nil {
			return nil, err
		}
		return c.terminal.RequestSecretInput(ctx, who, msg)
	}

	return c.interact(ctx, HookRequestSecretInput, interruptor, description, def)
}

// Uninterrupted runs body under the interaction section without going
// through any hook. Interactions started from body with the context it
// receives run inside the same section.
//
// Re-entry is keyed on that context alone. Goroutines body starts with it,
// such as RunInParallel handlers, all count as the holder and their
// interactions may interleave.
func (c *Coordinator) Uninterrupted(ctx context.Context, body func(ctx context.Context) error) error {
	return c.section.Run(ctx, body)
}

// Waiting returns the number of callers queued for the interaction section.
func (c *Coordinator) Waiting() int {
	return c.section.Waiting()
}

func (c *Coordinator) interact(ctx context.Context, hook, interruptor, message string, def plugins.Next) (string, error) {
	log := c.logger.WithFields(logrus.Fields{
		"interaction_id": uuid.NewString(),
		"hook":           hook,
		"interruptor":    interruptor,
	})

	start := time.Now()
	result, err := exclusive.Do(ctx, c.section, func(ctx context.Context) (string, error) {
		log.Debug("Interaction started")
		return hooks.As[string](c.hooks.RunChain(ctx, Category, hook, def, interruptor, message))
	})

	c.metrics.RecordInteraction(hook, err)
	if err != nil {
		log.WithError(err).Debug("Interaction failed")
		return "", err
	}

	log.WithField("duration", time.Since(start)).Debug("Interaction finished")
	return result, nil
}

func interactionArgs(args []any) (string, string, error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("userInterruption hooks take (interruptor, message), got %d arguments", len(args))
	}
	who, ok := args[0].(string)
	if !ok {
		return "", "", fmt.Errorf("interruptor must be a string, got %T", args[0])
	}
	msg, ok := args[1].(string)
	if !ok {
		return "", "", fmt.Errorf("message must be a string, got %T", args[1])
	}
	return who, msg, nil
}
