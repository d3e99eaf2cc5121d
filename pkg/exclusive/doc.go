// Package exclusive provides a FIFO mutual-exclusion section for work that
// must never interleave, such as prompting the user.
//
// At most one body runs at a time. Callers that arrive while the section is
// busy wait in arrival order; a waiting caller whose context ends leaves the
// queue without disturbing the others. A body that fails or panics releases
// the section before the failure reaches its caller.
//
// The context handed to a body marks the section as held, so the body may
// call Run on the same section again without deadlocking:
//
//	section := exclusive.New()
//	err := section.Run(ctx, func(ctx context.Context) error {
//		// Runs immediately: ctx already holds the section.
//		return section.Run(ctx, askTwice)
//	})
package exclusive
