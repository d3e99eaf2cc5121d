// Package async provides a safe way to run background tasks.
//
// SafeGo runs a function in a goroutine with panic recovery, optional
// timeout and logrus error logging:
//
//	done := async.SafeGo(ctx, logger, 0, "metrics server", func(ctx context.Context) error {
//		return server.ListenAndServe()
//	})
//	<-done
package async
