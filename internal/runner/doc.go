// Package runner is the virtual-user scheduler.
//
// A [Runner] starts a fixed number of virtual users. Each one calls the
// [Requester] in a loop, back to back, until the run's duration elapses; any
// pacing between iterations is the Requester's business. Virtual users share
// nothing but the Requester.
//
//	r := runner.New(runner.Options{
//		VUs:       10,
//		Duration:  30 * time.Second,
//		Requester: iteration,
//	})
//	result := r.Run(ctx)
//
// # Stopping
//
// When Duration elapses no new iteration starts. Iterations still running get
// GracefulStop to finish; after that their context is cancelled and they are
// counted in [Result.Interrupted] rather than as failures. With the default
// GracefulStop of zero, in-flight requests are interrupted immediately.
//
// # Rate Cap
//
// RatePerSecond optionally caps iteration starts across all virtual users
// using a token bucket from golang.org/x/time/rate.
//
// # Middleware
//
// [WithLogging] reports failed iterations to a [FailureLogger];
// [ZerologFailureLogger] writes them as zerolog warnings.
package runner
