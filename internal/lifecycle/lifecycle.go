// Package lifecycle holds process-wide drain state shared by main and the health check.
package lifecycle

import "sync/atomic"

var shuttingDown atomic.Bool

// SetShuttingDown flips the drain flag. main sets it on SIGTERM/SIGINT before
// http.Server.Shutdown so load balancers see /health go 503 first.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}
