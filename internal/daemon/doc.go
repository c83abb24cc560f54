// Package daemon is the long-running reframe server.
//
// A Daemon holds the flock on the lock file, owns the queue store and the
// workflow manager, stores uploads, and serves the HTTP API under /api. The
// transform pipeline itself lives in package job; the daemon only accepts,
// tracks and serves jobs.
package daemon
