// Package daemonctl is the CLI side of the daemon's HTTP API: a small client
// for status, job, and log endpoints.
package daemonctl
