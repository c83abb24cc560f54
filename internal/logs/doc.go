// Package logs tails the daemon's on-disk log file.
//
// `reframe logs` reads through the daemon's HTTP log stream when the daemon
// is running and falls back to this package otherwise, so the last run's
// output stays reachable after the daemon exits. Offsets are byte positions
// into the file; a negative offset asks for the last Limit lines.
package logs
