// Package notifications announces job outcomes through ntfy.
//
// NewService returns a no-op Service when no topic is configured, so callers
// publish unconditionally. Which outcomes are announced follows the
// notifications section of the config.
package notifications
