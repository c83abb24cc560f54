// Package logging builds the slog loggers reframe writes through.
//
// New picks a console or JSON handler and fans out to stdout, stderr or log
// files. WithContext adds the job, stage and request ids found on a context.
// A StreamHub attached through Options keeps the most recent events in memory
// for the daemon's /api/logs endpoint.
package logging
