// Package preflight provides readiness checks for the external tools and
// filesystem paths reframe depends on.
//
// These checks run in three contexts:
//   - The daemon runs RunAll at startup and reports failures in /api/status.
//   - The job coordinator calls a FreeSpace checker before each transcode
//     so a full disk fails fast instead of midway through an encode.
//   - The CLI "reframe status" command renders the same results as a table.
//
// Caption tooling is only checked when captions are enabled.
package preflight
