// Package services holds the error markers and context tracing shared by the
// pipeline and the tool wrappers under it.
//
// Every pipeline failure is built with Wrap so it carries a marker, which Kind
// turns into the stable snake_case string stored with failed jobs and
// returned by the API. Trace values attached with WithJobID, WithStage and
// WithRequestID end up as log attributes.
package services
