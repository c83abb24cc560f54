// Package workflow drains the transform queue with a fixed pool of workers.
//
// The Manager starts one goroutine per configured worker. Each worker claims
// the oldest pending item, rebuilds its transform request, and hands it to
// the job coordinator while mirroring stage transitions and transcode
// progress back into the queue. Heartbeats keep in-flight items alive;
// items whose heartbeat goes stale are returned to pending.
//
// Failures are classified with services.Kind and persisted with the stage
// that raised them, so the API can distinguish bad input from a failing
// encoder.
package workflow
