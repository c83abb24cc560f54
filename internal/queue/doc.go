// Package queue stores transform jobs in SQLite.
//
// ClaimNext hands each pending job to exactly one worker. Workers then move
// it through planning, transcoding and captioning to completed or failed,
// refreshing a heartbeat as they go so jobs abandoned by a dead worker can be
// reclaimed. Opening a database migrates it forward; a database from a newer
// build is refused.
package queue
