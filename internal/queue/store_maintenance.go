package queue

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Diagnose reports the database file size, schema version, integrity and
// job count. A failing integrity check is reported, not returned as an error.
func (s *Store) Diagnose(ctx context.Context) (Diagnostics, error) {
	diag := Diagnostics{Path: s.path}
	if info, err := os.Stat(s.path); err == nil {
		diag.SizeBytes = info.Size()
	}
	version, err := s.userVersion(ctx)
	if err != nil {
		return diag, err
	}
	diag.SchemaVersion = version

	var integrity string
	if err := s.db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&integrity); err != nil {
		return diag, fmt.Errorf("integrity check: %w", err)
	}
	diag.IntegrityOK = strings.EqualFold(integrity, "ok")

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM queue_items").Scan(&diag.Jobs); err != nil {
		return diag, fmt.Errorf("count jobs: %w", err)
	}
	return diag, nil
}
