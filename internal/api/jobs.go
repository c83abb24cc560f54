package api

import (
	"context"
	"fmt"
	"strings"

	"reframe/internal/queue"
	"reframe/internal/services"
)

// JobStore is the read side of the job queue.
type JobStore interface {
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Item, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	GetByID(ctx context.Context, id int64) (*queue.Item, error)
}

// JobCatalog answers job queries with API DTOs. The daemon handlers and the
// CLI's offline store access share it so both present jobs identically.
type JobCatalog struct {
	store JobStore
}

func NewJobCatalog(store JobStore) *JobCatalog {
	return &JobCatalog{store: store}
}

// ParseStatusFilter accepts repeated or comma separated status names.
// Unknown names are an ErrInvalidSpec error.
func ParseStatusFilter(values []string) ([]queue.Status, error) {
	var statuses []queue.Status
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status, ok := queue.ParseStatus(part)
			if !ok {
				return nil, services.Wrap(services.ErrInvalidSpec, "jobs", "filter", fmt.Sprintf("unknown status %q", part), nil)
			}
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}

// List returns jobs newest first, optionally filtered by status name.
func (c *JobCatalog) List(ctx context.Context, statusNames []string) ([]Job, error) {
	statuses, err := ParseStatusFilter(statusNames)
	if err != nil {
		return nil, err
	}
	items, err := c.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromQueueItems(items), nil
}

// Stats reports a count for every status, zero included.
func (c *JobCatalog) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe returns nil without error for an unknown id.
func (c *JobCatalog) Describe(ctx context.Context, id int64) (*Job, error) {
	item, err := c.store.GetByID(ctx, id)
	if err != nil || item == nil {
		return nil, err
	}
	dto := FromQueueItem(item)
	return &dto, nil
}
