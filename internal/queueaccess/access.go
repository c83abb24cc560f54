package queueaccess

import (
	"context"
	"fmt"
	"strings"

	"reframe/internal/api"
	"reframe/internal/daemonctl"
	"reframe/internal/queue"
)

// Access provides job queue operations regardless of HTTP or direct store backing.
type Access interface {
	Stats(ctx context.Context) (map[string]int, error)
	List(ctx context.Context, statuses []string) ([]api.Job, error)
	Describe(ctx context.Context, id int64) (*api.Job, error)
	Retry(ctx context.Context, ids []int64) (int64, error)
	Remove(ctx context.Context, ids []int64) (int64, error)
	Clear(ctx context.Context, scope string) (int64, error)
}

// NewHTTPAccess returns an Access backed by the daemon API.
func NewHTTPAccess(client *daemonctl.Client) Access {
	return &httpAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(store *queue.Store) Access {
	return &storeAccess{store: store, jobs: api.NewJobCatalog(store)}
}

type httpAccess struct {
	client *daemonctl.Client
}

func (a *httpAccess) Stats(ctx context.Context) (map[string]int, error) {
	status, err := a.client.Status(ctx)
	if err != nil {
		return nil, err
	}
	return status.Workflow.QueueStats, nil
}

func (a *httpAccess) List(ctx context.Context, statuses []string) ([]api.Job, error) {
	return a.client.Jobs(ctx, statuses)
}

func (a *httpAccess) Describe(ctx context.Context, id int64) (*api.Job, error) {
	return a.client.Job(ctx, id)
}

func (a *httpAccess) Retry(ctx context.Context, ids []int64) (int64, error) {
	var count int64
	for _, id := range ids {
		if _, err := a.client.Retry(ctx, id); err != nil {
			return count, fmt.Errorf("retry job %d: %w", id, err)
		}
		count++
	}
	return count, nil
}

func (a *httpAccess) Remove(ctx context.Context, ids []int64) (int64, error) {
	var count int64
	for _, id := range ids {
		if err := a.client.Remove(ctx, id); err != nil {
			return count, fmt.Errorf("remove job %d: %w", id, err)
		}
		count++
	}
	return count, nil
}

func (a *httpAccess) Clear(ctx context.Context, scope string) (int64, error) {
	return a.client.Clear(ctx, scope)
}

type storeAccess struct {
	store *queue.Store
	jobs  *api.JobCatalog
}

func (a *storeAccess) Stats(ctx context.Context) (map[string]int, error) {
	return a.jobs.Stats(ctx)
}

func (a *storeAccess) List(ctx context.Context, statuses []string) ([]api.Job, error) {
	return a.jobs.List(ctx, statuses)
}

func (a *storeAccess) Describe(ctx context.Context, id int64) (*api.Job, error) {
	return a.jobs.Describe(ctx, id)
}

func (a *storeAccess) Retry(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return a.store.RetryFailed(ctx, ids...)
}

func (a *storeAccess) Remove(ctx context.Context, ids []int64) (int64, error) {
	var count int64
	for _, id := range ids {
		item, err := a.store.GetByID(ctx, id)
		if err != nil {
			return count, err
		}
		if item == nil {
			continue
		}
		if item.IsProcessing() {
			return count, fmt.Errorf("job %d is %s", id, item.Status)
		}
		removed, err := a.store.Remove(ctx, id)
		if err != nil {
			return count, err
		}
		if removed {
			count++
		}
	}
	return count, nil
}

func (a *storeAccess) Clear(ctx context.Context, scope string) (int64, error) {
	switch strings.ToLower(strings.TrimSpace(scope)) {
	case "completed":
		return a.store.ClearCompleted(ctx)
	case "failed":
		return a.store.ClearFailed(ctx)
	case "", "all":
		return a.store.Clear(ctx)
	}
	return 0, fmt.Errorf("unknown scope %q", scope)
}
