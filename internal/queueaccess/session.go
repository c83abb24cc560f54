package queueaccess

import (
	"context"
	"errors"
	"fmt"

	"reframe/internal/daemonctl"
	"reframe/internal/queue"
)

// Source names the backend serving a Session.
type Source string

const (
	SourceDaemon Source = "daemon"
	SourceStore  Source = "store"
)

// Backends lists the ways a Session can be served, in preference order.
type Backends struct {
	Dial      func(ctx context.Context) (*daemonctl.Client, error)
	OpenStore func() (*queue.Store, error)
}

// Session is an Access plus whatever it holds open.
type Session struct {
	Access
	Source Source
	close  func() error
}

// Close releases the store when the session owns one.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open prefers the daemon and opens the database only when nothing answers
// on the API address. A daemon that answers but rejects the call is an error,
// since writing to the database behind its back would race its workers.
func Open(ctx context.Context, b Backends) (Session, error) {
	if b.Dial != nil {
		client, err := b.Dial(ctx)
		switch {
		case err == nil && client != nil:
			return Session{Access: NewHTTPAccess(client), Source: SourceDaemon}, nil
		case err != nil && !errors.Is(err, daemonctl.ErrUnavailable):
			return Session{}, err
		}
	}
	if b.OpenStore == nil {
		return Session{}, errors.New("open queue store: no store configured")
	}
	store, err := b.OpenStore()
	if err != nil {
		return Session{}, fmt.Errorf("open queue store: %w", err)
	}
	return Session{Access: NewStoreAccess(store), Source: SourceStore, close: store.Close}, nil
}
