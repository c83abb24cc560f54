package queue

import (
	"context"
	"fmt"
)

func (s *Store) SetUserVersionForTest(version int) error {
	_, err := s.db.ExecContext(context.Background(), fmt.Sprintf("PRAGMA user_version = %d", version))
	return err
}
