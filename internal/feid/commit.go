package feid

import (
	"context"
	"fmt"
	"slices"

	"feid-go/internal/tables"
)

// Commit submits every table with pending state in one request and returns
// the names of the committed tables. Without pending state nothing is sent.
//
// On success the overlay and the staged copy are cleared, the cached
// snapshots are invalidated and the tables re-fetched. On failure everything
// is kept for a retry and the server's error is returned.
func (s *Service) Commit(ctx context.Context) ([]string, error) {
	if err := s.restorePending(); err != nil {
		return nil, err
	}
	pending := s.tables.AllPending()
	if len(pending) == 0 {
		s.logger.Info("nothing to commit")
		return nil, nil
	}

	names := make([]string, 0, len(pending))
	for _, name := range tables.Editable {
		if _, ok := pending[name]; ok {
			names = append(names, name)
		}
	}

	if err := s.api.CommitChanges(ctx, pending); err != nil {
		s.logger.Error("commit failed", "tables", names, "error", err)
		return nil, fmt.Errorf("committing changes: %w", err)
	}
	s.logger.Info("changes committed", "tables", names)

	s.tables.ResetChanges(false)
	if err := s.staging.Clear(); err != nil {
		return names, fmt.Errorf("clearing staged changes: %w", err)
	}
	if err := s.cache.InvalidateSnapshots(tables.Editable...); err != nil {
		s.logger.Warn("invalidating cached snapshots", "error", err)
	}
	for _, name := range tables.Editable {
		if !slices.Contains(names, name) && !s.tables.Loaded(name) {
			continue
		}
		if err := s.fetch(ctx, name); err != nil {
			s.logger.Warn("re-fetching after commit", "table", name, "error", err)
		}
	}
	return names, nil
}
