package feid

import (
	"context"
	"fmt"

	"feid-go/internal/model"
	"feid-go/internal/tables"
)

// mutate runs fn against the overlay store and stages the result. If staging
// fails the in-memory overlay is rolled back, so nothing unsaved lingers.
func (s *Service) mutate(fn func() error) error {
	prev := s.tables.AllPending()
	if err := fn(); err != nil {
		return err
	}
	if err := s.staging.Save(s.tables.AllPending()); err != nil {
		for _, name := range tables.Editable {
			if rerr := s.tables.RestorePending(name, prev[name]); rerr != nil {
				s.logger.Error("rolling back pending changes", "table", name, "error", rerr)
			}
		}
		return fmt.Errorf("staging pending changes: %w", err)
	}
	return nil
}

// ensure loads the given tables (from cache if possible) and the staged overlay.
func (s *Service) ensure(ctx context.Context, names ...string) error {
	if err := s.restorePending(); err != nil {
		return err
	}
	for _, name := range names {
		if err := s.load(ctx, name, false); err != nil {
			return err
		}
	}
	return nil
}

// column looks up a user-writable column. The first column is the row id.
func (s *Service) column(table, key string) (model.Column, error) {
	cols, err := s.tables.Columns(table)
	if err != nil {
		return model.Column{}, err
	}
	i := model.ColumnIndex(cols, key)
	switch {
	case i < 0:
		return model.Column{}, fmt.Errorf("unknown column %s.%s", table, key)
	case i == 0:
		return model.Column{}, fmt.Errorf("%w: %s.%s", tables.ErrIDColumn, table, key)
	}
	return cols[i], nil
}

// MakeChange parses text for the column type and records the edit. Input
// that does not parse is rejected and never reaches the pending state.
func (s *Service) MakeChange(ctx context.Context, table string, id int64, column, text string) error {
	if err := s.ensure(ctx, table); err != nil {
		return err
	}
	col, err := s.column(table, column)
	if err != nil {
		return err
	}
	v, err := model.ParseValue(col, text)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", column, err)
	}
	return s.ApplyChanges(ctx, table, model.Change{ID: id, Column: column, Value: v})
}

// ApplyChanges records a batch of typed edits.
func (s *Service) ApplyChanges(ctx context.Context, table string, edits ...model.Change) error {
	if err := s.ensure(ctx, table); err != nil {
		return err
	}
	err := s.mutate(func() error { return s.tables.MakeChange(table, edits...) })
	if err != nil {
		return err
	}
	s.logger.Info("changes recorded", "table", table, "count", len(edits))
	return nil
}

// CreateRow creates a pending row from textual field values and returns its
// temporary id.
func (s *Service) CreateRow(ctx context.Context, table string, fields map[string]string) (int64, error) {
	if err := s.ensure(ctx, table); err != nil {
		return 0, err
	}
	typed := make(map[string]any, len(fields))
	for key, text := range fields {
		col, err := s.column(table, key)
		if err != nil {
			return 0, err
		}
		v, err := model.ParseValue(col, text)
		if err != nil {
			return 0, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		typed[key] = v
	}

	var id int64
	err := s.mutate(func() error {
		var err error
		id, err = s.tables.CreateRow(table, typed)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("row created", "table", table, "id", id)
	return id, nil
}

// DeleteRow marks a row for deletion, cascading to join rows for source tables.
func (s *Service) DeleteRow(ctx context.Context, table string, id int64) error {
	if err := s.ensure(ctx, table, tables.FEIDSources); err != nil {
		return err
	}
	if err := s.mutate(func() error { return s.tables.DeleteRow(table, id) }); err != nil {
		return err
	}
	s.logger.Info("row deleted", "table", table, "id", id)
	return nil
}

// LinkSource links a source row (a new one when existingID is 0) to an event.
// Both the event and an existing source must be visible.
func (s *Service) LinkSource(ctx context.Context, table string, eventID, existingID int64) (int64, int64, error) {
	if err := s.ensure(ctx, table, tables.FEIDSources, tables.FEID); err != nil {
		return 0, 0, err
	}
	var sourceID, joinID int64
	err := s.mutate(func() error {
		var err error
		sourceID, joinID, err = s.tables.LinkSource(table, eventID, existingID)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	if joinID == 0 {
		return 0, 0, fmt.Errorf("%w: event %d or %s row %d", tables.ErrUnknownRow, eventID, table, existingID)
	}
	s.logger.Info("source linked", "table", table, "event", eventID, "source", sourceID, "join", joinID)
	return sourceID, joinID, nil
}

// DiscardChange drops the pending edit of one cell.
func (s *Service) DiscardChange(ctx context.Context, table string, id int64, column string) error {
	if err := s.ensure(ctx, table); err != nil {
		return err
	}
	return s.mutate(func() error { return s.tables.DiscardChange(table, id, column) })
}

// DiscardCreated drops a pending created row.
func (s *Service) DiscardCreated(ctx context.Context, table string, id int64) error {
	if err := s.ensure(ctx, table); err != nil {
		return err
	}
	return s.mutate(func() error { return s.tables.DiscardCreated(table, id) })
}

// DiscardDeleted restores a row marked for deletion.
func (s *Service) DiscardDeleted(ctx context.Context, table string, id int64) error {
	if err := s.ensure(ctx, table); err != nil {
		return err
	}
	return s.mutate(func() error { return s.tables.DiscardDeleted(table, id) })
}

// ResetChanges discards the pending state of every table.
func (s *Service) ResetChanges() error {
	if err := s.restorePending(); err != nil {
		return err
	}
	s.tables.ResetChanges(false)
	if err := s.staging.Clear(); err != nil {
		return fmt.Errorf("clearing staged changes: %w", err)
	}
	s.logger.Info("pending changes discarded")
	return nil
}

// Status returns the pending state of every table that has any.
func (s *Service) Status() (map[string]tables.Pending, error) {
	if err := s.restorePending(); err != nil {
		return nil, err
	}
	return s.tables.AllPending(), nil
}
