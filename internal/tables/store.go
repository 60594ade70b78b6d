package tables

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"feid-go/internal/model"
)

// tempIDModulus bounds the magnitude of client-side temporary ids.
const tempIDModulus = 1_000_000_000

// table is the overlay state of a single table.
type table struct {
	columns []model.Column
	raw     []model.Row
	pending Pending
	visible []model.Row
}

// Store holds the editable tables and their pending-edit overlays. The raw
// server snapshot is never mutated; all local edits live in the pending sets
// and are folded into the visible rows.
//
// Store is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	tables map[string]*table
	now    func() time.Time
}

// NewStore creates a store with an empty state for every editable table.
// now is used to derive temporary ids for created rows.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	s := &Store{tables: make(map[string]*table), now: now}
	for _, name := range Editable {
		s.tables[name] = &table{}
	}
	return s
}

func (s *Store) get(name string) (*table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

func (s *Store) recompute(name string, t *table) {
	t.visible = Materialize(t.columns, t.raw, t.pending, sortRules[name])
}

// SetRawData replaces the server snapshot and columns of a table. Pending
// edits are kept; edits referring to rows that no longer exist simply have
// no effect on the visible rows.
func (s *Store) SetRawData(name string, rows []model.Row, columns []model.Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.get(name)
	if err != nil {
		return err
	}
	t.raw = rows
	t.columns = columns
	s.recompute(name, t)
	return nil
}

// MakeChange records one or more cell edits. An edit whose value equals the
// original value of the cell drops any pending change for it; otherwise it
// replaces the pending change for the same (id, column). Edits addressing an
// unknown row or column, or the id column, are ignored.
//
// Intermediate edits of a batch patch the visible rows in place; the full
// recomputation runs once at the end.
func (s *Store) MakeChange(name string, edits ...model.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.get(name)
	if err != nil {
		return err
	}

	for i, e := range edits {
		col := model.ColumnIndex(t.columns, e.Column)
		if col <= 0 {
			continue
		}
		orig, ok := t.original(e.ID, col)
		if !ok {
			continue
		}

		at := slices.IndexFunc(t.pending.Changes, func(c model.Change) bool {
			return c.ID == e.ID && c.Column == e.Column
		})
		switch {
		case model.ValuesEqual(orig, e.Value):
			if at >= 0 {
				t.pending.Changes = slices.Delete(t.pending.Changes, at, at+1)
			}
		case at >= 0:
			t.pending.Changes[at].Value = e.Value
		default:
			t.pending.Changes = append(t.pending.Changes, e)
		}

		if i < len(edits)-1 {
			t.patchVisible(e.ID, col, e.Value)
		}
	}

	s.recompute(name, t)
	return nil
}

// original returns the unedited value of a cell, looking at the server
// snapshot first and then at pending created rows.
func (t *table) original(id int64, col int) (any, bool) {
	for _, src := range [][]model.Row{t.raw, t.pending.Created} {
		for _, r := range src {
			if r.ID() == id {
				if col >= len(r) {
					return nil, false
				}
				return r[col], true
			}
		}
	}
	return nil, false
}

func (t *table) patchVisible(id int64, col int, value any) {
	for _, r := range t.visible {
		if r.ID() == id && col < len(r) {
			r[col] = value
			return
		}
	}
}

// CreateRow adds a new pending row built from the table's column order,
// with unset fields left null, and returns its temporary id. Temporary ids
// are negative so they never collide with server ids.
func (s *Store) CreateRow(name string, fields map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.get(name)
	if err != nil {
		return 0, err
	}
	id, err := s.createRow(t, name, fields)
	if err != nil {
		return 0, err
	}
	s.recompute(name, t)
	return id, nil
}

func (s *Store) createRow(t *table, name string, fields map[string]any) (int64, error) {
	if len(t.columns) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoColumns, name)
	}

	id := s.tempID(t)
	row := make(model.Row, len(t.columns))
	row[0] = id
	for i := 1; i < len(t.columns); i++ {
		if v, ok := fields[t.columns[i].Key]; ok {
			row[i] = v
		}
	}
	t.pending.Created = append([]model.Row{row}, t.pending.Created...)
	return id, nil
}

// tempID derives a fresh negative id from the current time, stepping down
// until it is unique among the table's pending rows.
func (s *Store) tempID(t *table) int64 {
	id := -(s.now().UnixMilli() % tempIDModulus)
	if id == 0 {
		id = -1
	}
	for t.hasRow(id) {
		id--
	}
	return id
}

func (t *table) hasRow(id int64) bool {
	for _, src := range [][]model.Row{t.raw, t.pending.Created} {
		for _, r := range src {
			if r.ID() == id {
				return true
			}
		}
	}
	return false
}

func (t *table) isVisible(id int64) bool {
	return slices.ContainsFunc(t.visible, func(r model.Row) bool { return r.ID() == id })
}

// DeleteRow marks a row for deletion and removes it from the visible rows
// right away. Deleting an eruption or coronal hole source also deletes the
// join rows that reference it.
func (s *Store) DeleteRow(name string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.get(name)
	if err != nil {
		return err
	}
	if !t.hasRow(id) {
		return nil
	}
	t.markDeleted(id)

	if fk, ok := sourceLinks[name]; ok {
		join := s.tables[FEIDSources]
		col := model.ColumnIndex(join.columns, fk)
		if col >= 0 {
			var linked []int64
			for _, r := range join.visible {
				if col < len(r) && model.ValuesEqual(r[col], id) {
					linked = append(linked, r.ID())
				}
			}
			for _, jid := range linked {
				join.markDeleted(jid)
			}
		}
	}
	return nil
}

func (t *table) markDeleted(id int64) {
	if !slices.Contains(t.pending.Deleted, id) {
		t.pending.Deleted = append(t.pending.Deleted, id)
	}
	t.visible = slices.DeleteFunc(t.visible, func(r model.Row) bool { return r.ID() == id })
}

// DiscardChange drops the pending change of a cell.
func (s *Store) DiscardChange(name string, id int64, column string) error {
	return s.discard(name, func(p *Pending) {
		p.Changes = slices.DeleteFunc(p.Changes, func(c model.Change) bool {
			return c.ID == id && c.Column == column
		})
	})
}

// DiscardCreated drops a pending created row along with its changes.
func (s *Store) DiscardCreated(name string, id int64) error {
	return s.discard(name, func(p *Pending) {
		p.Created = slices.DeleteFunc(p.Created, func(r model.Row) bool { return r.ID() == id })
		p.Changes = slices.DeleteFunc(p.Changes, func(c model.Change) bool { return c.ID == id })
	})
}

// DiscardDeleted un-marks a row for deletion.
func (s *Store) DiscardDeleted(name string, id int64) error {
	return s.discard(name, func(p *Pending) {
		p.Deleted = slices.DeleteFunc(p.Deleted, func(d int64) bool { return d == id })
	})
}

func (s *Store) discard(name string, fn func(*Pending)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.get(name)
	if err != nil {
		return err
	}
	fn(&t.pending)
	s.recompute(name, t)
	return nil
}

// ResetChanges clears the pending state of every editable table. With
// keepVisibleData the visible rows are left as they are (the caller is about
// to replace the snapshot); otherwise they are recomputed from the snapshot.
func (s *Store) ResetChanges(keepVisibleData bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range Editable {
		t := s.tables[name]
		t.pending = Pending{}
		if !keepVisibleData {
			s.recompute(name, t)
		}
	}
}

// LinkSource attaches a source row to a parent event through a new join row.
// With existingID == 0 a new empty source row is created as well. It returns
// the source id and the join row id, or zeros when the parent event or the
// existing source is not visible.
func (s *Store) LinkSource(name string, parentID, existingID int64) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fk, ok := sourceLinks[name]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrNotLinkable, name)
	}
	src := s.tables[name]
	join := s.tables[FEIDSources]
	if len(join.columns) == 0 {
		return 0, 0, fmt.Errorf("%w: %s", ErrNoColumns, FEIDSources)
	}

	if !s.tables[FEID].isVisible(parentID) {
		return 0, 0, nil
	}
	if existingID != 0 && !src.isVisible(existingID) {
		return 0, 0, nil
	}

	sourceID := existingID
	if sourceID == 0 {
		id, err := s.createRow(src, name, nil)
		if err != nil {
			return 0, 0, err
		}
		sourceID = id
	}

	joinID, err := s.createRow(join, FEIDSources, map[string]any{
		ColFEIDID: parentID,
		fk:        sourceID,
	})
	if err != nil {
		return 0, 0, err
	}

	s.recompute(name, src)
	s.recompute(FEIDSources, join)
	return sourceID, joinID, nil
}

// RestorePending replaces the pending state of a table, typically with state
// persisted by an earlier session.
func (s *Store) RestorePending(name string, p Pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.get(name)
	if err != nil {
		return err
	}
	t.pending = p.Clone()
	s.recompute(name, t)
	return nil
}

// Visible returns a copy of the visible rows of a table.
func (s *Store) Visible(name string) ([]model.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.get(name)
	if err != nil {
		return nil, err
	}
	out := make([]model.Row, len(t.visible))
	for i, r := range t.visible {
		out[i] = r.Clone()
	}
	return out, nil
}

// Columns returns the column metadata of a table.
func (s *Store) Columns(name string) ([]model.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.get(name)
	if err != nil {
		return nil, err
	}
	return slices.Clone(t.columns), nil
}

// Pending returns a copy of the pending state of a table.
func (s *Store) Pending(name string) (Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.get(name)
	if err != nil {
		return Pending{}, err
	}
	return t.pending.Clone(), nil
}

// AllPending returns the non-empty pending states keyed by table.
func (s *Store) AllPending() map[string]Pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Pending)
	for _, name := range Editable {
		if p := s.tables[name].pending; !p.Empty() {
			out[name] = p.Clone()
		}
	}
	return out
}

// Loaded reports whether a snapshot has been set for the table.
func (s *Store) Loaded(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	return ok && t.columns != nil
}
