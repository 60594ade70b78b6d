package tables

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"feid-go/internal/model"
)

var (
	t0 = time.Date(2023, 4, 23, 17, 0, 0, 0, time.UTC)

	feidColumns = []model.Column{
		{Name: "id", Key: "id", Type: model.ColumnInteger},
		{Name: "time", Key: "time", Type: model.ColumnTime},
		{Name: "duration", Key: "duration", Type: model.ColumnInteger, Nullable: true},
		{Name: "magnitude", Key: "magnitude", Type: model.ColumnReal, Nullable: true},
		{Name: "comment", Key: "comment", Type: model.ColumnText, Nullable: true},
	}
	joinColumns = []model.Column{
		{Name: "id", Key: "id", Type: model.ColumnInteger},
		{Name: "feid", Key: ColFEIDID, Type: model.ColumnInteger},
		{Name: "erupt", Key: ColEruptID, Type: model.ColumnInteger, Nullable: true},
		{Name: "ch", Key: ColCHID, Type: model.ColumnInteger, Nullable: true},
	}
	eruptColumns = []model.Column{
		{Name: "id", Key: "id", Type: model.ColumnInteger},
		{Name: "flare start", Key: "flr_start", Type: model.ColumnTime, Nullable: true},
		{Name: "cme time", Key: "cme_time", Type: model.ColumnTime, Nullable: true},
		{Name: "icme time", Key: "rc_icme_time", Type: model.ColumnTime, Nullable: true},
	}
	chColumns = []model.Column{
		{Name: "id", Key: "id", Type: model.ColumnInteger},
		{Name: "time", Key: "time", Type: model.ColumnTime, Nullable: true},
	}
)

func feidRows() []model.Row {
	return []model.Row{
		{int64(1), t0, int64(10), 1.5, nil},
		{int64(2), t0.Add(2 * time.Hour), int64(20), 3.2, "big"},
		{int64(3), t0.Add(time.Hour), nil, nil, nil},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	clock := t0
	s := NewStore(func() time.Time { return clock })
	if err := s.SetRawData(FEID, feidRows(), feidColumns); err != nil {
		t.Fatalf("SetRawData() error = %v", err)
	}
	join := []model.Row{
		{int64(100), int64(1), int64(500), nil},
		{int64(101), int64(2), nil, int64(700)},
		{int64(102), int64(3), int64(500), nil},
	}
	if err := s.SetRawData(FEIDSources, join, joinColumns); err != nil {
		t.Fatalf("SetRawData() error = %v", err)
	}
	erupt := []model.Row{{int64(500), t0, nil, nil}}
	if err := s.SetRawData(SourcesErupt, erupt, eruptColumns); err != nil {
		t.Fatalf("SetRawData() error = %v", err)
	}
	if err := s.SetRawData(SourcesCH, []model.Row{{int64(700), t0}}, chColumns); err != nil {
		t.Fatalf("SetRawData() error = %v", err)
	}
	return s
}

func visibleIDs(t *testing.T, s *Store, name string) []int64 {
	t.Helper()
	rows, err := s.Visible(name)
	if err != nil {
		t.Fatalf("Visible(%s) error = %v", name, err)
	}
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID()
	}
	return ids
}

func findRow(t *testing.T, s *Store, name string, id int64) model.Row {
	t.Helper()
	rows, err := s.Visible(name)
	if err != nil {
		t.Fatalf("Visible(%s) error = %v", name, err)
	}
	for _, r := range rows {
		if r.ID() == id {
			return r
		}
	}
	return nil
}

func TestStore_SetRawData(t *testing.T) {
	t.Run("sorts by time", func(t *testing.T) {
		s := newTestStore(t)
		if got, want := visibleIDs(t, s, FEID), []int64{1, 3, 2}; !reflect.DeepEqual(got, want) {
			t.Errorf("visible ids = %v, want %v", got, want)
		}
	})

	t.Run("keeps pending edits across refetch", func(t *testing.T) {
		s := newTestStore(t)
		if err := s.MakeChange(FEID, model.Change{ID: 2, Column: "comment", Value: "edited"}); err != nil {
			t.Fatalf("MakeChange() error = %v", err)
		}
		if err := s.SetRawData(FEID, feidRows(), feidColumns); err != nil {
			t.Fatalf("SetRawData() error = %v", err)
		}
		if got := findRow(t, s, FEID, 2)[4]; got != "edited" {
			t.Errorf("comment after refetch = %v, want %q", got, "edited")
		}
	})

	t.Run("unknown table", func(t *testing.T) {
		s := NewStore(nil)
		err := s.SetRawData("nope", nil, nil)
		if !errors.Is(err, ErrUnknownTable) {
			t.Errorf("SetRawData() error = %v, want ErrUnknownTable", err)
		}
	})
}

func TestStore_MakeChange(t *testing.T) {
	t.Run("applies change without touching raw data", func(t *testing.T) {
		s := newTestStore(t)
		raw := feidRows()
		if err := s.SetRawData(FEID, raw, feidColumns); err != nil {
			t.Fatalf("SetRawData() error = %v", err)
		}
		if err := s.MakeChange(FEID, model.Change{ID: 1, Column: "magnitude", Value: 4.0}); err != nil {
			t.Fatalf("MakeChange() error = %v", err)
		}
		if got := findRow(t, s, FEID, 1)[3]; got != 4.0 {
			t.Errorf("visible magnitude = %v, want 4", got)
		}
		if raw[0][3] != 1.5 {
			t.Errorf("raw magnitude mutated to %v", raw[0][3])
		}
	})

	t.Run("second change for same cell keeps latest", func(t *testing.T) {
		s := newTestStore(t)
		s.MakeChange(FEID, model.Change{ID: 1, Column: "magnitude", Value: 4.0})
		s.MakeChange(FEID, model.Change{ID: 1, Column: "magnitude", Value: 5.0})

		p, _ := s.Pending(FEID)
		if len(p.Changes) != 1 {
			t.Fatalf("len(Changes) = %d, want 1", len(p.Changes))
		}
		if p.Changes[0].Value != 5.0 {
			t.Errorf("Changes[0].Value = %v, want 5", p.Changes[0].Value)
		}
	})

	t.Run("id column is not editable", func(t *testing.T) {
		s := newTestStore(t)
		err := s.MakeChange(FEID,
			model.Change{ID: 1, Column: "id", Value: int64(2)},
			model.Change{ID: 2, Column: "id", Value: int64(9)},
		)
		if err != nil {
			t.Fatalf("MakeChange() error = %v", err)
		}
		if ids := visibleIDs(t, s, FEID); !reflect.DeepEqual(ids, []int64{1, 3, 2}) {
			t.Errorf("visible ids = %v, want [1 3 2]", ids)
		}
		if p, _ := s.Pending(FEID); len(p.Changes) != 0 {
			t.Errorf("Changes = %v, want none", p.Changes)
		}
	})

	t.Run("reverting to original drops the change", func(t *testing.T) {
		s := newTestStore(t)
		s.MakeChange(FEID, model.Change{ID: 2, Column: "time", Value: t0})
		// Same instant expressed in another zone still equals the original.
		orig := t0.Add(2 * time.Hour).In(time.FixedZone("X", 5*3600))
		s.MakeChange(FEID, model.Change{ID: 2, Column: "time", Value: orig})

		p, _ := s.Pending(FEID)
		if len(p.Changes) != 0 {
			t.Errorf("Changes = %v, want none", p.Changes)
		}
	})

	t.Run("no-op edit is not stored", func(t *testing.T) {
		s := newTestStore(t)
		s.MakeChange(FEID, model.Change{ID: 3, Column: "duration", Value: nil})
		p, _ := s.Pending(FEID)
		if len(p.Changes) != 0 {
			t.Errorf("Changes = %v, want none", p.Changes)
		}
	})

	t.Run("unknown row or column is ignored", func(t *testing.T) {
		s := newTestStore(t)
		err := s.MakeChange(FEID,
			model.Change{ID: 999, Column: "magnitude", Value: 1.0},
			model.Change{ID: 1, Column: "nope", Value: 1.0},
		)
		if err != nil {
			t.Fatalf("MakeChange() error = %v", err)
		}
		p, _ := s.Pending(FEID)
		if len(p.Changes) != 0 {
			t.Errorf("Changes = %v, want none", p.Changes)
		}
	})

	t.Run("batch matches full recomputation", func(t *testing.T) {
		s := newTestStore(t)
		edits := []model.Change{
			{ID: 1, Column: "magnitude", Value: 9.0},
			{ID: 3, Column: "time", Value: t0.Add(5 * time.Hour)},
			{ID: 1, Column: "magnitude", Value: 1.5},
			{ID: 2, Column: "comment", Value: "x"},
		}
		if err := s.MakeChange(FEID, edits...); err != nil {
			t.Fatalf("MakeChange() error = %v", err)
		}
		got, _ := s.Visible(FEID)
		p, _ := s.Pending(FEID)
		want := Materialize(feidColumns, feidRows(), p, SortColumns(FEID))
		if !reflect.DeepEqual(got, want) {
			t.Errorf("visible = %v, want %v", got, want)
		}
		if len(p.Changes) != 2 {
			t.Errorf("len(Changes) = %d, want 2 (reverted magnitude dropped)", len(p.Changes))
		}
		if ids := visibleIDs(t, s, FEID); !reflect.DeepEqual(ids, []int64{1, 2, 3}) {
			t.Errorf("visible ids = %v, want [1 2 3]", ids)
		}
	})

	t.Run("edits on created rows compare against created values", func(t *testing.T) {
		s := newTestStore(t)
		id, err := s.CreateRow(FEID, map[string]any{"time": t0, "duration": int64(5)})
		if err != nil {
			t.Fatalf("CreateRow() error = %v", err)
		}
		s.MakeChange(FEID, model.Change{ID: id, Column: "duration", Value: int64(5)})
		p, _ := s.Pending(FEID)
		if len(p.Changes) != 0 {
			t.Errorf("Changes = %v, want none", p.Changes)
		}
		s.MakeChange(FEID, model.Change{ID: id, Column: "duration", Value: int64(6)})
		if got := findRow(t, s, FEID, id)[2]; got != int64(6) {
			t.Errorf("duration = %v, want 6", got)
		}
	})
}

func TestStore_CreateRow(t *testing.T) {
	t.Run("builds row from column order", func(t *testing.T) {
		s := newTestStore(t)
		id, err := s.CreateRow(FEID, map[string]any{"time": t0.Add(30 * time.Minute), "duration": int64(7), "bogus": 1})
		if err != nil {
			t.Fatalf("CreateRow() error = %v", err)
		}
		if id >= 0 {
			t.Errorf("temporary id = %d, want negative", id)
		}
		row := findRow(t, s, FEID, id)
		want := model.Row{id, t0.Add(30 * time.Minute), int64(7), nil, nil}
		if !reflect.DeepEqual(row, want) {
			t.Errorf("row = %v, want %v", row, want)
		}
		if ids := visibleIDs(t, s, FEID); !reflect.DeepEqual(ids, []int64{1, id, 3, 2}) {
			t.Errorf("visible ids = %v", ids)
		}
	})

	t.Run("ids are unique within the same millisecond", func(t *testing.T) {
		s := newTestStore(t)
		a, _ := s.CreateRow(FEID, nil)
		b, _ := s.CreateRow(FEID, nil)
		if a == b {
			t.Errorf("CreateRow() returned duplicate id %d", a)
		}
		p, _ := s.Pending(FEID)
		if p.Created[0].ID() != b {
			t.Errorf("newest created row should be first, got %d", p.Created[0].ID())
		}
	})

	t.Run("requires columns", func(t *testing.T) {
		s := NewStore(nil)
		_, err := s.CreateRow(FEID, nil)
		if !errors.Is(err, ErrNoColumns) {
			t.Errorf("CreateRow() error = %v, want ErrNoColumns", err)
		}
	})
}

func TestStore_DeleteRow(t *testing.T) {
	t.Run("removes from visible immediately", func(t *testing.T) {
		s := newTestStore(t)
		if err := s.DeleteRow(FEID, 3); err != nil {
			t.Fatalf("DeleteRow() error = %v", err)
		}
		if ids := visibleIDs(t, s, FEID); !reflect.DeepEqual(ids, []int64{1, 2}) {
			t.Errorf("visible ids = %v, want [1 2]", ids)
		}
		p, _ := s.Pending(FEID)
		if !reflect.DeepEqual(p.Deleted, []int64{3}) {
			t.Errorf("Deleted = %v, want [3]", p.Deleted)
		}
	})

	t.Run("cascades to join rows", func(t *testing.T) {
		s := newTestStore(t)
		if err := s.DeleteRow(SourcesErupt, 500); err != nil {
			t.Fatalf("DeleteRow() error = %v", err)
		}
		p, _ := s.Pending(FEIDSources)
		if !reflect.DeepEqual(p.Deleted, []int64{100, 102}) {
			t.Errorf("join Deleted = %v, want [100 102]", p.Deleted)
		}
		if ids := visibleIDs(t, s, FEIDSources); !reflect.DeepEqual(ids, []int64{101}) {
			t.Errorf("join visible = %v, want [101]", ids)
		}
	})

	t.Run("cascade follows pending links", func(t *testing.T) {
		s := newTestStore(t)
		erupt := []model.Row{{int64(500), t0, nil, nil}, {int64(501), t0, nil, nil}}
		if err := s.SetRawData(SourcesErupt, erupt, eruptColumns); err != nil {
			t.Fatalf("SetRawData() error = %v", err)
		}
		if err := s.MakeChange(FEIDSources, model.Change{ID: 100, Column: ColEruptID, Value: int64(501)}); err != nil {
			t.Fatalf("MakeChange() error = %v", err)
		}

		if err := s.DeleteRow(SourcesErupt, 500); err != nil {
			t.Fatalf("DeleteRow() error = %v", err)
		}
		p, _ := s.Pending(FEIDSources)
		if !reflect.DeepEqual(p.Deleted, []int64{102}) {
			t.Errorf("join Deleted = %v, want [102]", p.Deleted)
		}

		if err := s.DeleteRow(SourcesErupt, 501); err != nil {
			t.Fatalf("DeleteRow() error = %v", err)
		}
		p, _ = s.Pending(FEIDSources)
		if !reflect.DeepEqual(p.Deleted, []int64{102, 100}) {
			t.Errorf("join Deleted = %v, want [102 100]", p.Deleted)
		}
		if ids := visibleIDs(t, s, FEIDSources); !reflect.DeepEqual(ids, []int64{101}) {
			t.Errorf("join visible = %v, want [101]", ids)
		}
	})

	t.Run("missing row is a no-op", func(t *testing.T) {
		s := newTestStore(t)
		if err := s.DeleteRow(FEID, 12345); err != nil {
			t.Fatalf("DeleteRow() error = %v", err)
		}
		p, _ := s.Pending(FEID)
		if len(p.Deleted) != 0 {
			t.Errorf("Deleted = %v, want none", p.Deleted)
		}
	})

	t.Run("create delete discard restores the row", func(t *testing.T) {
		s := newTestStore(t)
		id, err := s.CreateRow(FEID, map[string]any{"time": t0, "duration": int64(12)})
		if err != nil {
			t.Fatalf("CreateRow() error = %v", err)
		}
		before, _ := s.Visible(FEID)

		if err := s.DeleteRow(FEID, id); err != nil {
			t.Fatalf("DeleteRow() error = %v", err)
		}
		if findRow(t, s, FEID, id) != nil {
			t.Fatal("deleted row still visible")
		}
		if err := s.DiscardDeleted(FEID, id); err != nil {
			t.Fatalf("DiscardDeleted() error = %v", err)
		}
		after, _ := s.Visible(FEID)
		if !reflect.DeepEqual(before, after) {
			t.Errorf("visible after discard = %v, want %v", after, before)
		}
	})
}

func TestStore_Discard(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.CreateRow(FEID, map[string]any{"time": t0})
	s.MakeChange(FEID,
		model.Change{ID: 1, Column: "comment", Value: "a"},
		model.Change{ID: id, Column: "comment", Value: "b"},
	)

	if err := s.DiscardChange(FEID, 1, "comment"); err != nil {
		t.Fatalf("DiscardChange() error = %v", err)
	}
	if got := findRow(t, s, FEID, 1)[4]; got != nil {
		t.Errorf("comment after discard = %v, want nil", got)
	}

	if err := s.DiscardCreated(FEID, id); err != nil {
		t.Fatalf("DiscardCreated() error = %v", err)
	}
	p, _ := s.Pending(FEID)
	if !p.Empty() {
		t.Errorf("pending = %+v, want empty", p)
	}
	if got := Materialize(feidColumns, feidRows(), Pending{}, SortColumns(FEID)); !reflect.DeepEqual(got, mustVisible(t, s, FEID)) {
		t.Error("visible rows differ from a fresh materialization")
	}
}

func mustVisible(t *testing.T, s *Store, name string) []model.Row {
	t.Helper()
	rows, err := s.Visible(name)
	if err != nil {
		t.Fatalf("Visible() error = %v", err)
	}
	return rows
}

func TestStore_ResetChanges(t *testing.T) {
	s := newTestStore(t)
	s.MakeChange(FEID, model.Change{ID: 1, Column: "comment", Value: "a"})
	s.DeleteRow(SourcesCH, 700)

	t.Run("keep visible data", func(t *testing.T) {
		s.ResetChanges(true)
		if len(s.AllPending()) != 0 {
			t.Errorf("AllPending() = %v, want empty", s.AllPending())
		}
		if got := findRow(t, s, FEID, 1)[4]; got != "a" {
			t.Errorf("visible comment = %v, want stale %q", got, "a")
		}
	})

	t.Run("recompute", func(t *testing.T) {
		s.ResetChanges(false)
		if got := findRow(t, s, FEID, 1)[4]; got != nil {
			t.Errorf("visible comment = %v, want nil", got)
		}
		if ids := visibleIDs(t, s, SourcesCH); !reflect.DeepEqual(ids, []int64{700}) {
			t.Errorf("ch visible = %v, want [700]", ids)
		}
	})
}

func TestStore_LinkSource(t *testing.T) {
	t.Run("links existing source", func(t *testing.T) {
		s := newTestStore(t)
		srcID, joinID, err := s.LinkSource(SourcesCH, 1, 700)
		if err != nil {
			t.Fatalf("LinkSource() error = %v", err)
		}
		if srcID != 700 {
			t.Errorf("source id = %d, want 700", srcID)
		}
		row := findRow(t, s, FEIDSources, joinID)
		want := model.Row{joinID, int64(1), nil, int64(700)}
		if !reflect.DeepEqual(row, want) {
			t.Errorf("join row = %v, want %v", row, want)
		}
		p, _ := s.Pending(SourcesCH)
		if len(p.Created) != 0 {
			t.Errorf("created ch rows = %d, want 0", len(p.Created))
		}
	})

	t.Run("creates new source and join", func(t *testing.T) {
		s := newTestStore(t)
		srcID, joinID, err := s.LinkSource(SourcesErupt, 2, 0)
		if err != nil {
			t.Fatalf("LinkSource() error = %v", err)
		}
		if findRow(t, s, SourcesErupt, srcID) == nil {
			t.Error("new erupt source not visible")
		}
		row := findRow(t, s, FEIDSources, joinID)
		if row == nil || row[2] != srcID || row[1] != int64(2) {
			t.Errorf("join row = %v, want feid 2 erupt %d", row, srcID)
		}

		// Deleting the new source cascades to the new join row.
		s.DeleteRow(SourcesErupt, srcID)
		if findRow(t, s, FEIDSources, joinID) != nil {
			t.Error("join row survived deletion of its source")
		}
	})

	t.Run("missing rows link nothing", func(t *testing.T) {
		tests := []struct {
			name               string
			parent, existingID int64
		}{
			{"unknown parent", 424242, 0},
			{"unknown parent and source", 424242, 999999},
			{"unknown source", 1, 999999},
			{"deleted parent", 3, 500},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s := newTestStore(t)
				if err := s.DeleteRow(FEID, 3); err != nil {
					t.Fatalf("DeleteRow() error = %v", err)
				}
				srcID, joinID, err := s.LinkSource(SourcesErupt, tt.parent, tt.existingID)
				if err != nil {
					t.Fatalf("LinkSource() error = %v", err)
				}
				if srcID != 0 || joinID != 0 {
					t.Errorf("LinkSource() = (%d, %d), want (0, 0)", srcID, joinID)
				}
				for _, name := range []string{FEIDSources, SourcesErupt} {
					if p, _ := s.Pending(name); len(p.Created) != 0 {
						t.Errorf("%s created rows = %v, want none", name, p.Created)
					}
				}
			})
		}
	})

	t.Run("rejects non-source tables", func(t *testing.T) {
		s := newTestStore(t)
		_, _, err := s.LinkSource(FEID, 1, 0)
		if !errors.Is(err, ErrNotLinkable) {
			t.Errorf("LinkSource() error = %v, want ErrNotLinkable", err)
		}
	})
}

func TestMaterialize_SortFallback(t *testing.T) {
	rows := []model.Row{
		{int64(1), nil, t0.Add(3 * time.Hour), nil},
		{int64(2), t0.Add(time.Hour), nil, nil},
		{int64(3), nil, nil, nil},
		{int64(4), nil, nil, t0},
	}
	got := Materialize(eruptColumns, rows, Pending{}, SortColumns(SourcesErupt))
	ids := make([]int64, len(got))
	for i, r := range got {
		ids[i] = r.ID()
	}
	if want := []int64{4, 2, 1, 3}; !reflect.DeepEqual(ids, want) {
		t.Errorf("sorted ids = %v, want %v", ids, want)
	}
}

func TestStore_RestorePending(t *testing.T) {
	s := newTestStore(t)
	p := Pending{
		Changes: []model.Change{{ID: 2, Column: "comment", Value: "restored"}},
		Deleted: []int64{1},
	}
	if err := s.RestorePending(FEID, p); err != nil {
		t.Fatalf("RestorePending() error = %v", err)
	}
	if ids := visibleIDs(t, s, FEID); !reflect.DeepEqual(ids, []int64{3, 2}) {
		t.Errorf("visible ids = %v, want [3 2]", ids)
	}
	if got := findRow(t, s, FEID, 2)[4]; got != "restored" {
		t.Errorf("comment = %v, want %q", got, "restored")
	}
	if all := s.AllPending(); len(all) != 1 {
		t.Errorf("AllPending() has %d tables, want 1", len(all))
	}
}
