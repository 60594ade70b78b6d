package tables

import (
	"slices"
	"time"

	"feid-go/internal/model"
)

// Materialize computes the visible rows of a table from its server snapshot
// and pending state: (raw ∪ created) − deleted, with every pending change
// applied, sorted by the given time-like columns. The inputs are not modified.
//
// Changes addressing rows or columns that do not exist are ignored.
func Materialize(columns []model.Column, raw []model.Row, pending Pending, sortBy []string) []model.Row {
	deleted := make(map[int64]struct{}, len(pending.Deleted))
	for _, id := range pending.Deleted {
		deleted[id] = struct{}{}
	}

	rows := make([]model.Row, 0, len(raw)+len(pending.Created))
	for _, src := range [][]model.Row{raw, pending.Created} {
		for _, r := range src {
			if _, gone := deleted[r.ID()]; gone {
				continue
			}
			rows = append(rows, r.Clone())
		}
	}

	for _, ch := range pending.Changes {
		col := model.ColumnIndex(columns, ch.Column)
		if col < 0 {
			continue
		}
		for _, r := range rows {
			if r.ID() == ch.ID && col < len(r) {
				r[col] = ch.Value
				break
			}
		}
	}

	sortRows(rows, columns, sortBy)
	return rows
}

// sortRows orders rows by the first non-null value among the sort columns,
// ascending, with rows lacking any such value last. Ties keep id order.
func sortRows(rows []model.Row, columns []model.Column, sortBy []string) {
	var idx []int
	for _, key := range sortBy {
		if i := model.ColumnIndex(columns, key); i >= 0 {
			idx = append(idx, i)
		}
	}

	key := func(r model.Row) (time.Time, bool) {
		for _, i := range idx {
			if i >= len(r) {
				continue
			}
			if t, ok := r[i].(time.Time); ok {
				return t, true
			}
		}
		return time.Time{}, false
	}

	slices.SortStableFunc(rows, func(a, b model.Row) int {
		ta, okA := key(a)
		tb, okB := key(b)
		switch {
		case okA && okB:
			if c := ta.Compare(tb); c != 0 {
				return c
			}
		case okA:
			return -1
		case okB:
			return 1
		}
		return compareIDs(a.ID(), b.ID())
	})
}

func compareIDs(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
