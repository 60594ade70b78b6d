package sample

import (
	"maps"
	"slices"
	"time"

	"feid-go/internal/model"
)

// timeColumn orders the union of included samples.
const timeColumn = "time"

// Apply returns the rows of data selected by s. samples resolves the ids in
// s.Includes; includes are applied to the same full data set and their results
// are united by row id (a later include wins on collision) and sorted by time.
//
// Selection rules, in order of precedence:
//   - a blacklisted row is always dropped;
//   - a whitelisted row is always kept;
//   - otherwise the row must pass the filters. A sample without filters keeps
//     every row, unless it has a whitelist, in which case it keeps only the
//     whitelist.
//
// An include that is already being resolved higher up the chain (a cycle)
// contributes nothing.
func Apply(data []model.Row, s *model.Sample, columns []model.Column, samples []model.Sample) []model.Row {
	return apply(data, s, columns, samples, map[int64]bool{})
}

func apply(data []model.Row, s *model.Sample, columns []model.Column, samples []model.Sample, path map[int64]bool) []model.Row {
	if s == nil {
		return data
	}
	path[s.ID] = true
	defer delete(path, s.ID)

	base := data
	if len(s.Includes) > 0 {
		union := make(map[int64]model.Row)
		for _, incID := range s.Includes {
			if path[incID] {
				continue
			}
			inc := Find(samples, incID)
			if inc == nil {
				continue
			}
			for _, r := range apply(data, inc, columns, samples, path) {
				union[r.ID()] = r
			}
		}
		base = slices.Collect(maps.Values(union))
		sortByTime(base, columns)
	}

	pass := selector(s, columns)
	white := idSet(s.Whitelist)
	black := idSet(s.Blacklist)

	out := make([]model.Row, 0, len(base))
	for _, r := range base {
		id := r.ID()
		if black[id] {
			continue
		}
		if white[id] || pass(r) {
			out = append(out, r)
		}
	}
	return out
}

// selector returns the filter part of the selection rule.
func selector(s *model.Sample, columns []model.Column) Predicate {
	switch {
	case len(s.Filters) > 0:
		return Compile(s.Filters, columns)
	case len(s.Whitelist) > 0:
		return func(model.Row) bool { return false }
	default:
		return always
	}
}

// Find returns the sample with the given id, or nil.
func Find(samples []model.Sample, id int64) *model.Sample {
	for i := range samples {
		if samples[i].ID == id {
			return &samples[i]
		}
	}
	return nil
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func sortByTime(rows []model.Row, columns []model.Column) {
	idx := model.ColumnIndex(columns, timeColumn)
	key := func(r model.Row) (time.Time, bool) {
		if idx < 0 || idx >= len(r) {
			return time.Time{}, false
		}
		t, ok := r[idx].(time.Time)
		return t, ok
	}
	slices.SortStableFunc(rows, func(a, b model.Row) int {
		ta, okA := key(a)
		tb, okB := key(b)
		switch {
		case okA && okB && !ta.Equal(tb):
			return ta.Compare(tb)
		case okA && !okB:
			return -1
		case !okA && okB:
			return 1
		}
		switch ia, ib := a.ID(), b.ID(); {
		case ia < ib:
			return -1
		case ia > ib:
			return 1
		}
		return 0
	})
}
