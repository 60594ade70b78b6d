package sample

import (
	"slices"

	"feid-go/internal/model"
)

// markerWeights is the fixed ordering used by SortByMarker.
var markerWeights = map[string]int{
	"  ": 0,
	"f ": 1,
	" +": 2,
	"f+": 3,
	" -": 4,
	"f-": 5,
}

// Markers computes the picking-mode marker of every row for a sample being
// edited. The first character is 'f' when the row passes the sample's filters;
// the second is '+' for whitelisted rows, '-' for blacklisted rows.
func Markers(rows []model.Row, s *model.Sample, columns []model.Column) []string {
	var pass Predicate
	if len(s.Filters) > 0 {
		pass = Compile(s.Filters, columns)
	}
	white := idSet(s.Whitelist)
	black := idSet(s.Blacklist)

	out := make([]string, len(rows))
	for i, r := range rows {
		m := []byte("  ")
		if pass != nil && pass(r) {
			m[0] = 'f'
		}
		switch id := r.ID(); {
		case white[id]:
			m[1] = '+'
		case black[id]:
			m[1] = '-'
		}
		out[i] = string(m)
	}
	return out
}

// MarkerWeight returns the sort weight of a marker. Unknown markers weigh 0.
func MarkerWeight(marker string) int {
	return markerWeights[marker]
}

// SortByMarker orders rows by marker weight, ascending or descending, keeping
// the existing order among rows with equal weight. markers[i] belongs to rows[i].
func SortByMarker(rows []model.Row, markers []string, descending bool) []model.Row {
	type marked struct {
		row    model.Row
		weight int
	}
	items := make([]marked, len(rows))
	for i, r := range rows {
		w := 0
		if i < len(markers) {
			w = MarkerWeight(markers[i])
		}
		items[i] = marked{row: r, weight: w}
	}
	slices.SortStableFunc(items, func(a, b marked) int {
		if descending {
			return b.weight - a.weight
		}
		return a.weight - b.weight
	})

	out := make([]model.Row, len(items))
	for i, it := range items {
		out[i] = it.row
	}
	return out
}
