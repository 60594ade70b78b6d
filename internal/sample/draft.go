package sample

import (
	"fmt"
	"reflect"
	"slices"

	"feid-go/internal/model"
)

// Draft stages edits to a sample until they are saved. The original sample
// is kept so an unchanged draft can be recognised and skipped.
type Draft struct {
	original model.Sample
	current  model.Sample
}

// NewDraft starts editing a copy of s.
func NewDraft(s model.Sample) *Draft {
	return &Draft{original: s.Clone(), current: s.Clone()}
}

// Sample returns a copy of the edited sample.
func (d *Draft) Sample() model.Sample { return d.current.Clone() }

// Original returns a copy of the sample the draft started from.
func (d *Draft) Original() model.Sample { return d.original.Clone() }

// Dirty reports whether the draft differs from the original.
func (d *Draft) Dirty() bool {
	return !reflect.DeepEqual(normalize(d.original), normalize(d.current))
}

func normalize(s model.Sample) model.Sample {
	s = s.Clone()
	for _, p := range []*[]int64{&s.Whitelist, &s.Blacklist, &s.Includes} {
		if len(*p) == 0 {
			*p = nil
		}
	}
	if len(s.Filters) == 0 {
		s.Filters = nil
	}
	if len(s.Authors) == 0 {
		s.Authors = nil
	}
	return s
}

// SetName renames the sample.
func (d *Draft) SetName(name string) { d.current.Name = name }

// SetPublic changes the visibility of the sample.
func (d *Draft) SetPublic(public bool) { d.current.Public = public }

// SetFilters validates and replaces the filter list. Nothing changes if any
// filter is invalid.
func (d *Draft) SetFilters(filters []model.Filter, columns []model.Column) error {
	for i, f := range filters {
		if err := ValidateFilter(f, columns); err != nil {
			return fmt.Errorf("filter %d: %w", i+1, err)
		}
	}
	d.current.Filters = slices.Clone(filters)
	return nil
}

// SetIncludes replaces the included sample ids. A sample cannot include itself.
func (d *Draft) SetIncludes(ids []int64) error {
	if slices.Contains(ids, d.current.ID) {
		return fmt.Errorf("sample %d cannot include itself", d.current.ID)
	}
	d.current.Includes = slices.Clone(ids)
	return nil
}

// Pick toggles a row in the whitelist (whitelist=true) or blacklist. A row is
// never in both lists: picking into one list removes it from the other.
func (d *Draft) Pick(id int64, whitelist bool) {
	target, other := &d.current.Blacklist, &d.current.Whitelist
	if whitelist {
		target, other = other, target
	}
	*other = slices.DeleteFunc(*other, func(x int64) bool { return x == id })
	if i := slices.Index(*target, id); i >= 0 {
		*target = slices.Delete(*target, i, i+1)
		return
	}
	*target = append(*target, id)
}

// Reset drops every staged edit.
func (d *Draft) Reset() { d.current = d.original.Clone() }
