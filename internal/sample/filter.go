package sample

import (
	"fmt"
	"regexp"
	"slices"

	"feid-go/internal/model"
)

// Predicate reports whether a row is selected.
type Predicate func(model.Row) bool

func always(model.Row) bool { return true }

// Compile turns a filter list into a single predicate that is the logical AND
// of every filter. Filters that cannot be compiled (unknown column, empty
// literal for a comparison, literal that does not parse, bad regexp) are
// dropped, i.e. treated as always true.
func Compile(filters []model.Filter, columns []model.Column) Predicate {
	var preds []Predicate
	for _, f := range filters {
		if p, err := compileFilter(f, columns); err == nil {
			preds = append(preds, p)
		}
	}
	if len(preds) == 0 {
		return always
	}
	return func(r model.Row) bool {
		for _, p := range preds {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

// ValidateFilter reports why a filter would be dropped by Compile, or nil if
// it is usable. Use it to reject invalid input before it is saved.
func ValidateFilter(f model.Filter, columns []model.Column) error {
	_, err := compileFilter(f, columns)
	return err
}

func compileFilter(f model.Filter, columns []model.Column) (Predicate, error) {
	idx := model.ColumnIndex(columns, f.Column)
	if idx < 0 {
		return nil, fmt.Errorf("unknown column: %q", f.Column)
	}
	col := columns[idx]

	cell := func(r model.Row) any {
		if idx >= len(r) {
			return nil
		}
		return r[idx]
	}

	switch f.Operator {
	case model.OpIsNull:
		return func(r model.Row) bool { return cell(r) == nil }, nil
	case model.OpNotNull:
		return func(r model.Row) bool { return cell(r) != nil }, nil
	}

	if f.Value == "" {
		return nil, fmt.Errorf("filter on %s: empty value", f.Column)
	}

	if f.Operator == model.OpRegexp {
		re, err := regexp.Compile("(?i)" + f.Value)
		if err != nil {
			return nil, fmt.Errorf("filter on %s: %w", f.Column, err)
		}
		return func(r model.Row) bool {
			v := cell(r)
			return v != nil && re.MatchString(model.FormatValue(v))
		}, nil
	}

	if !slices.Contains(model.Operators, f.Operator) {
		return nil, fmt.Errorf("filter on %s: unknown operator %q", f.Column, f.Operator)
	}

	// Enum literals are compared as text so a filter can still name a value
	// that has since been removed from the enum.
	parseCol := col
	parseCol.Nullable = false
	if parseCol.Type == model.ColumnEnum {
		parseCol.Type = model.ColumnText
	}
	want, err := model.ParseValue(parseCol, f.Value)
	if err != nil {
		return nil, fmt.Errorf("filter on %s: %w", f.Column, err)
	}

	switch f.Operator {
	case model.OpEqual:
		return func(r model.Row) bool { return model.ValuesEqual(cell(r), want) }, nil
	case model.OpNotEqual:
		return func(r model.Row) bool { return !model.ValuesEqual(cell(r), want) }, nil
	case model.OpGreaterEqual:
		return func(r model.Row) bool {
			c, ok := compare(cell(r), want)
			return ok && c >= 0
		}, nil
	default: // OpLessEqual
		return func(r model.Row) bool {
			c, ok := compare(cell(r), want)
			return ok && c <= 0
		}, nil
	}
}

func compare(v, want any) (int, bool) {
	if v == nil {
		return 0, false
	}
	return model.CompareValues(v, want)
}
