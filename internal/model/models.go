package model

import "time"

// ColumnType is the declared data type of a table column.
type ColumnType string

const (
	ColumnText    ColumnType = "text"
	ColumnInteger ColumnType = "integer"
	ColumnReal    ColumnType = "real"
	ColumnEnum    ColumnType = "enum"
	ColumnTime    ColumnType = "time"
)

// Column describes one column of an event table. Columns are fetched together
// with the data and do not change for the lifetime of a session.
type Column struct {
	Name     string     `json:"name"`     // Display name
	Key      string     `json:"sql_name"` // Column key used by the API and by changes
	Type     ColumnType `json:"type"`
	Enum     []string   `json:"enum,omitempty"` // Allowed values for enum columns
	Nullable bool       `json:"nullable"`
	Public   bool       `json:"is_public"`
}

// Row is a single table row. Element 0 is the numeric row id, the remaining
// elements are typed per the table's column list (which includes the id column).
// Values are nil, int64, float64, string or time.Time.
type Row []any

// ID returns the row identifier, or 0 if the row has no numeric id.
func (r Row) ID() int64 {
	if len(r) == 0 {
		return 0
	}
	switch v := r[0].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	}
	return 0
}

// Clone returns a shallow copy of the row. Values are immutable so this is
// enough to patch a copy without touching the original.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Change is a single pending cell edit.
type Change struct {
	ID     int64  `json:"id"`
	Column string `json:"column"`
	Value  any    `json:"value"`
}

// ChangelogEntry records one historical edit of a cell as reported by the API.
type ChangelogEntry struct {
	Time    time.Time `json:"time"`
	Author  string    `json:"author"`
	Old     any       `json:"old"`
	New     any       `json:"new"`
	Special string    `json:"special,omitempty"`
}

// Changelog maps row id -> column key -> entries, oldest first.
type Changelog map[int64]map[string][]ChangelogEntry

// Operator is a filter comparison operator.
type Operator string

const (
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "<>"
	OpIsNull       Operator = "is null"
	OpNotNull      Operator = "not null"
	OpRegexp       Operator = "regexp"
)

// Operators lists every supported filter operator.
var Operators = []Operator{OpGreaterEqual, OpLessEqual, OpEqual, OpNotEqual, OpIsNull, OpNotNull, OpRegexp}

// Filter is a (column, operator, value) triple. Value is the literal as typed
// by the user; it is parsed per the column type when compiled.
type Filter struct {
	Column   string   `json:"column"`
	Operator Operator `json:"operation"`
	Value    string   `json:"value"`
}

// Sample is a saved, shareable selection over the primary event table.
type Sample struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Authors   []string  `json:"authors"`
	Public    bool      `json:"public"`
	Filters   []Filter  `json:"filters"`
	Whitelist []int64   `json:"whitelist"`
	Blacklist []int64   `json:"blacklist"`
	Includes  []int64   `json:"includes"`
	CreatedAt time.Time `json:"created,omitempty"`
	UpdatedAt time.Time `json:"modified,omitempty"`
}

// Clone returns a deep copy of the sample.
func (s Sample) Clone() Sample {
	out := s
	out.Authors = append([]string(nil), s.Authors...)
	out.Filters = append([]Filter(nil), s.Filters...)
	out.Whitelist = append([]int64(nil), s.Whitelist...)
	out.Blacklist = append([]int64(nil), s.Blacklist...)
	out.Includes = append([]int64(nil), s.Includes...)
	return out
}

// Settings is the persisted per-profile dashboard settings object.
type Settings struct {
	Theme           string            `json:"theme"`
	Changelog       bool              `json:"changelog"`
	DefaultSampleID int64             `json:"default_sample_id"`
	PanelDefaults   map[string]string `json:"panel_defaults,omitempty"`
}

// DefaultSettings returns the settings used when nothing has been persisted.
func DefaultSettings() Settings {
	return Settings{Theme: "dark", PanelDefaults: map[string]string{}}
}
