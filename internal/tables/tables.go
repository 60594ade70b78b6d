package tables

import (
	"errors"

	"feid-go/internal/model"
)

// Editable table names.
const (
	FEID         = "feid"
	FEIDSources  = "feid_sources"
	SourcesErupt = "sources_erupt"
	SourcesCH    = "sources_ch"
)

// Editable lists the tables that carry a pending-edit overlay, in commit order.
var Editable = []string{FEID, FEIDSources, SourcesErupt, SourcesCH}

// Join table foreign keys.
const (
	ColFEIDID  = "feid_id"
	ColEruptID = "erupt_id"
	ColCHID    = "ch_id"
)

// sourceLinks maps a linkable source table to the join column referencing it.
var sourceLinks = map[string]string{
	SourcesErupt: ColEruptID,
	SourcesCH:    ColCHID,
}

// sortRules lists, per table, the time-like columns used to order visible rows.
// The first non-null value wins. Tables without a rule keep id order.
var sortRules = map[string][]string{
	FEID:         {"time"},
	SourcesCH:    {"time"},
	SourcesErupt: {"flr_start", "cme_time", "rc_icme_time"},
}

var (
	ErrUnknownTable = errors.New("unknown table")
	ErrNoColumns    = errors.New("table has no columns loaded")
	ErrNotLinkable  = errors.New("table is not a linkable source table")
	ErrUnknownRow   = errors.New("row does not exist")
	ErrIDColumn     = errors.New("the id column cannot be edited")
)

// Pending is the uncommitted local state of one table.
type Pending struct {
	Created []model.Row    `json:"created"`
	Changes []model.Change `json:"changes"`
	Deleted []int64        `json:"deleted"`
}

// Empty reports whether there is nothing pending.
func (p Pending) Empty() bool {
	return len(p.Created) == 0 && len(p.Changes) == 0 && len(p.Deleted) == 0
}

// Clone returns a deep copy.
func (p Pending) Clone() Pending {
	out := Pending{
		Created: make([]model.Row, len(p.Created)),
		Changes: append([]model.Change(nil), p.Changes...),
		Deleted: append([]int64(nil), p.Deleted...),
	}
	for i, r := range p.Created {
		out.Created[i] = r.Clone()
	}
	return out
}

// SortColumns returns the sort rule for a table.
func SortColumns(table string) []string {
	return sortRules[table]
}
