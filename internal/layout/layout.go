// Package layout implements the binary split-pane tree that arranges
// dashboard panels.
//
// A layout has two maps keyed by node id: Tree holds the split nodes and Items
// holds the leaves. A node is a leaf iff it has no Tree entry. Every split has
// exactly two children.
package layout

import (
	"errors"
	"fmt"
	"maps"
	"math"
)

// RootID is the id of the root node of every layout.
const RootID = "root"

// Ratio bounds for UpdateRatio.
const (
	MinRatio = 0.05
	MaxRatio = 0.95
)

// Orientation of a split.
type Orientation string

const (
	Row    Orientation = "row"
	Column Orientation = "column"
)

var (
	ErrNotLeaf     = errors.New("node is not a leaf")
	ErrUnknownNode = errors.New("unknown node")
	ErrRootNode    = errors.New("cannot relinquish the root node")
	ErrBadRatio    = errors.New("ratio is not a number")
)

// maxIDAttempts bounds how often SplitNode asks for an unused node id.
const maxIDAttempts = 64

// Split is a non-leaf node.
type Split struct {
	Split    Orientation `json:"split"`
	Ratio    float64     `json:"ratio"`
	Children [2]string   `json:"children"`
}

// Item is the panel held by a leaf. An empty Type is an untyped leaf.
type Item struct {
	Type   string            `json:"type,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

func (it Item) clone() Item {
	return Item{Type: it.Type, Params: maps.Clone(it.Params)}
}

// Layout is one split-pane arrangement.
type Layout struct {
	Tree  map[string]*Split `json:"tree"`
	Items map[string]Item   `json:"items"`
}

// New returns a layout with a single empty root leaf.
func New() *Layout {
	return &Layout{
		Tree:  map[string]*Split{},
		Items: map[string]Item{RootID: {}},
	}
}

// IsLeaf reports whether id names a leaf of the layout.
func (l *Layout) IsLeaf(id string) bool {
	_, split := l.Tree[id]
	_, item := l.Items[id]
	return !split && item
}

// parent returns the id of the split holding id and id's position in it.
func (l *Layout) parent(id string) (string, int, bool) {
	for pid, s := range l.Tree {
		for i, c := range s.Children {
			if c == id {
				return pid, i, true
			}
		}
	}
	return "", 0, false
}

// SplitNode turns leaf id into a split with two new leaves named by newID.
// Ids already present in the layout are skipped.
// The first new leaf inherits the leaf's item; the second is empty unless
// duplicate is set, in which case it gets a copy. With inverse the inheriting
// leaf is placed second. It returns the ids of the inheriting and the new leaf.
func (l *Layout) SplitNode(id string, orientation Orientation, inverse, duplicate bool, newID func() string) (string, string, error) {
	if !l.IsLeaf(id) {
		if _, ok := l.Tree[id]; ok {
			return "", "", fmt.Errorf("%w: %s", ErrNotLeaf, id)
		}
		return "", "", fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}

	keep, err := l.unusedID(newID, "")
	if err != nil {
		return "", "", err
	}
	added, err := l.unusedID(newID, keep)
	if err != nil {
		return "", "", err
	}

	item := l.Items[id]

	l.Items[keep] = item
	if duplicate {
		l.Items[added] = item.clone()
	} else {
		l.Items[added] = Item{}
	}
	delete(l.Items, id)

	children := [2]string{keep, added}
	if inverse {
		children = [2]string{added, keep}
	}
	l.Tree[id] = &Split{Split: orientation, Ratio: 0.5, Children: children}
	return keep, added, nil
}

func (l *Layout) unusedID(newID func() string, taken string) (string, error) {
	for range maxIDAttempts {
		id := newID()
		_, split := l.Tree[id]
		_, leaf := l.Items[id]
		if id != "" && id != taken && !split && !leaf {
			return id, nil
		}
	}
	return "", fmt.Errorf("no unused node id after %d attempts", maxIDAttempts)
}

// RelinquishNode removes leaf id and promotes its sibling into the parent's
// slot. A split sibling moves its subtree up; a leaf sibling's item replaces
// the parent, which becomes a leaf.
func (l *Layout) RelinquishNode(id string) error {
	if !l.IsLeaf(id) {
		if _, ok := l.Tree[id]; ok {
			return fmt.Errorf("%w: %s", ErrNotLeaf, id)
		}
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	pid, pos, ok := l.parent(id)
	if !ok {
		return ErrRootNode
	}
	sibling := l.Tree[pid].Children[1-pos]

	delete(l.Items, id)
	if s, isSplit := l.Tree[sibling]; isSplit {
		l.Tree[pid] = s
		delete(l.Tree, sibling)
		return nil
	}
	delete(l.Tree, pid)
	l.Items[pid] = l.Items[sibling]
	delete(l.Items, sibling)
	return nil
}

// UpdateRatio sets the ratio of split id, clamped to [MinRatio, MaxRatio].
// NaN is rejected.
func (l *Layout) UpdateRatio(id string, ratio float64) error {
	s, ok := l.Tree[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	if math.IsNaN(ratio) {
		return fmt.Errorf("%w: split %s", ErrBadRatio, id)
	}
	s.Ratio = min(max(ratio, MinRatio), MaxRatio)
	return nil
}

// SwapItems exchanges the items of two leaves.
func (l *Layout) SwapItems(a, b string) error {
	for _, id := range []string{a, b} {
		if !l.IsLeaf(id) {
			return fmt.Errorf("%w: %s", ErrNotLeaf, id)
		}
	}
	l.Items[a], l.Items[b] = l.Items[b], l.Items[a]
	return nil
}

// SetItem replaces the item of a leaf.
func (l *Layout) SetItem(id string, item Item) error {
	if !l.IsLeaf(id) {
		return fmt.Errorf("%w: %s", ErrNotLeaf, id)
	}
	l.Items[id] = item.clone()
	return nil
}

// Leaves returns the leaf ids in depth-first, left-to-right order.
func (l *Layout) Leaves() []string {
	var out []string
	var walk func(id string)
	walk = func(id string) {
		if s, ok := l.Tree[id]; ok {
			walk(s.Children[0])
			walk(s.Children[1])
			return
		}
		if _, ok := l.Items[id]; ok {
			out = append(out, id)
		}
	}
	walk(RootID)
	return out
}

// Validate checks the structural invariants: every split has two distinct
// children that exist, leaves are not splits, and every node is reachable
// from the root exactly once.
func (l *Layout) Validate() error {
	seen := map[string]bool{}
	var walk func(id string) error
	walk = func(id string) error {
		if seen[id] {
			return fmt.Errorf("node %s reached twice", id)
		}
		seen[id] = true
		s, isSplit := l.Tree[id]
		_, isItem := l.Items[id]
		switch {
		case isSplit && isItem:
			return fmt.Errorf("node %s is both split and leaf", id)
		case isSplit:
			if s.Children[0] == s.Children[1] {
				return fmt.Errorf("split %s has identical children", id)
			}
			if err := walk(s.Children[0]); err != nil {
				return err
			}
			return walk(s.Children[1])
		case isItem:
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	if err := walk(RootID); err != nil {
		return err
	}
	if len(seen) != len(l.Tree)+len(l.Items) {
		return fmt.Errorf("layout has %d unreachable nodes", len(l.Tree)+len(l.Items)-len(seen))
	}
	return nil
}

// Layouts is the persisted collection of named layouts.
type Layouts struct {
	Active  string             `json:"active"`
	Layouts map[string]*Layout `json:"list"`
}

// DefaultName names the layout created by Default.
const DefaultName = "default"

// Default returns a collection with one single-leaf layout.
func Default() *Layouts {
	return &Layouts{Active: DefaultName, Layouts: map[string]*Layout{DefaultName: New()}}
}

// Current returns the active layout, creating it if it does not exist.
func (ls *Layouts) Current() *Layout {
	if ls.Layouts == nil {
		ls.Layouts = map[string]*Layout{}
	}
	if ls.Active == "" {
		ls.Active = DefaultName
	}
	l, ok := ls.Layouts[ls.Active]
	if !ok {
		l = New()
		ls.Layouts[ls.Active] = l
	}
	return l
}

// Valid reports whether every layout in the collection satisfies its
// invariants. Used to fall back to the default on a malformed persisted value.
func (ls *Layouts) Valid() bool {
	if ls == nil || len(ls.Layouts) == 0 {
		return false
	}
	for _, l := range ls.Layouts {
		if l == nil || l.Tree == nil || l.Items == nil || l.Validate() != nil {
			return false
		}
	}
	return true
}
