package layout

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"testing"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("n%d", n)
	}
}

func chart() Item {
	return Item{Type: "chart", Params: map[string]string{"series": "magnitude"}}
}

func TestSplitNode(t *testing.T) {
	l := New()
	l.Items[RootID] = chart()

	keep, added, err := l.SplitNode(RootID, Row, false, false, seqIDs())
	if err != nil {
		t.Fatalf("SplitNode() error = %v", err)
	}
	if keep != "n1" || added != "n2" {
		t.Errorf("SplitNode() = (%q, %q), want (n1, n2)", keep, added)
	}

	s, ok := l.Tree[RootID]
	if !ok {
		t.Fatal("SplitNode() did not create a tree entry for the split node")
	}
	if s.Split != Row || s.Ratio != 0.5 || s.Children != [2]string{"n1", "n2"} {
		t.Errorf("split = %+v, want row 0.5 [n1 n2]", *s)
	}
	if _, ok := l.Items[RootID]; ok {
		t.Error("split node still has an item")
	}
	if got := l.Items["n1"]; got.Type != "chart" || got.Params["series"] != "magnitude" {
		t.Errorf("first child = %+v, want original item", got)
	}
	if got := l.Items["n2"]; got.Type != "" || got.Params != nil {
		t.Errorf("second child = %+v, want empty item", got)
	}
	if err := l.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestSplitNodeOptions(t *testing.T) {
	t.Run("inverse", func(t *testing.T) {
		l := New()
		l.Items[RootID] = chart()
		if _, _, err := l.SplitNode(RootID, Column, true, false, seqIDs()); err != nil {
			t.Fatalf("SplitNode() error = %v", err)
		}
		if got := l.Tree[RootID].Children; got != [2]string{"n2", "n1"} {
			t.Errorf("children = %v, want [n2 n1]", got)
		}
		if l.Items["n1"].Type != "chart" {
			t.Error("inheriting leaf lost its item")
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		l := New()
		l.Items[RootID] = chart()
		if _, _, err := l.SplitNode(RootID, Row, false, true, seqIDs()); err != nil {
			t.Fatalf("SplitNode() error = %v", err)
		}
		a, b := l.Items["n1"], l.Items["n2"]
		if a.Type != "chart" || b.Type != "chart" {
			t.Fatalf("items = %+v, %+v, want both chart", a, b)
		}
		b.Params["series"] = "duration"
		if a.Params["series"] != "magnitude" {
			t.Error("duplicated params share storage")
		}
	})

	t.Run("split node is not a leaf", func(t *testing.T) {
		l := New()
		if _, _, err := l.SplitNode(RootID, Row, false, false, seqIDs()); err != nil {
			t.Fatalf("SplitNode() error = %v", err)
		}
		_, _, err := l.SplitNode(RootID, Row, false, false, seqIDs())
		if !errors.Is(err, ErrNotLeaf) {
			t.Errorf("SplitNode() error = %v, want ErrNotLeaf", err)
		}
	})

	t.Run("skips ids in use", func(t *testing.T) {
		l := New()
		ids := seqIDs()
		if _, _, err := l.SplitNode(RootID, Row, false, false, ids); err != nil {
			t.Fatal(err)
		}
		l.Items["n1"] = chart()

		queue := []string{"root", "n1", "n2", "n3", "n3", "n4"}
		next := func() string {
			id := queue[0]
			queue = queue[1:]
			return id
		}
		keep, added, err := l.SplitNode("n2", Column, false, false, next)
		if err != nil {
			t.Fatalf("SplitNode() error = %v", err)
		}
		if keep != "n3" || added != "n4" {
			t.Errorf("SplitNode() = (%q, %q), want (n3, n4)", keep, added)
		}
		if got := l.Items["n1"].Type; got != "chart" {
			t.Errorf("existing leaf n1 = %q, want chart", got)
		}
		if err := l.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("no unused id", func(t *testing.T) {
		l := New()
		_, _, err := l.SplitNode(RootID, Row, false, false, func() string { return RootID })
		if err == nil {
			t.Fatal("SplitNode() error = nil, want error")
		}
		if !l.IsLeaf(RootID) {
			t.Error("failed split changed the layout")
		}
	})

	t.Run("unknown node", func(t *testing.T) {
		_, _, err := New().SplitNode("nope", Row, false, false, seqIDs())
		if !errors.Is(err, ErrUnknownNode) {
			t.Errorf("SplitNode() error = %v, want ErrUnknownNode", err)
		}
	})
}

func TestRelinquishNode(t *testing.T) {
	t.Run("leaf sibling", func(t *testing.T) {
		l := New()
		ids := seqIDs()
		if _, _, err := l.SplitNode(RootID, Row, false, false, ids); err != nil {
			t.Fatalf("SplitNode() error = %v", err)
		}
		l.Items["n2"] = chart()

		if err := l.RelinquishNode("n1"); err != nil {
			t.Fatalf("RelinquishNode() error = %v", err)
		}
		if len(l.Tree) != 0 {
			t.Errorf("tree = %v, want empty", l.Tree)
		}
		if got := l.Items[RootID]; got.Type != "chart" {
			t.Errorf("root item = %+v, want sibling's item", got)
		}
		if len(l.Items) != 1 {
			t.Errorf("items = %v, want only root", l.Items)
		}
	})

	t.Run("split sibling", func(t *testing.T) {
		// root -> [n1, n2], n2 -> [n3, n4]
		l := New()
		ids := seqIDs()
		if _, _, err := l.SplitNode(RootID, Row, false, false, ids); err != nil {
			t.Fatalf("SplitNode() error = %v", err)
		}
		l.Items["n2"] = chart()
		if _, _, err := l.SplitNode("n2", Column, false, false, ids); err != nil {
			t.Fatalf("SplitNode() error = %v", err)
		}
		if err := l.UpdateRatio("n2", 0.3); err != nil {
			t.Fatalf("UpdateRatio() error = %v", err)
		}

		if err := l.RelinquishNode("n1"); err != nil {
			t.Fatalf("RelinquishNode() error = %v", err)
		}

		root, ok := l.Tree[RootID]
		if !ok {
			t.Fatal("root lost its split")
		}
		if root.Split != Column || root.Ratio != 0.3 || root.Children != [2]string{"n3", "n4"} {
			t.Errorf("root = %+v, want promoted subtree", *root)
		}
		if _, ok := l.Tree["n2"]; ok {
			t.Error("promoted sibling key still in tree")
		}
		if _, ok := l.Items["n1"]; ok {
			t.Error("relinquished leaf still in items")
		}
		if got := l.Items["n3"].Type; got != "chart" {
			t.Errorf("n3 type = %q, want chart", got)
		}
		if err := l.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("nested leaf", func(t *testing.T) {
		l := New()
		ids := seqIDs()
		if _, _, err := l.SplitNode(RootID, Row, false, false, ids); err != nil {
			t.Fatal(err)
		}
		if _, _, err := l.SplitNode("n2", Column, false, false, ids); err != nil {
			t.Fatal(err)
		}
		l.Items["n3"] = chart()
		if err := l.RelinquishNode("n4"); err != nil {
			t.Fatalf("RelinquishNode() error = %v", err)
		}
		if !l.IsLeaf("n2") || l.Items["n2"].Type != "chart" {
			t.Errorf("n2 = %+v, want leaf with n3's item", l.Items["n2"])
		}
		if got := l.Leaves(); !slices.Equal(got, []string{"n1", "n2"}) {
			t.Errorf("Leaves() = %v, want [n1 n2]", got)
		}
	})

	t.Run("root", func(t *testing.T) {
		if err := New().RelinquishNode(RootID); !errors.Is(err, ErrRootNode) {
			t.Errorf("RelinquishNode() error = %v, want ErrRootNode", err)
		}
	})

	t.Run("split node", func(t *testing.T) {
		l := New()
		if _, _, err := l.SplitNode(RootID, Row, false, false, seqIDs()); err != nil {
			t.Fatal(err)
		}
		if err := l.RelinquishNode(RootID); !errors.Is(err, ErrNotLeaf) {
			t.Errorf("RelinquishNode() error = %v, want ErrNotLeaf", err)
		}
	})
}

func TestUpdateRatio(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.4, 0.4},
		{0, MinRatio},
		{-1, MinRatio},
		{1, MaxRatio},
		{math.Inf(1), MaxRatio},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			l := New()
			if _, _, err := l.SplitNode(RootID, Row, false, false, seqIDs()); err != nil {
				t.Fatal(err)
			}
			if err := l.UpdateRatio(RootID, tt.in); err != nil {
				t.Fatalf("UpdateRatio() error = %v", err)
			}
			if got := l.Tree[RootID].Ratio; got != tt.want {
				t.Errorf("ratio = %v, want %v", got, tt.want)
			}
		})
	}

	if err := New().UpdateRatio(RootID, 0.5); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("UpdateRatio() on leaf error = %v, want ErrUnknownNode", err)
	}

	t.Run("NaN", func(t *testing.T) {
		l := New()
		if _, _, err := l.SplitNode(RootID, Row, false, false, seqIDs()); err != nil {
			t.Fatal(err)
		}
		if err := l.UpdateRatio(RootID, math.NaN()); !errors.Is(err, ErrBadRatio) {
			t.Errorf("UpdateRatio(NaN) error = %v, want ErrBadRatio", err)
		}
		if got := l.Tree[RootID].Ratio; got != 0.5 {
			t.Errorf("ratio = %v, want unchanged 0.5", got)
		}
	})
}

func TestSwapItems(t *testing.T) {
	l := New()
	if _, _, err := l.SplitNode(RootID, Row, false, false, seqIDs()); err != nil {
		t.Fatal(err)
	}
	l.Items["n1"] = chart()
	l.Items["n2"] = Item{Type: "table"}

	if err := l.SwapItems("n1", "n2"); err != nil {
		t.Fatalf("SwapItems() error = %v", err)
	}
	if l.Items["n1"].Type != "table" || l.Items["n2"].Type != "chart" {
		t.Errorf("items = %+v, want swapped", l.Items)
	}
	if err := l.SwapItems("n1", RootID); !errors.Is(err, ErrNotLeaf) {
		t.Errorf("SwapItems() error = %v, want ErrNotLeaf", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		layout *Layout
	}{
		{
			name:   "missing child",
			layout: &Layout{Tree: map[string]*Split{RootID: {Children: [2]string{"a", "b"}}}, Items: map[string]Item{"a": {}}},
		},
		{
			name:   "identical children",
			layout: &Layout{Tree: map[string]*Split{RootID: {Children: [2]string{"a", "a"}}}, Items: map[string]Item{"a": {}}},
		},
		{
			name:   "orphan item",
			layout: &Layout{Tree: map[string]*Split{}, Items: map[string]Item{RootID: {}, "x": {}}},
		},
		{
			name:   "no root",
			layout: &Layout{Tree: map[string]*Split{}, Items: map[string]Item{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.layout.Validate(); err == nil {
				t.Error("Validate() error = nil, want error")
			}
		})
	}
}

func TestLayouts(t *testing.T) {
	ls := Default()
	if !ls.Valid() {
		t.Fatal("Default() is not valid")
	}
	if got := ls.Current().Leaves(); !slices.Equal(got, []string{RootID}) {
		t.Errorf("Leaves() = %v, want [root]", got)
	}

	ls.Active = "storms"
	if ls.Current() == nil || len(ls.Layouts) != 2 {
		t.Errorf("Current() did not create the active layout: %v", ls.Layouts)
	}

	var empty *Layouts
	if empty.Valid() {
		t.Error("nil Layouts reported valid")
	}
	broken := &Layouts{Layouts: map[string]*Layout{"x": {Tree: map[string]*Split{}}}}
	if broken.Valid() {
		t.Error("Layouts with nil items reported valid")
	}
}
