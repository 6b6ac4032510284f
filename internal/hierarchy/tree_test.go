package hierarchy

import (
	"testing"

	"metagrid/internal/entity"
)

func rec(id, parent string) entity.Record {
	r := entity.Record{"id": id}
	if parent != "" {
		r["parent"] = parent
	}
	return r
}

func TestBuild_SimpleForest(t *testing.T) {
	tree := Build([]entity.Record{
		rec("a", ""),
		rec("b", "a"),
		rec("c", "a"),
		rec("d", ""),
	})
	if len(tree.Roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(tree.Roots))
	}
	a := tree.Nodes["a"]
	if len(a.Children) != 2 || a.Children[0].ID != "b" || a.Children[1].ID != "c" {
		t.Fatalf("expected children [b c] in input order, got %+v", a.Children)
	}
	if tree.Size() != 4 {
		t.Fatalf("expected size 4, got %d", tree.Size())
	}
}

func TestBuild_EveryRecordAppearsExactlyOnce(t *testing.T) {
	records := []entity.Record{
		rec("a", ""), rec("b", "a"), rec("c", "b"), rec("d", "ghost"), rec("e", "e"),
	}
	tree := Build(records)

	seen := map[string]int{}
	var walk func(n *Node)
	walk = func(n *Node) {
		seen[n.ID]++
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range tree.Roots {
		walk(r)
	}
	if len(seen) != len(records) {
		t.Fatalf("expected %d distinct nodes, got %d", len(records), len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("node %s appears %d times", id, n)
		}
	}
}

func TestBuild_MissingParentBecomesRoot(t *testing.T) {
	tree := Build([]entity.Record{rec("a", "nowhere")})
	if len(tree.Roots) != 1 || tree.Roots[0].ID != "a" {
		t.Fatalf("expected [a] as root, got %+v", tree.Roots)
	}
}

func TestBuild_SelfParentBecomesRoot(t *testing.T) {
	tree := Build([]entity.Record{rec("a", "a")})
	if len(tree.Roots) != 1 || tree.Roots[0].ID != "a" {
		t.Fatalf("expected self-parented record as root, got %+v", tree.Roots)
	}
}

func TestBuild_DuplicateIDsRenderStandalone(t *testing.T) {
	tree := Build([]entity.Record{rec("a", ""), rec("a", ""), rec("b", "a")})
	// First "a" is indexed; the duplicate is a standalone root.
	if len(tree.Roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(tree.Roots))
	}
	if tree.Size() != 3 {
		t.Fatalf("expected size 3, got %d", tree.Size())
	}
}

func TestBuild_CycleBrokenDeterministically(t *testing.T) {
	// a -> b -> c -> a closes a cycle; the member earliest in input order
	// is promoted to root.
	records := []entity.Record{rec("a", "c"), rec("b", "a"), rec("c", "b")}

	for i := 0; i < 5; i++ {
		tree := Build(records)
		if len(tree.Roots) != 1 {
			t.Fatalf("expected exactly 1 root, got %d", len(tree.Roots))
		}
		if tree.Roots[0].ID != "a" {
			t.Fatalf("expected a (earliest in input) promoted to root, got %s", tree.Roots[0].ID)
		}
		// Remaining links stay attached: b under a, c under b.
		if got := tree.Nodes["a"].Children; len(got) != 1 || got[0].ID != "b" {
			t.Fatalf("expected b under a, got %+v", got)
		}
		if got := tree.Nodes["b"].Children; len(got) != 1 || got[0].ID != "c" {
			t.Fatalf("expected c under b, got %+v", got)
		}
	}
}

func TestBuild_CycleBelowValidRoot(t *testing.T) {
	// root -> x, then x -> y -> x below it.
	records := []entity.Record{rec("root", ""), rec("x", "y"), rec("y", "x")}
	tree := Build(records)
	if len(tree.Roots) != 2 {
		t.Fatalf("expected 2 roots (root plus broken cycle member), got %d", len(tree.Roots))
	}
}

func TestCollectDescendants(t *testing.T) {
	tree := Build([]entity.Record{
		rec("a", ""), rec("b", "a"), rec("c", "b"), rec("d", ""),
	})
	got := tree.CollectDescendants("a")
	if len(got) != 3 {
		t.Fatalf("expected {a b c}, got %v", got)
	}
	for _, id := range []string{"a", "b", "c"} {
		if _, ok := got[id]; !ok {
			t.Fatalf("missing %s in descendant set %v", id, got)
		}
	}
	if _, ok := got["d"]; ok {
		t.Fatal("unrelated root leaked into descendant set")
	}
}

func TestCollectDescendants_MissingRoot(t *testing.T) {
	tree := Build(nil)
	got := tree.CollectDescendants("ghost")
	if len(got) != 1 {
		t.Fatalf("expected singleton set, got %v", got)
	}
	if _, ok := got["ghost"]; !ok {
		t.Fatalf("expected ghost in set, got %v", got)
	}
}

func TestDeleteOrder_ChildrenBeforeParents(t *testing.T) {
	tree := Build([]entity.Record{
		rec("a", ""), rec("b", "a"), rec("c", "b"), rec("e", "a"),
	})
	order := tree.DeleteOrder("a")
	if len(order) != 4 {
		t.Fatalf("expected 4 ids, got %v", order)
	}
	pos := map[string]int{}
	for i, id := range order {
		pos[id] = i
	}
	if pos["c"] > pos["b"] || pos["b"] > pos["a"] || pos["e"] > pos["a"] {
		t.Fatalf("children must precede parents, got %v", order)
	}
	if order[len(order)-1] != "a" {
		t.Fatalf("root must delete last, got %v", order)
	}
}

func TestDeleteOrder_MissingRoot(t *testing.T) {
	tree := Build(nil)
	if order := tree.DeleteOrder("x"); len(order) != 1 || order[0] != "x" {
		t.Fatalf("expected [x], got %v", order)
	}
}

func TestExpandState(t *testing.T) {
	e := NewExpandState()
	if e.IsExpanded("a") {
		t.Fatal("nodes start collapsed")
	}
	if !e.Toggle("a") {
		t.Fatal("first toggle expands")
	}
	if e.Toggle("a") {
		t.Fatal("second toggle collapses")
	}
	e.Set("b", true)
	if !e.IsExpanded("b") {
		t.Fatal("Set(true) should expand")
	}
	e.CollapseAll()
	if e.IsExpanded("b") {
		t.Fatal("CollapseAll should clear state")
	}

	tree := Build([]entity.Record{rec("x", ""), rec("y", "x")})
	e.ExpandAll(tree)
	if !e.IsExpanded("x") || !e.IsExpanded("y") {
		t.Fatal("ExpandAll should open every indexed node")
	}
}
