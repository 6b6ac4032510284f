// Package hierarchy builds a parent-indexed forest from the flat record
// list the query coordinator fetched, and answers descendant queries for
// cascading deletes.
package hierarchy

import "metagrid/internal/entity"

type Node struct {
	ID       string
	Record   entity.Record
	Children []*Node
}

type Tree struct {
	Roots []*Node
	Nodes map[string]*Node
}

const (
	stateUnseen = iota
	stateVisiting
	stateDone
)

// Build indexes every record by id and attaches each to its parent's child
// list. Records whose parent is absent, unresolved, or self-referential
// become roots. A parent chain that closes a cycle is broken
// deterministically: the cycle member earliest in input order is promoted
// to root. Runs in linear time; input order is preserved throughout.
func Build(records []entity.Record) *Tree {
	t := &Tree{Nodes: make(map[string]*Node, len(records))}

	var order []string
	inputIndex := make(map[string]int, len(records))
	for i, rec := range records {
		id := rec.ID()
		if id == "" || t.Nodes[id] != nil {
			// Unidentifiable or duplicate ids cannot participate in the
			// parent index; render them as standalone roots.
			t.Roots = append(t.Roots, &Node{ID: id, Record: rec})
			continue
		}
		t.Nodes[id] = &Node{ID: id, Record: rec}
		order = append(order, id)
		inputIndex[id] = i
	}

	parentOf := make(map[string]string, len(order))
	for _, id := range order {
		pid := t.Nodes[id].Record.Parent()
		if pid != "" && pid != id && t.Nodes[pid] != nil {
			parentOf[id] = pid
		}
	}

	broken := breakCycles(order, parentOf, inputIndex)

	for _, id := range order {
		node := t.Nodes[id]
		pid, ok := parentOf[id]
		if !ok || broken[id] {
			t.Roots = append(t.Roots, node)
			continue
		}
		parent := t.Nodes[pid]
		parent.Children = append(parent.Children, node)
	}

	return t
}

// breakCycles walks every parent chain once, three-color style, and picks
// the link to sever whenever a chain re-enters itself.
func breakCycles(order []string, parentOf map[string]string, inputIndex map[string]int) map[string]bool {
	state := make(map[string]int, len(order))
	broken := make(map[string]bool)

	for _, start := range order {
		if state[start] != stateUnseen {
			continue
		}
		var chain []string
		cur := start
		for cur != "" {
			state[cur] = stateVisiting
			chain = append(chain, cur)

			pid, ok := parentOf[cur]
			if !ok || broken[cur] || state[pid] == stateDone {
				break
			}
			if state[pid] == stateVisiting {
				victim := pid
				for i := len(chain) - 1; i >= 0; i-- {
					if inputIndex[chain[i]] < inputIndex[victim] {
						victim = chain[i]
					}
					if chain[i] == pid {
						break
					}
				}
				broken[victim] = true
				break
			}
			cur = pid
		}
		for _, id := range chain {
			state[id] = stateDone
		}
	}
	return broken
}

// CollectDescendants gathers the root and every reachable descendant id,
// the exact set a cascading delete removes. A root missing from the node
// map degrades to a single-entity set so the delete still proceeds,
// non-cascading.
func (t *Tree) CollectDescendants(rootID string) map[string]struct{} {
	out := make(map[string]struct{})
	node, ok := t.Nodes[rootID]
	if !ok {
		out[rootID] = struct{}{}
		return out
	}
	var walk func(n *Node)
	walk = func(n *Node) {
		out[n.ID] = struct{}{}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(node)
	return out
}

// DeleteOrder returns the cascade set as a list with children before
// parents, so sequential deletes never orphan a child under a
// foreign-key-enforcing backend.
func (t *Tree) DeleteOrder(rootID string) []string {
	node, ok := t.Nodes[rootID]
	if !ok {
		return []string{rootID}
	}
	var out []string
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, c := range n.Children {
			walk(c)
		}
		out = append(out, n.ID)
	}
	walk(node)
	return out
}

// Size returns the total node count including standalone roots.
func (t *Tree) Size() int {
	n := len(t.Nodes)
	for _, r := range t.Roots {
		if _, indexed := t.Nodes[r.ID]; !indexed {
			n++
		}
	}
	return n
}
