package hierarchy

// ExpandState tracks which nodes the hierarchy view shows expanded. Nodes
// start collapsed; the zero map means everything is collapsed.
type ExpandState struct {
	expanded map[string]bool
}

func NewExpandState() *ExpandState {
	return &ExpandState{expanded: make(map[string]bool)}
}

func (e *ExpandState) IsExpanded(id string) bool {
	return e.expanded[id]
}

// Toggle flips one node and returns its new state.
func (e *ExpandState) Toggle(id string) bool {
	e.expanded[id] = !e.expanded[id]
	return e.expanded[id]
}

func (e *ExpandState) Set(id string, open bool) {
	e.expanded[id] = open
}

// ExpandAll opens every indexed node of the tree.
func (e *ExpandState) ExpandAll(t *Tree) {
	for id := range t.Nodes {
		e.expanded[id] = true
	}
}

// CollapseAll resets the state to fully collapsed.
func (e *ExpandState) CollapseAll() {
	e.expanded = make(map[string]bool)
}
