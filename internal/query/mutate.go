package query

import (
	"context"
	"fmt"

	"metagrid/internal/entity"
	"metagrid/internal/hierarchy"
)

// Create writes a new record and forces a re-fetch of the current
// effective query on success. There is no optimistic local insert.
func (c *Coordinator) Create(ctx context.Context, values map[string]any) (entity.Record, error) {
	rec, err := c.backend.Create(ctx, c.schema.ID, values)
	if err != nil {
		return nil, &MutationError{Op: "create", Err: err}
	}
	c.Refresh()
	return rec, nil
}

// Update writes changed values and forces a re-fetch on success.
func (c *Coordinator) Update(ctx context.Context, id string, values map[string]any) (entity.Record, error) {
	rec, err := c.backend.Update(ctx, c.schema.ID, id, values)
	if err != nil {
		return nil, &MutationError{Op: "update", Err: err}
	}
	c.Refresh()
	return rec, nil
}

// CascadeResult reports a best-effort cascade: deletes run sequentially and
// are not transactional, so a mid-batch failure leaves a deterministic,
// partially completed subset ("Deleted of Total removed").
type CascadeResult struct {
	Deleted  int    `json:"deleted"`
	Total    int    `json:"total"`
	FailedID string `json:"failedId,omitempty"`
}

// Delete removes a record. With cascade set on a hierarchical schema it
// removes the record and every descendant, children first. The current
// tree is rebuilt from the visible record list; an id missing from it
// degrades to a plain single delete.
func (c *Coordinator) Delete(ctx context.Context, id string, cascade bool) (*CascadeResult, error) {
	ids := []string{id}
	if cascade && c.schema.AllowHierarchicalParent {
		tree := hierarchy.Build(c.Records())
		ids = tree.DeleteOrder(id)
	}

	res := &CascadeResult{Total: len(ids)}
	for _, target := range ids {
		if err := c.backend.Delete(ctx, c.schema.ID, target); err != nil {
			res.FailedID = target
			c.Refresh()
			return res, &MutationError{
				Op:  "delete",
				Err: fmt.Errorf("%d of %d items deleted, failed at %s: %w", res.Deleted, res.Total, target, err),
			}
		}
		res.Deleted++
	}
	c.Refresh()
	return res, nil
}

// ChangeParent re-homes a record under a new parent (empty id makes it a
// root). A parent that is the record itself or one of its descendants is
// rejected up front: cycles are refused at write time rather than repaired
// at read time.
func (c *Coordinator) ChangeParent(ctx context.Context, id, newParentID string) error {
	if newParentID != "" {
		if id == newParentID {
			return &CycleError{ID: id, ParentID: newParentID}
		}
		tree := hierarchy.Build(c.Records())
		if _, isDescendant := tree.CollectDescendants(id)[newParentID]; isDescendant {
			return &CycleError{ID: id, ParentID: newParentID}
		}
	}

	var parentValue any
	if newParentID != "" {
		parentValue = newParentID
	}
	if _, err := c.backend.Update(ctx, c.schema.ID, id, map[string]any{entity.KeyParent: parentValue}); err != nil {
		return &MutationError{Op: "change-parent", Err: err}
	}
	c.Refresh()
	return nil
}
