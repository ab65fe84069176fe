package model

import (
	"fmt"
	"slices"
	"strings"
)

type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate checks the structural invariants of the outline: a single root,
// consistent parent/child links, every item reachable exactly once and no
// parent cycles.
func Validate(o *Outline) []ValidationError {
	var errs []ValidationError

	if o.Items == nil {
		return append(errs, ValidationError{Path: "$.items", Message: "required"})
	}
	root, ok := o.Items[o.RootID]
	if !ok {
		return append(errs, ValidationError{Path: "$.rootId", Message: fmt.Sprintf("unknown root id %q", o.RootID)})
	}
	if root.ParentID != "" {
		errs = append(errs, ValidationError{Path: "$.root.parentId", Message: "root must not have a parent"})
	}

	// Number of child lists each item appears in.
	listed := make(map[string]int, len(o.Items))

	for key, it := range o.Items {
		path := fmt.Sprintf("$.items[%q]", key)
		if it.ID == "" {
			errs = append(errs, ValidationError{Path: path + ".id", Message: "required"})
		} else if it.ID != key {
			errs = append(errs, ValidationError{Path: path + ".id", Message: fmt.Sprintf("must match map key %q", key)})
		}
		if key != o.RootID && it.ParentID == "" {
			errs = append(errs, ValidationError{Path: path + ".parentId", Message: "only the root may lack a parent"})
		}
		if it.ParentID != "" {
			parent, ok := o.Items[it.ParentID]
			if !ok {
				errs = append(errs, ValidationError{Path: path + ".parentId", Message: fmt.Sprintf("unknown parent id %q", it.ParentID)})
			} else if !slices.Contains(parent.ChildIDs, key) {
				errs = append(errs, ValidationError{
					Path:    path + ".parentId",
					Message: fmt.Sprintf("parent %q must include %q in childIds", it.ParentID, key),
				})
			}
		}

		seen := map[string]bool{}
		for i, cid := range it.ChildIDs {
			cpath := fmt.Sprintf("%s.childIds[%d]", path, i)
			if seen[cid] {
				errs = append(errs, ValidationError{Path: cpath, Message: fmt.Sprintf("duplicate child id %q", cid)})
				continue
			}
			seen[cid] = true
			listed[cid]++

			child, ok := o.Items[cid]
			if !ok {
				errs = append(errs, ValidationError{Path: cpath, Message: fmt.Sprintf("unknown child id %q", cid)})
				continue
			}
			if child.ParentID != key {
				errs = append(errs, ValidationError{Path: cpath, Message: fmt.Sprintf("child %q must have parentId %q", cid, key)})
			}
		}
	}

	for id := range o.Items {
		if id == o.RootID {
			continue
		}
		if n := listed[id]; n != 1 {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("$.items[%q]", id),
				Message: fmt.Sprintf("listed in %d child lists, want exactly 1", n),
			})
		}
	}

	for id := range o.Items {
		if cycle := ParentCycle(o, id); len(cycle) > 0 {
			errs = append(errs, ValidationError{
				Path:    "$.items",
				Message: "hierarchy cycle detected: " + strings.Join(cycle, " -> "),
			})
			break
		}
	}

	return errs
}

// ParentCycle walks parent pointers from start and returns the cycle it runs
// into, or nil when the walk reaches an item without a parent.
func ParentCycle(o *Outline, start string) []string {
	onPath := map[string]int{}
	var path []string
	cur := start
	for cur != "" {
		if idx, ok := onPath[cur]; ok {
			cycle := append([]string{}, path[idx:]...)
			return append(cycle, cur)
		}
		onPath[cur] = len(path)
		path = append(path, cur)
		it, ok := o.Items[cur]
		if !ok {
			return nil
		}
		cur = it.ParentID
	}
	return nil
}

// IsAncestor reports whether ancestorID is on the parent chain of id.
func IsAncestor(o *Outline, ancestorID, id string) bool {
	steps := 0
	for cur := id; cur != ""; steps++ {
		if steps > len(o.Items) {
			return false
		}
		it, ok := o.Items[cur]
		if !ok {
			return false
		}
		if it.ParentID == ancestorID {
			return true
		}
		cur = it.ParentID
	}
	return false
}
