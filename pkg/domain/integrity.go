package domain

import (
	"fmt"
	"slices"
	"strings"
)

// IntegrityRuleName labels violations reported by CheckIntegrity.
const IntegrityRuleName = "relationship_integrity"

// CheckIntegrity verifies a complete set of people: positive unique ids,
// non-empty names, symmetric parent/child and spouse sets, no self or
// dangling references, acyclic ancestry and an id counter above every id.
// Every violation it reports is blocking.
func CheckIntegrity(people []Person, nextID int) []Violation {
	var out []Violation
	report := func(id int, format string, args ...any) {
		out = append(out, Violation{
			Rule:     IntegrityRuleName,
			Severity: SeverityBlock,
			Message:  fmt.Sprintf(format, args...),
			Entity:   EntityPerson,
			EntityID: id,
		})
	}

	index := make(map[int]Person, len(people))
	for _, p := range people {
		if p.ID <= 0 {
			report(p.ID, "person %q has non-positive id %d", p.Name, p.ID)
			continue
		}
		if _, dup := index[p.ID]; dup {
			report(p.ID, "duplicate person id %d", p.ID)
			continue
		}
		index[p.ID] = p
	}

	ids := make([]int, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		p := index[id]
		if strings.TrimSpace(p.Name) == "" {
			report(id, "person %d has an empty name", id)
		}
		if id >= nextID {
			report(id, "next_id %d is not greater than person id %d", nextID, id)
		}
		checkEdges := func(set string, refs []int, back func(Person) []int, backSet string) {
			for _, ref := range refs {
				if ref == id {
					report(id, "person %d lists itself in %s", id, set)
					continue
				}
				other, ok := index[ref]
				if !ok {
					report(id, "person %d references missing person %d in %s", id, ref, set)
					continue
				}
				if !slices.Contains(back(other), id) {
					report(id, "person %d lists %d in %s but %d does not list %d in %s", id, ref, set, ref, id, backSet)
				}
			}
		}
		checkEdges("parent_ids", p.ParentIDs, func(o Person) []int { return o.ChildIDs }, "child_ids")
		checkEdges("child_ids", p.ChildIDs, func(o Person) []int { return o.ParentIDs }, "parent_ids")
		checkEdges("spouse_ids", p.SpouseIDs, func(o Person) []int { return o.SpouseIDs }, "spouse_ids")
	}

	if id, ok := findCycle(index, ids); ok {
		report(id, "parent-child cycle through person %d", id)
	}
	return out
}

// findCycle runs a colored depth-first search over child_ids and returns a
// person that sits on a cycle.
func findCycle(index map[int]Person, ids []int) (int, bool) {
	const (
		unvisited = iota
		active
		done
	)
	color := make(map[int]int, len(ids))
	var visit func(id int) (int, bool)
	visit = func(id int) (int, bool) {
		color[id] = active
		for _, child := range index[id].ChildIDs {
			if _, ok := index[child]; !ok {
				continue
			}
			switch color[child] {
			case active:
				return child, true
			case unvisited:
				if found, ok := visit(child); ok {
					return found, true
				}
			}
		}
		color[id] = done
		return 0, false
	}
	for _, id := range ids {
		if color[id] != unvisited {
			continue
		}
		if found, ok := visit(id); ok {
			return found, true
		}
	}
	return 0, false
}
