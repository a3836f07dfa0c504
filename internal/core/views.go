package core

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"familytree/pkg/domain"
)

// ListOrder selects the ordering of ListPeople.
type ListOrder string

const (
	OrderByID   ListOrder = "id"
	OrderByName ListOrder = "name"
)

// ParseListOrder accepts "id", "name" or empty (id).
func ParseListOrder(raw string) (ListOrder, error) {
	switch ListOrder(strings.ToLower(strings.TrimSpace(raw))) {
	case "", OrderByID:
		return OrderByID, nil
	case OrderByName:
		return OrderByName, nil
	default:
		return "", domain.ValidationError{Field: "sort", Message: fmt.Sprintf("unknown sort order %q (want id or name)", raw)}
	}
}

// Details is a person together with their direct relatives, each list in
// ascending id order.
type Details struct {
	Person   Person   `json:"person"`
	Parents  []Person `json:"parents"`
	Spouses  []Person `json:"spouses"`
	Children []Person `json:"children"`
	Siblings []Person `json:"siblings"`
}

// ListPeople returns everyone ordered by id, or by name with ties broken by id.
func ListPeople(v TransactionView, order ListOrder) ([]Person, error) {
	people := v.ListPeople()
	switch order {
	case "", OrderByID:
	case OrderByName:
		slices.SortStableFunc(people, func(a, b Person) int {
			return cmp.Or(cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)), cmp.Compare(a.ID, b.ID))
		})
	default:
		return nil, domain.ValidationError{Field: "sort", Message: fmt.Sprintf("unknown sort order %q", order)}
	}
	return people, nil
}

// PersonDetails resolves the relatives of id. Siblings are everyone sharing
// at least one parent, excluding the person.
func PersonDetails(v TransactionView, id int) (Details, error) {
	person, ok := v.FindPerson(id)
	if !ok {
		return Details{}, domain.NotFoundError{Entity: EntityPerson, ID: id}
	}
	siblingIDs := []int{}
	for _, parentID := range person.ParentIDs {
		parent, ok := v.FindPerson(parentID)
		if !ok {
			continue
		}
		for _, childID := range parent.ChildIDs {
			if childID != id {
				siblingIDs = domain.InsertID(siblingIDs, childID)
			}
		}
	}
	return Details{
		Person:   person,
		Parents:  resolve(v, person.ParentIDs),
		Spouses:  resolve(v, person.SpouseIDs),
		Children: resolve(v, person.ChildIDs),
		Siblings: resolve(v, siblingIDs),
	}, nil
}

func resolve(v TransactionView, ids []int) []Person {
	out := make([]Person, 0, len(ids))
	for _, id := range domain.NormalizeIDs(ids) {
		if p, ok := v.FindPerson(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// Search returns people whose name contains the trimmed query, ignoring
// case, in ascending id order. An empty query matches everyone.
func Search(v TransactionView, query string) []Person {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := []Person{}
	for _, p := range v.ListPeople() {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			out = append(out, p)
		}
	}
	return out
}

// RenderTree renders every root (a person without parents) in ascending id
// order, each followed depth-first by their descendants. A person reachable
// through several parents appears once per path. An empty store renders "".
func RenderTree(v TransactionView) string {
	var b strings.Builder
	for _, p := range v.ListPeople() {
		if len(p.ParentIDs) == 0 {
			renderNode(&b, v, p, 0)
		}
	}
	return b.String()
}

// RenderSubtree renders rootID and their descendants.
func RenderSubtree(v TransactionView, rootID int) (string, error) {
	root, ok := v.FindPerson(rootID)
	if !ok {
		return "", domain.NotFoundError{Entity: EntityPerson, ID: rootID}
	}
	var b strings.Builder
	renderNode(&b, v, root, 0)
	return b.String(), nil
}

// renderNode relies on the store rejecting ancestry cycles; the child_ids
// walk always terminates.
func renderNode(b *strings.Builder, v TransactionView, p Person, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString("├── ")
	b.WriteString(TreeLabel(v, p))
	b.WriteByte('\n')
	for _, childID := range p.ChildIDs {
		if child, ok := v.FindPerson(childID); ok {
			renderNode(b, v, child, depth+1)
		}
	}
}

// TreeLabel renders a person with every spouse name appended, e.g.
// "John Smith (1950-present) [M] ⚭ Mary Johnson; Ann Lee".
func TreeLabel(v TransactionView, p Person) string {
	label := p.String()
	spouses := resolve(v, p.SpouseIDs)
	if len(spouses) == 0 {
		return label
	}
	names := make([]string, 0, len(spouses))
	for _, s := range spouses {
		names = append(names, s.Name)
	}
	return label + " ⚭ " + strings.Join(names, "; ")
}
