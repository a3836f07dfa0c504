package core

import (
	"context"
	"fmt"

	"familytree/pkg/domain"
)

const lifespanRuleName = "lifespan_consistency"

// LifespanConsistencyRule warns when a person created or edited in the
// transaction died before being born, by full dates when both are known and
// by years otherwise. It never blocks.
func LifespanConsistencyRule() domain.Rule {
	return lifespanConsistencyRule{}
}

type lifespanConsistencyRule struct{}

func (lifespanConsistencyRule) Name() string { return lifespanRuleName }

func (lifespanConsistencyRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	seen := make(map[int]struct{})
	for _, change := range changes {
		if change.Entity != domain.EntityPerson || change.After == nil {
			continue
		}
		person, ok := change.After.(domain.Person)
		if !ok {
			continue
		}
		if before, ok := change.Before.(domain.Person); ok && sameLifespan(before, person) {
			continue
		}
		if _, dup := seen[person.ID]; dup {
			continue
		}
		seen[person.ID] = struct{}{}
		if v, ok := lifespanViolation(person); ok {
			res.Violations = append(res.Violations, v)
		}
	}
	return res, nil
}

func sameLifespan(a, b domain.Person) bool {
	return equalPtr(a.BirthYear, b.BirthYear) && equalPtr(a.DeathYear, b.DeathYear) &&
		equalPtr(a.BirthDate, b.BirthDate) && equalPtr(a.DeathDate, b.DeathDate)
}

func equalPtr[T comparable](x, y *T) bool {
	if x == nil || y == nil {
		return x == y
	}
	return *x == *y
}

func lifespanViolation(p domain.Person) (domain.Violation, bool) {
	var msg string
	if p.BirthDate != nil && p.DeathDate != nil {
		// Canonical YYYY-MM-DD strings order chronologically.
		if *p.DeathDate >= *p.BirthDate {
			return domain.Violation{}, false
		}
		msg = fmt.Sprintf("%s has death date %s before birth date %s", p.Name, *p.DeathDate, *p.BirthDate)
	} else {
		birth, okBirth := eventYear(p.BirthYear, p.BirthDate)
		death, okDeath := eventYear(p.DeathYear, p.DeathDate)
		if !okBirth || !okDeath || death >= birth {
			return domain.Violation{}, false
		}
		msg = fmt.Sprintf("%s has death year %d before birth year %d", p.Name, death, birth)
	}
	return domain.Violation{
		Rule:     lifespanRuleName,
		Severity: domain.SeverityWarn,
		Message:  msg,
		Entity:   domain.EntityPerson,
		EntityID: p.ID,
	}, true
}

func eventYear(year *int, date *string) (int, bool) {
	if year != nil {
		return *year, true
	}
	if date != nil {
		return domain.DateYear(*date)
	}
	return 0, false
}
