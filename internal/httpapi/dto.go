package httpapi

import (
	"familytree/internal/core"
	"familytree/pkg/domain"
)

// PersonRequest is the body of POST /people. Gender is M, F or Other;
// dates are YYYY-MM-DD.
type PersonRequest struct {
	Name      string  `json:"name" binding:"required"`
	BirthYear *int    `json:"birth_year"`
	DeathYear *int    `json:"death_year"`
	Gender    *string `json:"gender" binding:"omitempty,oneof=M F Other"`
	BirthCity *string `json:"birth_city"`
	BirthDate *string `json:"birth_date"`
	DeathDate *string `json:"death_date"`
}

func (r PersonRequest) input() (core.PersonInput, error) {
	in := core.PersonInput{
		Name:      r.Name,
		BirthYear: r.BirthYear,
		DeathYear: r.DeathYear,
		BirthCity: r.BirthCity,
		BirthDate: r.BirthDate,
		DeathDate: r.DeathDate,
	}
	if r.Gender != nil {
		g, err := domain.ParseGender(*r.Gender)
		if err != nil {
			return core.PersonInput{}, err
		}
		in.Gender = g
	}
	return in, nil
}

// EditRequest is the body of PATCH /people/:id. Absent fields are kept;
// the clear flags unset optional fields.
type EditRequest struct {
	Name      *string `json:"name"`
	BirthYear *int    `json:"birth_year"`
	DeathYear *int    `json:"death_year"`
	Gender    *string `json:"gender" binding:"omitempty,oneof=M F Other"`
	BirthCity *string `json:"birth_city"`
	BirthDate *string `json:"birth_date"`
	DeathDate *string `json:"death_date"`

	ClearBirthYear bool `json:"clear_birth_year"`
	ClearDeathYear bool `json:"clear_death_year"`
	ClearGender    bool `json:"clear_gender"`
	ClearBirthCity bool `json:"clear_birth_city"`
	ClearBirthDate bool `json:"clear_birth_date"`
	ClearDeathDate bool `json:"clear_death_date"`
}

func (r EditRequest) update() (core.PersonUpdate, error) {
	u := core.PersonUpdate{
		Name:           r.Name,
		BirthYear:      r.BirthYear,
		DeathYear:      r.DeathYear,
		BirthCity:      r.BirthCity,
		BirthDate:      r.BirthDate,
		DeathDate:      r.DeathDate,
		ClearBirthYear: r.ClearBirthYear,
		ClearDeathYear: r.ClearDeathYear,
		ClearGender:    r.ClearGender,
		ClearBirthCity: r.ClearBirthCity,
		ClearBirthDate: r.ClearBirthDate,
		ClearDeathDate: r.ClearDeathDate,
	}
	if r.Gender != nil {
		g, err := domain.ParseGender(*r.Gender)
		if err != nil {
			return core.PersonUpdate{}, err
		}
		u.Gender = g
	}
	return u, nil
}

// ParentRequest is the body of POST /people/:id/parents.
type ParentRequest struct {
	ParentID int `json:"parent_id" binding:"required,min=1"`
}

// SpouseRequest is the body of POST /people/:id/spouses.
type SpouseRequest struct {
	SpouseID int `json:"spouse_id" binding:"required,min=1"`
}

// RestoreRequest is the body of POST /backups/restore.
type RestoreRequest struct {
	Key string `json:"key" binding:"required"`
}

// ViolationResponse is a rule outcome rendered for clients.
type ViolationResponse struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	PersonID int    `json:"person_id,omitempty"`
}

func violations(vs []domain.Violation) []ViolationResponse {
	out := make([]ViolationResponse, 0, len(vs))
	for _, v := range vs {
		out = append(out, ViolationResponse{Rule: v.Rule, Severity: string(v.Severity), Message: v.Message, PersonID: v.EntityID})
	}
	return out
}

// PersonResponse wraps a mutated person with any rule warnings.
type PersonResponse struct {
	Person   core.Person         `json:"person"`
	Warnings []ViolationResponse `json:"warnings"`
}

// ResultResponse carries the warnings of a relationship mutation or the
// findings of a check.
type ResultResponse struct {
	Violations []ViolationResponse `json:"violations"`
}
