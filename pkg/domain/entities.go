// Package domain defines the person records, relationship sets, snapshot
// format, and rule evaluation primitives used by familytree.
package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and errors.
const (
	// EntityPerson identifies a person record.
	EntityPerson EntityType = "person"
	// EntityRelationship identifies a parent-child or spouse edge.
	EntityRelationship EntityType = "relationship"
	// EntityBackup identifies a stored snapshot backup.
	EntityBackup EntityType = "backup"
)

// Gender is the optional gender marker recorded for a person.
type Gender string

// Accepted gender values.
const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderOther  Gender = "Other"
)

// Valid reports whether g is one of the accepted values.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	default:
		return false
	}
}

// ParseGender converts user input into a Gender. Empty input yields nil (unset).
func ParseGender(raw string) (*Gender, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	g := Gender(raw)
	if !g.Valid() {
		return nil, ValidationError{Field: "gender", Message: "Gender must be one of: M, F, Other"}
	}
	return &g, nil
}

// Bounds applied to person scalar fields.
const (
	MaxNameLength = 100
	MaxCityLength = 100
	MinYear       = 1500
	MaxYear       = 2100
	// DateLayout is the only accepted form of full dates: YYYY-MM-DD.
	DateLayout = "2006-01-02"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn is reported but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Person is a single family member. Relationship sets hold ids of other
// people, sorted ascending and free of duplicates.
type Person struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	BirthYear *int    `json:"birth_year"`
	DeathYear *int    `json:"death_year"`
	Gender    *Gender `json:"gender"`
	BirthCity *string `json:"birth_city,omitempty"`
	BirthDate *string `json:"birth_date,omitempty"`
	DeathDate *string `json:"death_date,omitempty"`
	ParentIDs []int   `json:"parent_ids"`
	SpouseIDs []int   `json:"spouse_ids"`
	ChildIDs  []int   `json:"child_ids"`
}

// Clone returns a deep copy of p.
func (p Person) Clone() Person {
	cp := p
	cp.BirthYear = cloneInt(p.BirthYear)
	cp.DeathYear = cloneInt(p.DeathYear)
	if p.Gender != nil {
		g := *p.Gender
		cp.Gender = &g
	}
	cp.BirthCity = cloneString(p.BirthCity)
	cp.BirthDate = cloneString(p.BirthDate)
	cp.DeathDate = cloneString(p.DeathDate)
	cp.ParentIDs = cloneIDs(p.ParentIDs)
	cp.SpouseIDs = cloneIDs(p.SpouseIDs)
	cp.ChildIDs = cloneIDs(p.ChildIDs)
	return cp
}

// YearRange renders the lifespan as "<birth>-<death>", using "?" for an
// unknown birth and "present" when no death is recorded. A full date wins
// over the year of the same event.
func (p Person) YearRange() string {
	return p.birthLabel() + "-" + p.deathLabel()
}

// birthLabel is the birth date, else the birth year, else "?".
func (p Person) birthLabel() string {
	switch {
	case p.BirthDate != nil:
		return *p.BirthDate
	case p.BirthYear != nil:
		return strconv.Itoa(*p.BirthYear)
	default:
		return "?"
	}
}

func (p Person) deathLabel() string {
	switch {
	case p.DeathDate != nil:
		return *p.DeathDate
	case p.DeathYear != nil:
		return strconv.Itoa(*p.DeathYear)
	default:
		return "present"
	}
}

// String renders the person the way listings display them, e.g.
// "John Smith (1950-present) [M] from Boston".
func (p Person) String() string {
	var b strings.Builder
	b.WriteString(p.Name)
	fmt.Fprintf(&b, " (%s)", p.YearRange())
	if p.Gender != nil {
		fmt.Fprintf(&b, " [%s]", *p.Gender)
	}
	if p.BirthCity != nil && *p.BirthCity != "" {
		fmt.Fprintf(&b, " from %s", *p.BirthCity)
	}
	return b.String()
}

// PersonInput carries the scalar fields supplied when a person is created.
type PersonInput struct {
	Name      string
	BirthYear *int
	DeathYear *int
	Gender    *Gender
	BirthCity *string
	BirthDate *string
	DeathDate *string
}

// PersonUpdate describes a partial edit of a person's scalar fields. Nil
// pointers leave the field untouched; the Clear flags unset optional fields.
type PersonUpdate struct {
	Name      *string
	BirthYear *int
	DeathYear *int
	Gender    *Gender
	BirthCity *string
	BirthDate *string
	DeathDate *string

	ClearBirthYear bool
	ClearDeathYear bool
	ClearGender    bool
	ClearBirthCity bool
	ClearBirthDate bool
	ClearDeathDate bool
}

// IsZero reports whether the update changes nothing.
func (u PersonUpdate) IsZero() bool {
	return u.Name == nil && u.BirthYear == nil && u.DeathYear == nil && u.Gender == nil && u.BirthCity == nil &&
		u.BirthDate == nil && u.DeathDate == nil &&
		!u.ClearBirthYear && !u.ClearDeathYear && !u.ClearGender && !u.ClearBirthCity &&
		!u.ClearBirthDate && !u.ClearDeathDate
}

// Apply writes the update onto p. It never touches relationship sets.
func (u PersonUpdate) Apply(p *Person) error {
	if u.Name != nil {
		p.Name = *u.Name
	}
	switch {
	case u.ClearBirthYear:
		p.BirthYear = nil
	case u.BirthYear != nil:
		p.BirthYear = cloneInt(u.BirthYear)
	}
	switch {
	case u.ClearDeathYear:
		p.DeathYear = nil
	case u.DeathYear != nil:
		p.DeathYear = cloneInt(u.DeathYear)
	}
	switch {
	case u.ClearGender:
		p.Gender = nil
	case u.Gender != nil:
		g := *u.Gender
		p.Gender = &g
	}
	switch {
	case u.ClearBirthCity:
		p.BirthCity = nil
	case u.BirthCity != nil:
		p.BirthCity = cloneString(u.BirthCity)
	}
	switch {
	case u.ClearBirthDate:
		p.BirthDate = nil
	case u.BirthDate != nil:
		p.BirthDate = cloneString(u.BirthDate)
	}
	switch {
	case u.ClearDeathDate:
		p.DeathDate = nil
	case u.DeathDate != nil:
		p.DeathDate = cloneString(u.DeathDate)
	}
	return nil
}

// NormalizePerson trims and validates the scalar fields of p in place.
func NormalizePerson(p *Person) error {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return ValidationError{Field: "name", Message: "Name cannot be empty"}
	}
	if len([]rune(name)) > MaxNameLength {
		return ValidationError{Field: "name", Message: fmt.Sprintf("Name cannot exceed %d characters", MaxNameLength)}
	}
	p.Name = name
	if err := validateYear(p.BirthYear, "birth_year"); err != nil {
		return err
	}
	if err := validateYear(p.DeathYear, "death_year"); err != nil {
		return err
	}
	var err error
	if p.BirthDate, err = normalizeDate(p.BirthDate, "birth_date"); err != nil {
		return err
	}
	if p.DeathDate, err = normalizeDate(p.DeathDate, "death_date"); err != nil {
		return err
	}
	if p.Gender != nil && !p.Gender.Valid() {
		return ValidationError{Field: "gender", Message: "Gender must be one of: M, F, Other"}
	}
	if p.BirthCity != nil {
		city := strings.TrimSpace(*p.BirthCity)
		switch {
		case city == "":
			p.BirthCity = nil
		case len([]rune(city)) > MaxCityLength:
			return ValidationError{Field: "birth_city", Message: fmt.Sprintf("City name cannot exceed %d characters", MaxCityLength)}
		default:
			p.BirthCity = &city
		}
	}
	return nil
}

func validateYear(year *int, field string) error {
	if year == nil {
		return nil
	}
	if *year < MinYear || *year > MaxYear {
		return ValidationError{Field: field, Message: fmt.Sprintf("Year must be between %d and %d", MinYear, MaxYear)}
	}
	return nil
}

// ParseDate validates a YYYY-MM-DD date within the accepted year range and
// returns it in canonical form. Blank input yields nil (unset).
func ParseDate(raw, field string) (*string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil, ValidationError{Field: field, Message: "Date must be in YYYY-MM-DD format"}
	}
	if t.Year() < MinYear || t.Year() > MaxYear {
		return nil, ValidationError{Field: field, Message: fmt.Sprintf("Year must be between %d and %d", MinYear, MaxYear)}
	}
	out := t.Format(DateLayout)
	return &out, nil
}

// DateYear returns the year of a date already accepted by ParseDate.
func DateYear(date string) (int, bool) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return 0, false
	}
	return t.Year(), true
}

func normalizeDate(date *string, field string) (*string, error) {
	if date == nil {
		return nil, nil
	}
	return ParseDate(*date, field)
}

// Snapshot is the persisted form of the whole store: the id counter plus
// every person ordered by id.
type Snapshot struct {
	NextID int      `json:"next_id"`
	People []Person `json:"people"`
}

// EmptySnapshot returns the state of a brand new store.
func EmptySnapshot() Snapshot {
	return Snapshot{NextID: 1, People: []Person{}}
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{NextID: s.NextID, People: make([]Person, 0, len(s.People))}
	for _, p := range s.People {
		out.People = append(out.People, p.Clone())
	}
	return out
}

// Change records a single mutation applied within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the supported modifications.
const (
	// ActionCreate indicates a person was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates scalar fields or relationships changed.
	ActionUpdate Action = "update"
	// ActionDelete indicates a person was removed.
	ActionDelete Action = "delete"
)

// Violation reports a rule outcome for a specific person.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID int
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the non-blocking violations.
func (r Result) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity != SeverityBlock {
			out = append(out, v)
		}
	}
	return out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

func cloneIDs(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return slices.Clone(ids)
}

// ContainsID reports whether the sorted id set contains id.
func ContainsID(ids []int, id int) bool {
	_, found := slices.BinarySearch(ids, id)
	return found
}

// InsertID adds id to the sorted set, returning the set unchanged when present.
func InsertID(ids []int, id int) []int {
	i, found := slices.BinarySearch(ids, id)
	if found {
		return ids
	}
	return slices.Insert(ids, i, id)
}

// RemoveID drops id from the sorted set.
func RemoveID(ids []int, id int) []int {
	i, found := slices.BinarySearch(ids, id)
	if !found {
		return ids
	}
	return slices.Delete(ids, i, i+1)
}

// NormalizeIDs sorts and de-duplicates an id set, never returning nil.
func NormalizeIDs(ids []int) []int {
	out := cloneIDs(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
