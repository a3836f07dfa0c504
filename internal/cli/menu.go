package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"familytree/internal/core"
	"familytree/pkg/domain"

	"github.com/spf13/cobra"
)

var errCancelled = errors.New("cancelled")

var menuItems = []string{
	"1  Add person",
	"2  Add parent-child relationship",
	"3  Add spouse relationship",
	"4  List everyone",
	"5  Person details",
	"6  Family tree",
	"7  Search by name",
	"8  Edit person",
	"9  Remove person",
	"10 Save",
	"0  Save and exit",
}

type menu struct {
	ctx context.Context
	svc *core.Service
	out *printer
	in  *bufio.Scanner
}

func (a *app) menuCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive numbered menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmdContext(cmd)
			s, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer s.close()
			count := len(s.svc.Store().ExportState().People)
			if count > 0 {
				a.out.ok("Loaded %d family member(s) from %s", count, s.svc.SnapshotLocation())
			}
			m := &menu{ctx: ctx, svc: s.svc, out: a.out, in: bufio.NewScanner(a.streams.In)}
			return m.loop()
		},
	}
}

// loop runs until save-and-exit succeeds or input ends. End of input saves
// like save-and-exit before returning.
func (m *menu) loop() error {
	for {
		fmt.Fprintln(m.out.w, m.out.box.Render(m.out.title.Render("Family Tree")+"\n"+strings.Join(menuItems, "\n")))
		choice, err := m.ask("Enter choice")
		if err != nil {
			return m.eof(err)
		}
		var actionErr error
		switch choice {
		case "1":
			actionErr = m.addPerson()
		case "2":
			actionErr = m.addParentChild()
		case "3":
			actionErr = m.addSpouse()
		case "4":
			actionErr = m.listAll()
		case "5":
			actionErr = m.details()
		case "6":
			actionErr = m.tree()
		case "7":
			actionErr = m.search()
		case "8":
			actionErr = m.edit()
		case "9":
			actionErr = m.remove()
		case "10":
			actionErr = m.save()
		case "0":
			if err := m.save(); err != nil {
				m.out.err(err)
				continue
			}
			m.out.info("Goodbye!")
			return nil
		default:
			m.out.err(fmt.Errorf("invalid choice %q: enter a number from 0 to 10", choice))
			continue
		}
		switch {
		case actionErr == nil:
		case errors.Is(actionErr, io.EOF):
			return m.eof(actionErr)
		case errors.Is(actionErr, errCancelled):
			m.out.info("Cancelled.")
		default:
			m.out.err(actionErr)
		}
	}
}

func (m *menu) eof(err error) error {
	if !errors.Is(err, io.EOF) {
		return err
	}
	if err := m.save(); err != nil {
		return err
	}
	m.out.info("Goodbye!")
	return nil
}

func (m *menu) ask(label string) (string, error) {
	fmt.Fprintf(m.out.w, "%s: ", label)
	if !m.in.Scan() {
		fmt.Fprintln(m.out.w)
		if err := m.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(m.in.Text()), nil
}

func (m *menu) confirm(label string) (bool, error) {
	answer, err := m.ask(label + " [y/N]")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

func parseYear(raw, field string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return nil, domain.ValidationError{Field: field, Message: fmt.Sprintf("Year must be a number, got %q", raw)}
	}
	return &year, nil
}

// lifeEvent is a birth or death answer: a bare year or a YYYY-MM-DD date.
type lifeEvent struct {
	year *int
	date *string
}

func parseLifeEvent(raw, event string) (lifeEvent, error) {
	if strings.Count(raw, "-") == 2 && !strings.HasPrefix(raw, "-") {
		date, err := domain.ParseDate(raw, event+"_date")
		return lifeEvent{date: date}, err
	}
	year, err := parseYear(raw, event+"_year")
	return lifeEvent{year: year}, err
}

func eventLabel(year *int, date *string) string {
	if date != nil {
		return *date
	}
	return orDash(year)
}

// pickPerson resolves an id or a name fragment to one person. Several
// matches are listed and the user is asked for an id.
func (m *menu) pickPerson(label string, optional bool) (core.Person, error) {
	raw, err := m.ask(label + " (ID or name)")
	if err != nil {
		return core.Person{}, err
	}
	if raw == "" {
		if optional {
			return core.Person{}, nil
		}
		return core.Person{}, errCancelled
	}
	if id, convErr := strconv.Atoi(raw); convErr == nil {
		return m.svc.GetPerson(m.ctx, id)
	}
	matches, err := m.svc.Search(m.ctx, raw)
	if err != nil {
		return core.Person{}, err
	}
	switch len(matches) {
	case 0:
		return core.Person{}, domain.NotFoundError{Entity: core.EntityPerson, Key: fmt.Sprintf("matching %q", raw)}
	case 1:
		m.out.info("Found: %s (ID: %d)", matches[0].String(), matches[0].ID)
		return matches[0], nil
	}
	m.out.people(matches)
	choice, err := m.ask("Select ID")
	if err != nil {
		return core.Person{}, err
	}
	if choice == "" {
		return core.Person{}, errCancelled
	}
	id, err := parseID(choice, "id")
	if err != nil {
		return core.Person{}, err
	}
	return m.svc.GetPerson(m.ctx, id)
}

func (m *menu) addPerson() error {
	name, err := m.ask("Name")
	if err != nil {
		return err
	}
	in := core.PersonInput{Name: name}
	birth, err := m.ask("Birth year or date (YYYY or YYYY-MM-DD, optional)")
	if err != nil {
		return err
	}
	born, err := parseLifeEvent(birth, "birth")
	if err != nil {
		return err
	}
	in.BirthYear, in.BirthDate = born.year, born.date
	death, err := m.ask("Death year or date (YYYY or YYYY-MM-DD, optional)")
	if err != nil {
		return err
	}
	died, err := parseLifeEvent(death, "death")
	if err != nil {
		return err
	}
	in.DeathYear, in.DeathDate = died.year, died.date
	gender, err := m.ask("Gender (M/F/Other, optional)")
	if err != nil {
		return err
	}
	if in.Gender, err = domain.ParseGender(gender); err != nil {
		return err
	}
	city, err := m.ask("Birth city (optional)")
	if err != nil {
		return err
	}
	if city != "" {
		in.BirthCity = &city
	}
	person, res, err := m.svc.AddPerson(m.ctx, in)
	if err != nil {
		return err
	}
	m.out.ok("Added: %s (ID: %d)", person.String(), person.ID)
	m.out.warnings(res)
	return nil
}

func (m *menu) addParentChild() error {
	parent, err := m.pickPerson("Parent", false)
	if err != nil {
		return err
	}
	child, err := m.pickPerson("Child", false)
	if err != nil {
		return err
	}
	res, err := m.svc.AddParentChild(m.ctx, parent.ID, child.ID)
	if err != nil {
		return err
	}
	m.out.ok("%s is now a parent of %s", parent.Name, child.Name)
	m.out.warnings(res)
	return nil
}

func (m *menu) addSpouse() error {
	first, err := m.pickPerson("First person", false)
	if err != nil {
		return err
	}
	second, err := m.pickPerson("Second person", false)
	if err != nil {
		return err
	}
	res, err := m.svc.AddSpouse(m.ctx, first.ID, second.ID)
	if err != nil {
		return err
	}
	m.out.ok("%s ⚭ %s", first.Name, second.Name)
	m.out.warnings(res)
	return nil
}

func (m *menu) listAll() error {
	people, err := m.svc.ListPeople(m.ctx, core.OrderByName)
	if err != nil {
		return err
	}
	m.out.people(people)
	return nil
}

func (m *menu) details() error {
	person, err := m.pickPerson("Person", false)
	if err != nil {
		return err
	}
	d, err := m.svc.PersonDetails(m.ctx, person.ID)
	if err != nil {
		return err
	}
	m.out.details(d)
	return nil
}

func (m *menu) tree() error {
	root, err := m.pickPerson("Start from (blank for everyone)", true)
	if err != nil {
		return err
	}
	var text string
	if root.ID == 0 {
		text, err = m.svc.RenderTree(m.ctx)
	} else {
		text, err = m.svc.RenderSubtree(m.ctx, root.ID)
	}
	if err != nil {
		return err
	}
	m.out.tree(text)
	return nil
}

func (m *menu) search() error {
	query, err := m.ask("Search by name")
	if err != nil {
		return err
	}
	people, err := m.svc.Search(m.ctx, query)
	if err != nil {
		return err
	}
	if len(people) == 0 {
		m.out.info("No matches found.")
		return nil
	}
	m.out.people(people)
	return nil
}

func orDash[T any](v *T) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

// edit keeps a field when the answer is blank and unsets an optional field
// when the answer is "-".
func (m *menu) edit() error {
	person, err := m.pickPerson("Person to edit", false)
	if err != nil {
		return err
	}
	m.out.info("Editing %s. Enter keeps a value, - clears it.", person.String())
	var u core.PersonUpdate

	name, err := m.ask(fmt.Sprintf("Name [%s]", person.Name))
	if err != nil {
		return err
	}
	if name != "" {
		u.Name = &name
	}
	// A year answer replaces the event's date and vice versa; "-" clears both.
	events := []struct {
		label     string
		event     string
		year      *int
		date      *string
		setYear   **int
		setDate   **string
		clearYear *bool
		clearDate *bool
	}{
		{"Birth year or date", "birth", person.BirthYear, person.BirthDate, &u.BirthYear, &u.BirthDate, &u.ClearBirthYear, &u.ClearBirthDate},
		{"Death year or date", "death", person.DeathYear, person.DeathDate, &u.DeathYear, &u.DeathDate, &u.ClearDeathYear, &u.ClearDeathDate},
	}
	for _, e := range events {
		raw, err := m.ask(fmt.Sprintf("%s [%s]", e.label, eventLabel(e.year, e.date)))
		if err != nil {
			return err
		}
		switch raw {
		case "":
			continue
		case "-":
			*e.clearYear = e.year != nil
			*e.clearDate = e.date != nil
			continue
		}
		parsed, err := parseLifeEvent(raw, e.event)
		if err != nil {
			return err
		}
		if parsed.date != nil {
			*e.setDate = parsed.date
			*e.clearYear = e.year != nil
		} else {
			*e.setYear = parsed.year
			*e.clearDate = e.date != nil
		}
	}
	gender, err := m.ask(fmt.Sprintf("Gender [%s]", orDash(person.Gender)))
	if err != nil {
		return err
	}
	switch gender {
	case "":
	case "-":
		u.ClearGender = true
	default:
		if u.Gender, err = domain.ParseGender(gender); err != nil {
			return err
		}
	}
	city, err := m.ask(fmt.Sprintf("Birth city [%s]", orDash(person.BirthCity)))
	if err != nil {
		return err
	}
	switch city {
	case "":
	case "-":
		u.ClearBirthCity = true
	default:
		u.BirthCity = &city
	}

	if u.IsZero() {
		m.out.info("No changes made.")
		return nil
	}
	updated, res, err := m.svc.EditPerson(m.ctx, person.ID, u)
	if err != nil {
		return err
	}
	m.out.ok("Updated: %s", updated.String())
	m.out.warnings(res)
	return nil
}

func (m *menu) remove() error {
	person, err := m.pickPerson("Person to remove", false)
	if err != nil {
		return err
	}
	ok, err := m.confirm(fmt.Sprintf("Remove %s? This cannot be undone.", person.Name))
	if err != nil {
		return err
	}
	if !ok {
		return errCancelled
	}
	removed, _, err := m.svc.RemovePerson(m.ctx, person.ID)
	if err != nil {
		return err
	}
	m.out.ok("Removed: %s", removed.Name)
	return nil
}

func (m *menu) save() error {
	if err := m.svc.Save(m.ctx); err != nil {
		return err
	}
	m.out.ok("Saved to %s", m.svc.SnapshotLocation())
	return nil
}
