package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"familytree/internal/core"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// printer styles output for one writer. Styles degrade to plain text when
// the writer is not a terminal.
type printer struct {
	w io.Writer

	box     lipgloss.Style
	title   lipgloss.Style
	heading lipgloss.Style
	success lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	dim     lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:       w,
		box:     r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		heading: r.NewStyle().Bold(true),
		success: r.NewStyle().Foreground(lipgloss.Color("10")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("11")),
		fail:    r.NewStyle().Foreground(lipgloss.Color("9")),
		dim:     r.NewStyle().Faint(true),
	}
}

func (p *printer) line(s lipgloss.Style, format string, args ...any) {
	fmt.Fprintln(p.w, s.Render(fmt.Sprintf(format, args...)))
}

func (p *printer) ok(format string, args ...any) {
	p.line(p.success, format, args...)
}

func (p *printer) info(format string, args ...any) {
	p.line(p.dim, format, args...)
}

func (p *printer) err(e error) {
	p.line(p.fail, "%v", e)
}

func (p *printer) header(format string, args ...any) {
	p.line(p.title, format, args...)
}

func (p *printer) warnings(res core.Result) {
	for _, v := range res.Warnings() {
		p.line(p.warn, "warning: %s", v.Message)
	}
}

// dateCell shows the full date when known, else the year.
func dateCell(date *string, year *int) string {
	switch {
	case date != nil:
		return *date
	case year != nil:
		return strconv.Itoa(*year)
	default:
		return "-"
	}
}

func (p *printer) people(people []core.Person) {
	if len(people) == 0 {
		p.info("No family members yet.")
		return
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("ID", "Name", "Born", "Died", "Birthplace", "Gender")
	for _, person := range people {
		city, gender := "-", "-"
		if person.BirthCity != nil {
			city = *person.BirthCity
		}
		if person.Gender != nil {
			gender = string(*person.Gender)
		}
		t.Row(strconv.Itoa(person.ID), person.Name, dateCell(person.BirthDate, person.BirthYear), dateCell(person.DeathDate, person.DeathYear), city, gender)
	}
	fmt.Fprintln(p.w, t.String())
}

func (p *printer) details(d core.Details) {
	p.header("%s (ID: %d)", d.Person.String(), d.Person.ID)
	sections := []struct {
		label  string
		people []core.Person
	}{
		{"Parents", d.Parents},
		{"Spouses", d.Spouses},
		{"Children", d.Children},
		{"Siblings", d.Siblings},
	}
	found := false
	for _, s := range sections {
		if len(s.people) == 0 {
			continue
		}
		found = true
		fmt.Fprintln(p.w, p.heading.Render(s.label+":"))
		for _, rel := range s.people {
			fmt.Fprintf(p.w, "  %s (ID: %d)\n", rel.String(), rel.ID)
		}
	}
	if !found {
		p.info("No relationships recorded.")
	}
}

func (p *printer) tree(text string) {
	if text == "" {
		p.info("No family members yet.")
		return
	}
	fmt.Fprint(p.w, text)
}

func (p *printer) violations(res core.Result) {
	if len(res.Violations) == 0 {
		p.ok("No problems found.")
		return
	}
	for _, v := range res.Violations {
		style := p.warn
		if v.Severity == core.SeverityBlock {
			style = p.fail
		}
		p.line(style, "[%s] %s: %s", strings.ToUpper(string(v.Severity)), v.Rule, v.Message)
	}
}
