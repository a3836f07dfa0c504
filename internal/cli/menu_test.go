package cli

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func script(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func TestMenuSession(t *testing.T) {
	h := newHarness(t)
	in := script(
		"1", "John Smith", "1950", "", "M", "Boston",
		"1", "Mary Johnson", "1952", "", "F", "",
		"1", "Michael Smith", "1975", "", "", "",
		"3", "1", "2",
		// "john" also matches Mary Johnson, so an id is asked for.
		"2", "john", "1", "Michael",
		"2", "2", "3",
		"5", "3",
		"6", "",
		"7", "smith",
		"42",
		"0",
	)
	out, err := h.exec(in, "menu")
	require.NoError(t, err)

	assert.Contains(t, out, "Added: John Smith (1950-present) [M] from Boston (ID: 1)")
	assert.Contains(t, out, "John Smith ⚭ Mary Johnson")
	assert.Contains(t, out, "John Smith is now a parent of Michael Smith")
	assert.Contains(t, out, "Mary Johnson is now a parent of Michael Smith")
	assert.Contains(t, out, "Parents:")
	assert.NotContains(t, out, "Siblings:")
	assert.Contains(t, out, "  ├── Michael Smith (1975-present)\n")
	assert.Contains(t, out, `invalid choice "42"`)
	assert.Contains(t, out, "Goodbye!")

	snap := h.snapshot()
	require.Len(t, snap.People, 3)
	assert.Equal(t, []int{1, 2}, snap.People[2].ParentIDs)
	assert.Equal(t, 4, snap.NextID)
}

func TestMenuEndOfInputSavesBeforeExit(t *testing.T) {
	h := newHarness(t)
	out, err := h.exec(script("1", "Ann", "", "", "", ""), "menu")
	require.NoError(t, err)
	assert.Contains(t, out, "Added: Ann")
	assert.Contains(t, out, "Saved to")
	assert.Contains(t, out, "Goodbye!")
	_, statErr := os.Stat(h.data)
	require.NoError(t, statErr)
	snap := h.snapshot()
	require.Len(t, snap.People, 1)
	assert.Equal(t, "Ann", snap.People[0].Name)
}

func TestMenuEndOfInputMidPromptSaves(t *testing.T) {
	h := newHarness(t)
	h.mustExec("add", "Ann")
	out, err := h.exec(script("1", "Bob", "1960"), "menu")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved to")
	assert.Len(t, h.snapshot().People, 1)
}

func TestMenuAcceptsDates(t *testing.T) {
	h := newHarness(t)
	in := script(
		"1", "Ann", "1950-05-01", "1950-13-01",
		"1", "Ann", "1950-05-01", "", "", "",
		"8", "1", "", "1951", "2001-02-03", "", "",
		"0",
	)
	out, err := h.exec(in, "menu")
	require.NoError(t, err)
	assert.Contains(t, out, "Date must be in YYYY-MM-DD format")
	assert.Contains(t, out, "Added: Ann (1950-05-01-present)")
	assert.Contains(t, out, "Updated: Ann (1951-2001-02-03)")

	snap := h.snapshot()
	require.Len(t, snap.People, 1)
	p := snap.People[0]
	assert.Nil(t, p.BirthDate)
	require.NotNil(t, p.BirthYear)
	assert.Equal(t, 1951, *p.BirthYear)
	require.NotNil(t, p.DeathDate)
	assert.Equal(t, "2001-02-03", *p.DeathDate)
}

func TestMenuReportsErrorsAndContinues(t *testing.T) {
	h := newHarness(t)
	h.mustExec("add", "Ann", "--birth", "1950")
	in := script(
		"1", "Bad Year", "abc",
		"1", "", "", "", "", "",
		"2", "1", "1",
		"5", "99",
		"5", "nobody",
		"9", "",
		"10",
		"0",
	)
	out, err := h.exec(in, "menu")
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 1 family member(s)")
	assert.Contains(t, out, "Year must be a number")
	assert.Contains(t, out, "Name cannot be empty")
	assert.Contains(t, out, "Cannot create parent-child relationship with self")
	assert.Contains(t, out, "not found")
	assert.Contains(t, out, "Cancelled.")
	assert.Contains(t, out, "Saved to")
	assert.Len(t, h.snapshot().People, 1)
}

func TestMenuEditAndRemove(t *testing.T) {
	h := newHarness(t)
	h.mustExec("add", "Ann", "--birth", "1950", "--city", "Rome")
	h.mustExec("add", "Bob")
	in := script(
		"8", "Ann", "", "", "1940", "", "-",
		"8", "2", "", "", "", "", "",
		"9", "2", "n",
		"9", "2", "y",
		"0",
	)
	out, err := h.exec(in, "menu")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated: Ann (1950-1940)")
	assert.Contains(t, out, "warning:")
	assert.Contains(t, out, "No changes made.")
	assert.Contains(t, out, "Cancelled.")
	assert.Contains(t, out, "Removed: Bob")

	snap := h.snapshot()
	require.Len(t, snap.People, 1)
	assert.Nil(t, snap.People[0].BirthCity)
	require.NotNil(t, snap.People[0].DeathYear)
	assert.Equal(t, 1940, *snap.People[0].DeathYear)
}
