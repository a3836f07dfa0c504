package cli

import (
	"context"
	"strings"

	"familytree/internal/core"
	"familytree/pkg/domain"

	"github.com/spf13/cobra"
)

type personFlags struct {
	name      string
	birth     int
	death     int
	birthDate string
	deathDate string
	gender    string
	city      string
}

func (f *personFlags) register(cmd *cobra.Command, withName bool) {
	if withName {
		cmd.Flags().StringVar(&f.name, "name", "", "full name")
	}
	cmd.Flags().IntVar(&f.birth, "birth", 0, "birth year")
	cmd.Flags().IntVar(&f.death, "death", 0, "death year")
	cmd.Flags().StringVar(&f.birthDate, "birth-date", "", "birth date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.deathDate, "death-date", "", "death date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.gender, "gender", "", "M, F or Other")
	cmd.Flags().StringVar(&f.city, "city", "", "birth city")
}

func intFlag(cmd *cobra.Command, name string, v int) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

func stringFlag(cmd *cobra.Command, name string, v string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

func (a *app) addCommand() *cobra.Command {
	var f personFlags
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := core.PersonInput{
				Name:      args[0],
				BirthYear: intFlag(cmd, "birth", f.birth),
				DeathYear: intFlag(cmd, "death", f.death),
				BirthDate: stringFlag(cmd, "birth-date", f.birthDate),
				DeathDate: stringFlag(cmd, "death-date", f.deathDate),
			}
			gender, err := domain.ParseGender(f.gender)
			if err != nil {
				return err
			}
			in.Gender = gender
			if cmd.Flags().Changed("city") {
				in.BirthCity = &f.city
			}
			return a.run(cmd, true, func(ctx context.Context, svc *core.Service) error {
				person, res, err := svc.AddPerson(ctx, in)
				if err != nil {
					return err
				}
				a.out.ok("Added: %s (ID: %d)", person.String(), person.ID)
				a.out.warnings(res)
				return nil
			})
		},
	}
	f.register(cmd, false)
	return cmd
}

func (a *app) editCommand() *cobra.Command {
	var (
		f           personFlags
		clearFields []string
	)
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a person's name, years, dates, gender or birth city",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "id")
			if err != nil {
				return err
			}
			update := core.PersonUpdate{
				BirthYear: intFlag(cmd, "birth", f.birth),
				DeathYear: intFlag(cmd, "death", f.death),
				BirthDate: stringFlag(cmd, "birth-date", f.birthDate),
				DeathDate: stringFlag(cmd, "death-date", f.deathDate),
			}
			if cmd.Flags().Changed("name") {
				update.Name = &f.name
			}
			if cmd.Flags().Changed("gender") {
				g, err := domain.ParseGender(f.gender)
				if err != nil {
					return err
				}
				update.Gender = g
				update.ClearGender = g == nil
			}
			if cmd.Flags().Changed("city") {
				update.BirthCity = &f.city
			}
			for _, field := range clearFields {
				switch strings.ToLower(strings.TrimSpace(field)) {
				case "birth":
					update.ClearBirthYear = true
				case "death":
					update.ClearDeathYear = true
				case "birth-date":
					update.ClearBirthDate = true
				case "death-date":
					update.ClearDeathDate = true
				case "gender":
					update.ClearGender = true
				case "city":
					update.ClearBirthCity = true
				default:
					return domain.ValidationError{Field: "clear", Message: "can clear birth, death, birth-date, death-date, gender or city, not " + field}
				}
			}
			return a.run(cmd, true, func(ctx context.Context, svc *core.Service) error {
				person, res, err := svc.EditPerson(ctx, id, update)
				if err != nil {
					return err
				}
				a.out.ok("Updated: %s", person.String())
				a.out.warnings(res)
				return nil
			})
		},
	}
	f.register(cmd, true)
	cmd.Flags().StringSliceVar(&clearFields, "clear", nil, "fields to unset: birth, death, birth-date, death-date, gender, city")
	return cmd
}

func (a *app) removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Remove a person and every relationship that references them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "id")
			if err != nil {
				return err
			}
			return a.run(cmd, true, func(ctx context.Context, svc *core.Service) error {
				person, _, err := svc.RemovePerson(ctx, id)
				if err != nil {
					return err
				}
				a.out.ok("Removed: %s", person.Name)
				return nil
			})
		},
	}
}

// relationCommands builds the parent and spouse subcommands shared by link
// and unlink.
func (a *app) relationCommands(verb string, parent, spouse func(context.Context, *core.Service, int, int) (core.Result, error)) []*cobra.Command {
	pair := func(use, short, firstField, secondField string, op func(context.Context, *core.Service, int, int) (core.Result, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				first, err := parseID(args[0], firstField)
				if err != nil {
					return err
				}
				second, err := parseID(args[1], secondField)
				if err != nil {
					return err
				}
				return a.run(cmd, true, func(ctx context.Context, svc *core.Service) error {
					res, err := op(ctx, svc, first, second)
					if err != nil {
						return err
					}
					a.out.ok("%s %s: %d and %d", verb, strings.Fields(use)[0], first, second)
					a.out.warnings(res)
					return nil
				})
			},
		}
	}
	return []*cobra.Command{
		pair("parent PARENT_ID CHILD_ID", verb+" a parent and child", "parent_id", "child_id", parent),
		pair("spouse ID ID", verb+" two spouses", "id_a", "spouse_id", spouse),
	}
}

func (a *app) linkCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "link", Short: "Record a relationship"}
	cmd.AddCommand(a.relationCommands("Linked",
		func(ctx context.Context, svc *core.Service, p, c int) (core.Result, error) { return svc.AddParentChild(ctx, p, c) },
		func(ctx context.Context, svc *core.Service, x, y int) (core.Result, error) { return svc.AddSpouse(ctx, x, y) },
	)...)
	return cmd
}

func (a *app) unlinkCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "unlink", Short: "Remove a relationship"}
	cmd.AddCommand(a.relationCommands("Unlinked",
		func(ctx context.Context, svc *core.Service, p, c int) (core.Result, error) { return svc.RemoveParentChild(ctx, p, c) },
		func(ctx context.Context, svc *core.Service, x, y int) (core.Result, error) { return svc.RemoveSpouse(ctx, x, y) },
	)...)
	return cmd
}

func (a *app) listCommand() *cobra.Command {
	var sortBy string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List everyone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			order, err := core.ParseListOrder(sortBy)
			if err != nil {
				return err
			}
			return a.run(cmd, false, func(ctx context.Context, svc *core.Service) error {
				people, err := svc.ListPeople(ctx, order)
				if err != nil {
					return err
				}
				a.out.people(people)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sortBy, "sort", "id", "id or name")
	return cmd
}

func (a *app) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a person with parents, spouses, children and siblings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "id")
			if err != nil {
				return err
			}
			return a.run(cmd, false, func(ctx context.Context, svc *core.Service) error {
				details, err := svc.PersonDetails(ctx, id)
				if err != nil {
					return err
				}
				a.out.details(details)
				return nil
			})
		},
	}
}

func (a *app) treeCommand() *cobra.Command {
	var root int
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Render the family tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, false, func(ctx context.Context, svc *core.Service) error {
				var (
					text string
					err  error
				)
				if cmd.Flags().Changed("root") {
					text, err = svc.RenderSubtree(ctx, root)
				} else {
					text, err = svc.RenderTree(ctx)
				}
				if err != nil {
					return err
				}
				a.out.tree(text)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&root, "root", 0, "render only this person's descendants")
	return cmd
}

func (a *app) searchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search QUERY",
		Short: "Find people by part of their name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, false, func(ctx context.Context, svc *core.Service) error {
				people, err := svc.Search(ctx, args[0])
				if err != nil {
					return err
				}
				if len(people) == 0 {
					a.out.info("No matches found.")
					return nil
				}
				a.out.people(people)
				return nil
			})
		},
	}
}

func (a *app) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run every consistency rule over the whole tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, false, func(ctx context.Context, svc *core.Service) error {
				res, err := svc.Check(ctx)
				if err != nil {
					return err
				}
				a.out.violations(res)
				return nil
			})
		},
	}
}
