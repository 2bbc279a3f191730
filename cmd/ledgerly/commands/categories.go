package commands

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/ledgerly/internal/app"
	"github.com/florianilch/ledgerly/internal/finance"
)

func categoriesCommand() *cli.Command {
	return &cli.Command{
		Name:  "categories",
		Usage: "manage transaction categories",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list categories",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					list, err := a.Finance().ListCategories(ctx)
					if err != nil {
						return err
					}
					return render(cmd, list, func() *table {
						t := categoryTable()
						for _, c := range list {
							t.add(strconv.FormatInt(c.ID, 10), c.Name)
						}
						return t
					})
				}),
			},
			{
				Name:      "add",
				Usage:     "create a category",
				ArgsUsage: "<name>",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					name := strings.Join(cmd.Args().Slice(), " ")
					if strings.TrimSpace(name) == "" {
						return errors.New("missing name argument")
					}
					c, err := a.Finance().CreateCategory(ctx, name)
					if err != nil {
						return err
					}
					return renderCategory(cmd, c)
				}),
			},
			{
				Name:      "rename",
				Usage:     "rename a category",
				ArgsUsage: "<id> <name>",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					id, err := idArg(cmd, 0)
					if err != nil {
						return err
					}
					name := strings.Join(cmd.Args().Tail(), " ")
					if strings.TrimSpace(name) == "" {
						return errors.New("missing name argument")
					}
					c, err := a.Finance().RenameCategory(ctx, id, name)
					if err != nil {
						return err
					}
					return renderCategory(cmd, c)
				}),
			},
			{
				Name:      "delete",
				Usage:     "delete a category; its transactions become uncategorized",
				ArgsUsage: "<id>",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					id, err := idArg(cmd, 0)
					if err != nil {
						return err
					}
					if err := a.Finance().DeleteCategory(ctx, id); err != nil {
						return err
					}
					message(cmd, "Category %d deleted.", id)
					return nil
				}),
			},
		},
	}
}

func categoryTable() *table {
	return &table{header: []string{"ID", "NAME"}}
}

func renderCategory(cmd *cli.Command, c *finance.Category) error {
	return render(cmd, c, func() *table {
		t := categoryTable()
		t.add(strconv.FormatInt(c.ID, 10), c.Name)
		return t
	})
}
