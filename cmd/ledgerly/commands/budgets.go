package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/ledgerly/internal/app"
	"github.com/florianilch/ledgerly/internal/finance"
)

func budgetsCommand() *cli.Command {
	return &cli.Command{
		Name:  "budgets",
		Usage: "manage monthly spending limits",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list budgets",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					list, err := a.Finance().ListBudgets(ctx)
					if err != nil {
						return err
					}
					return render(cmd, list, func() *table {
						t := budgetTable()
						for _, b := range list {
							addBudgetRow(t, b)
						}
						return t
					})
				}),
			},
			{
				Name:   "add",
				Usage:  "create a budget (default: current month)",
				Flags:  budgetFlags(true),
				Action: withApp(addBudget),
			},
			{
				Name:      "edit",
				Usage:     "change a budget; unset flags keep their value",
				ArgsUsage: "<id>",
				Flags:     budgetFlags(false),
				Action:    withApp(editBudget),
			},
			{
				Name:      "delete",
				Usage:     "delete a budget",
				ArgsUsage: "<id>",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					id, err := idArg(cmd, 0)
					if err != nil {
						return err
					}
					if err := a.Finance().DeleteBudget(ctx, id); err != nil {
						return err
					}
					message(cmd, "Budget %d deleted.", id)
					return nil
				}),
			},
		},
	}
}

func budgetFlags(adding bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "amount", Usage: "spending limit, e.g. 1500", Required: adding},
		&cli.IntFlag{Name: "month", Usage: "month (1-12)"},
		&cli.IntFlag{Name: "year", Usage: "year"},
		&cli.Int64Flag{Name: "category", Usage: "category id; omit for an overall budget"},
	}
}

func addBudget(ctx context.Context, cmd *cli.Command, a *app.App) error {
	now := time.Now()
	in := finance.BudgetInput{Month: int(now.Month()), Year: now.Year()}
	if err := applyBudgetFlags(cmd, &in); err != nil {
		return err
	}
	b, err := a.Finance().CreateBudget(ctx, in)
	if err != nil {
		return err
	}
	return renderBudget(cmd, b)
}

func editBudget(ctx context.Context, cmd *cli.Command, a *app.App) error {
	id, err := idArg(cmd, 0)
	if err != nil {
		return err
	}

	// The API has no single-budget read; find it in the list
	list, err := a.Finance().ListBudgets(ctx)
	if err != nil {
		return err
	}
	var current *finance.Budget
	for i := range list {
		if list[i].ID == id {
			current = &list[i]
			break
		}
	}
	if current == nil {
		return fmt.Errorf("budget %d not found", id)
	}

	in := finance.BudgetInput{
		Category: current.Category,
		Value:    current.Value,
		Month:    current.Month,
		Year:     current.Year,
	}
	if err := applyBudgetFlags(cmd, &in); err != nil {
		return err
	}
	b, err := a.Finance().UpdateBudget(ctx, id, in)
	if err != nil {
		return err
	}
	return renderBudget(cmd, b)
}

func applyBudgetFlags(cmd *cli.Command, in *finance.BudgetInput) error {
	if cmd.IsSet("amount") {
		v, err := finance.ParseMoney(cmd.String("amount"))
		if err != nil {
			return err
		}
		in.Value = v
	}
	if cmd.IsSet("month") {
		in.Month = cmd.Int("month")
	}
	if cmd.IsSet("year") {
		in.Year = cmd.Int("year")
	}
	if cmd.IsSet("category") {
		in.Category = categoryFlag(cmd)
	}
	return nil
}

func budgetTable() *table {
	return &table{header: []string{"ID", "PERIOD", "CATEGORY", "LIMIT"}}
}

func addBudgetRow(t *table, b finance.Budget) {
	category := "all"
	if b.Category != nil {
		category = strconv.FormatInt(*b.Category, 10)
	}
	t.add(strconv.FormatInt(b.ID, 10), fmt.Sprintf("%04d-%02d", b.Year, b.Month), category, b.Value.String())
}

func renderBudget(cmd *cli.Command, b *finance.Budget) error {
	return render(cmd, b, func() *table {
		t := budgetTable()
		addBudgetRow(t, *b)
		return t
	})
}
