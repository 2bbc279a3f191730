package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/ledgerly/internal/app"
	"github.com/florianilch/ledgerly/internal/finance"
)

func reportsCommand() *cli.Command {
	return &cli.Command{
		Name:  "reports",
		Usage: "aggregate views of your transactions",
		Commands: []*cli.Command{
			{
				Name:  "summary",
				Usage: "income, expenses and balance of the current month",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					s, err := a.Finance().MonthlySummary(ctx)
					if err != nil {
						return err
					}
					return render(cmd, s, func() *table {
						t := &table{header: []string{"INCOME", "EXPENSES", "BALANCE"}}
						t.add(s.Income.String(), s.Expenses.String(), s.Balance.String())
						return t
					})
				}),
			},
			{
				Name:  "expenses",
				Usage: "expenses per category",
				Flags: rangeFlagSet(),
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					return categoryReport(ctx, cmd, a.Finance().ExpensesByCategory)
				}),
			},
			{
				Name:  "incomes",
				Usage: "incomes per category",
				Flags: rangeFlagSet(),
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					return categoryReport(ctx, cmd, a.Finance().IncomesByCategory)
				}),
			},
			{
				Name:  "emotions",
				Usage: "expenses per emotional trigger",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					rows, err := a.Finance().ExpensesByEmotion(ctx)
					if err != nil {
						return err
					}
					return render(cmd, rows, func() *table {
						t := &table{header: []string{"TRIGGER", "TOTAL"}}
						for _, r := range rows {
							t.add(string(r.Trigger), r.Total.String())
						}
						return t
					})
				}),
			},
		},
	}
}

type categoryReportFunc func(context.Context, finance.DateRange) ([]finance.CategoryTotal, error)

func categoryReport(ctx context.Context, cmd *cli.Command, fetch categoryReportFunc) error {
	r, err := rangeFlags(cmd)
	if err != nil {
		return err
	}
	rows, err := fetch(ctx, r)
	if err != nil {
		return err
	}
	return render(cmd, rows, func() *table {
		t := &table{header: []string{"CATEGORY", "TOTAL"}}
		for _, row := range rows {
			t.add(row.Category, row.Total.String())
		}
		return t
	})
}
