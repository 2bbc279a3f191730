package commands

import (
	"context"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/ledgerly/internal/app"
	"github.com/florianilch/ledgerly/internal/finance"
)

func transactionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "transactions",
		Aliases: []string{"tx"},
		Usage:   "manage incomes and expenses",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list transactions, newest first",
				Flags: append(rangeFlagSet(),
					&cli.Int64Flag{Name: "category", Usage: "category id"},
					&cli.StringFlag{Name: "emotion", Usage: "emotional trigger"},
					&cli.IntFlag{Name: "page", Usage: "page number"},
					&cli.IntFlag{Name: "page-size", Usage: "results per page"},
				),
				Action: withApp(listTransactions),
			},
			{
				Name:      "show",
				Usage:     "show one transaction",
				ArgsUsage: "<id>",
				Action:    withApp(showTransaction),
			},
			{
				Name:   "add",
				Usage:  "record a transaction",
				Flags:  transactionFlags(true),
				Action: withApp(addTransaction),
			},
			{
				Name:      "edit",
				Usage:     "change a transaction; unset flags keep their value",
				ArgsUsage: "<id>",
				Flags:     transactionFlags(false),
				Action:    withApp(editTransaction),
			},
			{
				Name:      "delete",
				Usage:     "delete a transaction",
				ArgsUsage: "<id>",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					id, err := idArg(cmd, 0)
					if err != nil {
						return err
					}
					if err := a.Finance().DeleteTransaction(ctx, id); err != nil {
						return err
					}
					message(cmd, "Transaction %d deleted.", id)
					return nil
				}),
			},
		},
	}
}

func transactionFlags(adding bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "amount", Usage: "amount, e.g. 45.90; negative for expenses", Required: adding},
		&cli.BoolFlag{Name: "expense", Usage: "record the amount as an expense"},
		&cli.StringFlag{Name: "date", Usage: "day of the transaction (YYYY-MM-DD, default today)"},
		&cli.StringFlag{Name: "description", Usage: "free text"},
		&cli.Int64Flag{Name: "category", Usage: "category id"},
		&cli.StringFlag{Name: "emotion", Usage: "emotional trigger of an expense"},
	}
}

func listTransactions(ctx context.Context, cmd *cli.Command, a *app.App) error {
	r, err := rangeFlags(cmd)
	if err != nil {
		return err
	}
	f := finance.TransactionFilter{
		Start:    r.Start,
		End:      r.End,
		Category: cmd.Int64("category"),
		Page:     cmd.Int("page"),
		PageSize: cmd.Int("page-size"),
	}
	if raw := cmd.String("emotion"); raw != "" {
		if f.Emotion, err = finance.ParseTrigger(raw); err != nil {
			return err
		}
	}

	page, err := a.Finance().ListTransactions(ctx, f)
	if err != nil {
		return err
	}
	return render(cmd, page, func() *table {
		t := transactionTable()
		for _, tx := range page.Results {
			addTransactionRow(t, tx)
		}
		return t
	})
}

func showTransaction(ctx context.Context, cmd *cli.Command, a *app.App) error {
	id, err := idArg(cmd, 0)
	if err != nil {
		return err
	}
	tx, err := a.Finance().GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	return renderTransaction(cmd, tx)
}

func addTransaction(ctx context.Context, cmd *cli.Command, a *app.App) error {
	in := finance.TransactionInput{Date: finance.Date{Time: time.Now()}}
	if err := applyTransactionFlags(cmd, &in); err != nil {
		return err
	}
	tx, err := a.Finance().CreateTransaction(ctx, in)
	if err != nil {
		return err
	}
	return renderTransaction(cmd, tx)
}

func editTransaction(ctx context.Context, cmd *cli.Command, a *app.App) error {
	id, err := idArg(cmd, 0)
	if err != nil {
		return err
	}
	current, err := a.Finance().GetTransaction(ctx, id)
	if err != nil {
		return err
	}

	in := finance.TransactionInput{
		Value:            current.Value,
		Date:             current.Date,
		Description:      current.Description,
		Category:         current.Category,
		EmotionalTrigger: current.EmotionalTrigger,
	}
	if err := applyTransactionFlags(cmd, &in); err != nil {
		return err
	}
	tx, err := a.Finance().UpdateTransaction(ctx, id, in)
	if err != nil {
		return err
	}
	return renderTransaction(cmd, tx)
}

// applyTransactionFlags overwrites the fields of in whose flags are set.
func applyTransactionFlags(cmd *cli.Command, in *finance.TransactionInput) error {
	if cmd.IsSet("amount") {
		v, err := finance.ParseMoney(cmd.String("amount"))
		if err != nil {
			return err
		}
		in.Value = v
	}
	if cmd.Bool("expense") {
		in.Value = -in.Value.Abs()
	}
	if cmd.IsSet("date") {
		d, err := dateFlag(cmd, "date")
		if err != nil {
			return err
		}
		in.Date = d
	}
	if cmd.IsSet("description") {
		in.Description = cmd.String("description")
	}
	if cmd.IsSet("category") {
		in.Category = categoryFlag(cmd)
	}
	if cmd.IsSet("emotion") {
		t, err := finance.ParseTrigger(cmd.String("emotion"))
		if err != nil {
			return err
		}
		in.EmotionalTrigger = &t
	}
	return nil
}

func renderTransaction(cmd *cli.Command, tx *finance.Transaction) error {
	return render(cmd, tx, func() *table {
		t := transactionTable()
		addTransactionRow(t, *tx)
		return t
	})
}

func transactionTable() *table {
	return &table{header: []string{"ID", "DATE", "AMOUNT", "CATEGORY", "TRIGGER", "DESCRIPTION"}}
}

func addTransactionRow(t *table, tx finance.Transaction) {
	trigger := ""
	if tx.EmotionalTrigger != nil && tx.IsExpense() {
		trigger = string(*tx.EmotionalTrigger)
	}
	t.add(
		strconv.FormatInt(tx.ID, 10),
		tx.Date.String(),
		tx.Value.String(),
		optional(tx.CategoryName),
		optional(trigger),
		optional(tx.Description),
	)
}
