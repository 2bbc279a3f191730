package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/ledgerly/internal/finance"
)

// idArg parses the positional argument at index i as a resource id.
func idArg(cmd *cli.Command, i int) (int64, error) {
	raw := cmd.Args().Get(i)
	if raw == "" {
		return 0, errors.New("missing id argument")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// dateFlag returns the zero Date when the flag is unset.
func dateFlag(cmd *cli.Command, name string) (finance.Date, error) {
	raw := cmd.String(name)
	if raw == "" {
		return finance.Date{}, nil
	}
	d, err := finance.ParseDate(raw)
	if err != nil {
		return finance.Date{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

// categoryFlag returns nil when the flag is unset or 0.
func categoryFlag(cmd *cli.Command) *int64 {
	if id := cmd.Int64("category"); id != 0 {
		return &id
	}
	return nil
}

func rangeFlags(cmd *cli.Command) (finance.DateRange, error) {
	start, err := dateFlag(cmd, "start")
	if err != nil {
		return finance.DateRange{}, err
	}
	end, err := dateFlag(cmd, "end")
	if err != nil {
		return finance.DateRange{}, err
	}
	if start.IsZero() != end.IsZero() {
		return finance.DateRange{}, errors.New("--start and --end must be given together")
	}
	return finance.DateRange{Start: start, End: end}, nil
}

func rangeFlagSet() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "start", Usage: "first day (YYYY-MM-DD)"},
		&cli.StringFlag{Name: "end", Usage: "last day (YYYY-MM-DD)"},
	}
}

func optional(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
