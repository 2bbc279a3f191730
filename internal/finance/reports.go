package finance

import (
	"context"
	"net/http"
	"net/url"
)

// MonthlySummary returns income, expenses and balance for the current month.
func (c *Client) MonthlySummary(ctx context.Context) (*Summary, error) {
	var s Summary
	if err := c.do(ctx, http.MethodGet, "/transactions/summary", nil, nil, &s); err != nil {
		return nil, err
	}
	s.Expenses = s.Expenses.Abs()
	return &s, nil
}

// ExpensesByCategory totals expenses per category within r.
func (c *Client) ExpensesByCategory(ctx context.Context, r DateRange) ([]CategoryTotal, error) {
	return c.categoryReport(ctx, "/reports/expenses_by_category/", r)
}

// IncomesByCategory totals incomes per category within r.
func (c *Client) IncomesByCategory(ctx context.Context, r DateRange) ([]CategoryTotal, error) {
	return c.categoryReport(ctx, "/reports/incomes_by_category/", r)
}

func (c *Client) categoryReport(ctx context.Context, path string, r DateRange) ([]CategoryTotal, error) {
	var query url.Values
	// The API ignores a half-open range
	if r.Complete() {
		query = url.Values{"start": {r.Start.String()}, "end": {r.End.String()}}
	}

	var rows []categoryTotalWire
	if err := c.do(ctx, http.MethodGet, path, query, nil, &rows); err != nil {
		return nil, err
	}

	totals := make([]CategoryTotal, 0, len(rows))
	for _, row := range rows {
		totals = append(totals, row.total())
	}
	return totals, nil
}

// ExpensesByEmotion totals all expenses per emotional trigger.
func (c *Client) ExpensesByEmotion(ctx context.Context) ([]EmotionTotal, error) {
	var rows []EmotionTotal
	if err := c.do(ctx, http.MethodGet, "/reports/expenses_by_emotion/", nil, nil, &rows); err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Total = rows[i].Total.Abs()
	}
	return rows, nil
}
