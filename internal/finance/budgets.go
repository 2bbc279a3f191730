package finance

import (
	"context"
	"net/http"
)

func (c *Client) ListBudgets(ctx context.Context) ([]Budget, error) {
	var list []Budget
	if err := c.do(ctx, http.MethodGet, "/budgets/", nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) CreateBudget(ctx context.Context, in BudgetInput) (*Budget, error) {
	if err := c.check("budget", in); err != nil {
		return nil, err
	}

	var b Budget
	if err := c.do(ctx, http.MethodPost, "/budgets/", nil, in, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) UpdateBudget(ctx context.Context, id int64, in BudgetInput) (*Budget, error) {
	if err := c.check("budget", in); err != nil {
		return nil, err
	}

	var b Budget
	if err := c.do(ctx, http.MethodPut, idPath("budgets", id), nil, in, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) DeleteBudget(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("budgets", id), nil, nil, nil)
}
