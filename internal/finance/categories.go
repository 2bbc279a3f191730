package finance

import (
	"context"
	"net/http"
	"strings"
)

// ListCategories returns the user's categories ordered by name.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var list []Category
	if err := c.do(ctx, http.MethodGet, "/categories/", nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateCategory adds a category.
func (c *Client) CreateCategory(ctx context.Context, name string) (*Category, error) {
	in := categoryInput{Name: strings.TrimSpace(name)}
	if err := c.check("category", in); err != nil {
		return nil, err
	}

	var cat Category
	if err := c.do(ctx, http.MethodPost, "/categories/", nil, in, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// RenameCategory changes the name of category id.
func (c *Client) RenameCategory(ctx context.Context, id int64, name string) (*Category, error) {
	in := categoryInput{Name: strings.TrimSpace(name)}
	if err := c.check("category", in); err != nil {
		return nil, err
	}

	var cat Category
	if err := c.do(ctx, http.MethodPatch, idPath("categories", id), nil, in, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// DeleteCategory removes category id. Its transactions become uncategorized.
func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("categories", id), nil, nil, nil)
}
