package finance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ListTransactions returns the transactions matching f, newest first.
func (c *Client) ListTransactions(ctx context.Context, f TransactionFilter) (*TransactionPage, error) {
	if err := c.check("filter", f); err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/transactions/", f.query(), nil, &raw); err != nil {
		return nil, err
	}
	page, err := decodePage(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding transactions: %w", err)
	}
	return page, nil
}

func (f TransactionFilter) query() url.Values {
	q := url.Values{}
	if !f.Start.IsZero() {
		q.Set("start", f.Start.String())
	}
	if !f.End.IsZero() {
		q.Set("end", f.End.String())
	}
	if f.Category > 0 {
		q.Set("category", strconv.FormatInt(f.Category, 10))
	}
	if f.Emotion != "" {
		q.Set("emotion", string(f.Emotion))
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(f.PageSize))
	}
	return q
}

// decodePage accepts both a paginated {count, results} object and a bare list.
func decodePage(raw json.RawMessage) (*TransactionPage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var list []Transaction
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return &TransactionPage{Count: len(list), Results: list}, nil
	}

	var page TransactionPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, err
	}
	if page.Results == nil {
		page.Results = []Transaction{}
	}
	return &page, nil
}

// GetTransaction fetches one transaction.
func (c *Client) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	var t Transaction
	if err := c.do(ctx, http.MethodGet, idPath("transactions", id), nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTransaction records a new transaction. Expenses without a trigger get
// DefaultTrigger; incomes never carry one.
func (c *Client) CreateTransaction(ctx context.Context, in TransactionInput) (*Transaction, error) {
	in = in.normalize()
	if err := c.check("transaction", in); err != nil {
		return nil, err
	}

	var t Transaction
	if err := c.do(ctx, http.MethodPost, "/transactions/", nil, in, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTransaction replaces transaction id with in.
func (c *Client) UpdateTransaction(ctx context.Context, id int64, in TransactionInput) (*Transaction, error) {
	in = in.normalize()
	if err := c.check("transaction", in); err != nil {
		return nil, err
	}

	var t Transaction
	if err := c.do(ctx, http.MethodPut, idPath("transactions", id), nil, in, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTransaction removes transaction id.
func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("transactions", id), nil, nil, nil)
}
