package finance

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EmotionalTrigger is the motive recorded with an expense.
type EmotionalTrigger string

// Triggers accepted by the API.
const (
	TriggerBasicNeed    EmotionalTrigger = "Necessidade Básica"
	TriggerPlanning     EmotionalTrigger = "Planejamento/Objetivo"
	TriggerPleasure     EmotionalTrigger = "Prazer/Entretenimento"
	TriggerImpulse      EmotionalTrigger = "Impulso Emocional"
	TriggerSocialStatus EmotionalTrigger = "Pressão Social/Status"
	TriggerComfort      EmotionalTrigger = "Conforto/Compulsão"
	TriggerCuriosity    EmotionalTrigger = "Curiosidade/Exploração"
)

// DefaultTrigger is what the API assumes for an expense recorded without one.
const DefaultTrigger = TriggerBasicNeed

// Triggers lists every known trigger in display order.
var Triggers = []EmotionalTrigger{
	TriggerBasicNeed,
	TriggerPlanning,
	TriggerPleasure,
	TriggerImpulse,
	TriggerSocialStatus,
	TriggerComfort,
	TriggerCuriosity,
}

// Valid reports whether t is one of the known triggers.
func (t EmotionalTrigger) Valid() bool {
	for _, known := range Triggers {
		if t == known {
			return true
		}
	}
	return false
}

// ParseTrigger matches s against the known triggers, ignoring case and
// surrounding whitespace.
func ParseTrigger(s string) (EmotionalTrigger, error) {
	s = strings.TrimSpace(s)
	for _, known := range Triggers {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown emotional trigger %q", s)
}

// Transaction is a single income (positive value) or expense (negative value).
type Transaction struct {
	ID               int64             `json:"id"`
	Value            Money             `json:"value"`
	Date             Date              `json:"date"`
	Description      string            `json:"description"`
	Category         *int64            `json:"category"`
	CategoryName     string            `json:"category_name"`
	EmotionalTrigger *EmotionalTrigger `json:"emotional_trigger"`
}

// UnmarshalJSON tolerates a null description and category_name.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type wire Transaction
	var w struct {
		wire
		Description  *string `json:"description"`
		CategoryName *string `json:"category_name"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = Transaction(w.wire)
	if w.Description != nil {
		t.Description = *w.Description
	}
	if w.CategoryName != nil {
		t.CategoryName = *w.CategoryName
	}
	return nil
}

// IsExpense reports whether t is an expense.
func (t Transaction) IsExpense() bool { return t.Value.IsExpense() }

// TransactionInput is the payload for creating or replacing a transaction.
type TransactionInput struct {
	Value            Money             `json:"value" validate:"required"`
	Date             Date              `json:"date" validate:"required"`
	Description      string            `json:"description"`
	Category         *int64            `json:"category" validate:"omitempty,gt=0"`
	EmotionalTrigger *EmotionalTrigger `json:"emotional_trigger" validate:"omitempty,trigger"`
}

// normalize drops the trigger from incomes and defaults it for expenses.
func (in TransactionInput) normalize() TransactionInput {
	if !in.Value.IsExpense() {
		in.EmotionalTrigger = nil
		return in
	}
	if in.EmotionalTrigger == nil {
		t := DefaultTrigger
		in.EmotionalTrigger = &t
	}
	return in
}

// TransactionFilter narrows ListTransactions. Zero fields are not sent.
type TransactionFilter struct {
	Start    Date
	End      Date
	Category int64            `validate:"gte=0"`
	Emotion  EmotionalTrigger `validate:"omitempty,trigger"`
	Page     int              `validate:"gte=0"`
	PageSize int              `validate:"gte=0,lte=1000"`
}

// TransactionPage is one page of transactions. Count is the total number of
// matches; it equals len(Results) when the API does not paginate.
type TransactionPage struct {
	Count   int           `json:"count"`
	Results []Transaction `json:"results"`
}

// Category groups transactions.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type categoryInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

// Budget is a spending limit for a month, optionally scoped to a category.
type Budget struct {
	ID       int64  `json:"id"`
	Category *int64 `json:"category"`
	Value    Money  `json:"value"`
	Month    int    `json:"month"`
	Year     int    `json:"year"`
}

// BudgetInput is the payload for creating or replacing a budget.
type BudgetInput struct {
	Category *int64 `json:"category" validate:"omitempty,gt=0"`
	Value    Money  `json:"value" validate:"gt=0"`
	Month    int    `json:"month" validate:"min=1,max=12"`
	Year     int    `json:"year" validate:"min=1970,max=9999"`
}

// Summary is the current month's totals. Expenses is reported as a positive
// amount.
type Summary struct {
	Income   Money `json:"receitas"`
	Expenses Money `json:"despesas"`
	Balance  Money `json:"saldo"`
}

// UncategorizedLabel is the name reports use for transactions without a category.
const UncategorizedLabel = "Sem Categoria"

// CategoryTotal is a per-category aggregate, always positive.
type CategoryTotal struct {
	Category string `json:"category"`
	Total    Money  `json:"total"`
}

// categoryTotalWire matches both the expenses and the incomes report rows.
type categoryTotalWire struct {
	Category *string `json:"category"`
	Expenses *Money  `json:"total_expenses"`
	Incomes  *Money  `json:"total_incomes"`
}

func (w categoryTotalWire) total() CategoryTotal {
	ct := CategoryTotal{Category: UncategorizedLabel}
	if w.Category != nil && *w.Category != "" {
		ct.Category = *w.Category
	}
	switch {
	case w.Expenses != nil:
		ct.Total = w.Expenses.Abs()
	case w.Incomes != nil:
		ct.Total = w.Incomes.Abs()
	}
	return ct
}

// EmotionTotal is the expense total for one trigger.
type EmotionTotal struct {
	Trigger EmotionalTrigger `json:"emotional_trigger"`
	Total   Money            `json:"total_expenses"`
}

// DateRange bounds a report. It is only applied when both ends are set.
type DateRange struct {
	Start Date
	End   Date
}

// Complete reports whether both ends are set.
func (r DateRange) Complete() bool {
	return !r.Start.IsZero() && !r.End.IsZero()
}

// SignupInput registers a new user.
type SignupInput struct {
	Username string `json:"username" validate:"required,max=150"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required"`
}
