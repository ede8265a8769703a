package expense

import (
	"context"

	"github.com/google/uuid"
)

// ExpenseRepository defines the persistence contract for expense aggregates.
type ExpenseRepository interface {
	// FindByID retrieves an expense by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Expense, error)

	// Save persists a new expense.
	Save(ctx context.Context, e *Expense) error

	// Update persists changes to an existing expense with optimistic locking.
	Update(ctx context.Context, e *Expense) error
}
