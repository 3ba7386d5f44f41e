// Package services orchestrates expense operations across storage, the
// live feed, and AMQP.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/karansanghvi/spendly/internal/core"
	"github.com/karansanghvi/spendly/internal/feed"
)

// ExpenseStore is the storage surface the service needs.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.ExpenseRecord) (core.ExpenseRecord, error)
	GetExpense(ctx context.Context, id string) (core.ExpenseRecord, error)
	UpdateExpense(ctx context.Context, e core.ExpenseRecord) error
	DeleteExpense(ctx context.Context, id string) error
	ListExpenses(ctx context.Context, ownerID string) ([]core.ExpenseRecord, error)
}

// ChangePublisher broadcasts a mutation to other service instances.
type ChangePublisher interface {
	PublishExpenseChanged(ctx context.Context, ownerID, expenseID, op string) error
}

// ExpenseService applies expense mutations and keeps live feeds fresh.
// Every successful write pushes the owner's new snapshot to the local
// feed hub and, when a publisher is configured, announces the change to
// the other instances. Both notifications are best effort: the write
// already succeeded, so a delivery failure is logged, not returned.
type ExpenseService struct {
	store     ExpenseStore
	hub       *feed.Hub
	publisher ChangePublisher
}

// NewExpenseService builds a service. publisher may be nil when the app
// runs without AMQP; local feeds still work.
func NewExpenseService(store ExpenseStore, hub *feed.Hub, publisher ChangePublisher) *ExpenseService {
	return &ExpenseService{
		store:     store,
		hub:       hub,
		publisher: publisher,
	}
}

// CreateExpense validates and persists a new expense for ownerID.
func (s *ExpenseService) CreateExpense(ctx context.Context, ownerID string, e core.ExpenseRecord) (core.ExpenseRecord, error) {
	e.OwnerID = ownerID
	if err := e.Validate(); err != nil {
		return core.ExpenseRecord{}, err
	}

	created, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("save expense: %w", err)
	}

	s.notifyChanged(ctx, ownerID, created.ID, "created")
	return created, nil
}

// GetExpense returns one expense, refusing records owned by someone else.
func (s *ExpenseService) GetExpense(ctx context.Context, ownerID, id string) (core.ExpenseRecord, error) {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	if e.OwnerID != ownerID {
		return core.ExpenseRecord{}, core.ErrUnauthorized
	}
	return e, nil
}

// UpdateExpense replaces the mutable fields of an expense the owner holds.
func (s *ExpenseService) UpdateExpense(ctx context.Context, ownerID string, e core.ExpenseRecord) error {
	existing, err := s.GetExpense(ctx, ownerID, e.ID)
	if err != nil {
		return err
	}

	e.OwnerID = existing.OwnerID
	e.CreatedAt = existing.CreatedAt
	if err := e.Validate(); err != nil {
		return err
	}

	if err := s.store.UpdateExpense(ctx, e); err != nil {
		return fmt.Errorf("update expense: %w", err)
	}

	s.notifyChanged(ctx, ownerID, e.ID, "updated")
	return nil
}

// DeleteExpense removes an expense the owner holds.
func (s *ExpenseService) DeleteExpense(ctx context.Context, ownerID, id string) error {
	if _, err := s.GetExpense(ctx, ownerID, id); err != nil {
		return err
	}

	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.notifyChanged(ctx, ownerID, id, "deleted")
	return nil
}

// ListExpenses returns the owner's full collection in storage order.
func (s *ExpenseService) ListExpenses(ctx context.Context, ownerID string) ([]core.ExpenseRecord, error) {
	return s.store.ListExpenses(ctx, ownerID)
}

// ListFiltered applies the dashboard filters to the owner's collection
// and returns one page of it plus the totals of the whole filtered set.
func (s *ExpenseService) ListFiltered(ctx context.Context, ownerID string, f Filter, page int) (ExpensePage, error) {
	records, err := s.store.ListExpenses(ctx, ownerID)
	if err != nil {
		return ExpensePage{}, err
	}

	filtered := ApplyFilter(records, f)
	paged, totalPages := Paginate(filtered, page)
	return ExpensePage{
		Records:      paged,
		Page:         page,
		TotalPages:   totalPages,
		TotalRecords: len(filtered),
		Totals:       CurrencyTotals(filtered),
	}, nil
}

// RefreshFeed pushes the owner's current snapshot to local subscribers.
// Called on subscription start and when a change arrives over AMQP from
// another instance.
func (s *ExpenseService) RefreshFeed(ctx context.Context, ownerID string) error {
	records, err := s.store.ListExpenses(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("refresh feed: %w", err)
	}
	s.hub.Publish(ownerID, records)
	return nil
}

func (s *ExpenseService) notifyChanged(ctx context.Context, ownerID, expenseID, op string) {
	if err := s.RefreshFeed(ctx, ownerID); err != nil {
		slog.ErrorContext(ctx, "Failed to refresh feed after mutation",
			"owner_id", ownerID, "op", op, "error", err)
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseChanged(ctx, ownerID, expenseID, op); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change message",
			"owner_id", ownerID, "expense_id", expenseID, "op", op, "error", err)
	}
}
