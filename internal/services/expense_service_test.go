package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karansanghvi/spendly/internal/core"
	"github.com/karansanghvi/spendly/internal/feed"
)

type fakeStore struct {
	records map[string]core.ExpenseRecord
	nextID  int
	listErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]core.ExpenseRecord)}
}

func (s *fakeStore) CreateExpense(_ context.Context, e core.ExpenseRecord) (core.ExpenseRecord, error) {
	s.nextID++
	e.ID = fmt.Sprintf("exp-%d", s.nextID)
	e.CreatedAt = time.Now().UTC()
	s.records[e.ID] = e
	return e, nil
}

func (s *fakeStore) GetExpense(_ context.Context, id string) (core.ExpenseRecord, error) {
	e, ok := s.records[id]
	if !ok {
		return core.ExpenseRecord{}, core.ErrNotFound
	}
	return e, nil
}

func (s *fakeStore) UpdateExpense(_ context.Context, e core.ExpenseRecord) error {
	if _, ok := s.records[e.ID]; !ok {
		return core.ErrNotFound
	}
	s.records[e.ID] = e
	return nil
}

func (s *fakeStore) DeleteExpense(_ context.Context, id string) error {
	if _, ok := s.records[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *fakeStore) ListExpenses(_ context.Context, ownerID string) ([]core.ExpenseRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []core.ExpenseRecord
	for i := 1; i <= s.nextID; i++ {
		if e, ok := s.records[fmt.Sprintf("exp-%d", i)]; ok && e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakePublisher struct {
	published []string
	err       error
}

func (p *fakePublisher) PublishExpenseChanged(_ context.Context, ownerID, expenseID, op string) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, fmt.Sprintf("%s/%s/%s", ownerID, expenseID, op))
	return nil
}

func validExpense(title string) core.ExpenseRecord {
	return core.ExpenseRecord{
		Title:    title,
		Amount:   "100",
		Currency: core.USD,
		Category: "food",
		Date:     core.NewDate(2026, 8, 30),
	}
}

func TestCreateExpensePersistsAndNotifies(t *testing.T) {
	store := newFakeStore()
	hub := feed.NewHub()
	pub := &fakePublisher{}
	svc := NewExpenseService(store, hub, pub)

	sub := hub.Subscribe("alice")
	defer sub.Unsubscribe()

	created, err := svc.CreateExpense(context.Background(), "alice", validExpense("coffee"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "alice", created.OwnerID)

	select {
	case snap := <-sub.C:
		require.Len(t, snap, 1)
		assert.Equal(t, "coffee", snap[0].Title)
	case <-time.After(time.Second):
		t.Fatal("feed not refreshed after create")
	}

	require.Len(t, pub.published, 1)
	assert.Equal(t, "alice/"+created.ID+"/created", pub.published[0])
}

func TestCreateExpenseRejectsInvalid(t *testing.T) {
	store := newFakeStore()
	svc := NewExpenseService(store, feed.NewHub(), nil)

	bad := validExpense("coffee")
	bad.Amount = "abc"
	_, err := svc.CreateExpense(context.Background(), "alice", bad)
	require.ErrorIs(t, err, core.ErrInvalidAmount)
	assert.Empty(t, store.records)
}

func TestCreateExpenseSurvivesPublisherFailure(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewExpenseService(store, feed.NewHub(), pub)

	_, err := svc.CreateExpense(context.Background(), "alice", validExpense("coffee"))
	require.NoError(t, err)
	assert.Len(t, store.records, 1)
}

func TestUpdateExpenseEnforcesOwnership(t *testing.T) {
	store := newFakeStore()
	svc := NewExpenseService(store, feed.NewHub(), nil)

	created, err := svc.CreateExpense(context.Background(), "alice", validExpense("coffee"))
	require.NoError(t, err)

	update := created
	update.Title = "tea"
	err = svc.UpdateExpense(context.Background(), "mallory", update)
	require.ErrorIs(t, err, core.ErrUnauthorized)

	require.NoError(t, svc.UpdateExpense(context.Background(), "alice", update))
	got, err := svc.GetExpense(context.Background(), "alice", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "tea", got.Title)
}

func TestDeleteExpenseEnforcesOwnership(t *testing.T) {
	store := newFakeStore()
	svc := NewExpenseService(store, feed.NewHub(), nil)

	created, err := svc.CreateExpense(context.Background(), "alice", validExpense("coffee"))
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteExpense(context.Background(), "mallory", created.ID), core.ErrUnauthorized)
	require.NoError(t, svc.DeleteExpense(context.Background(), "alice", created.ID))
	_, err = svc.GetExpense(context.Background(), "alice", created.ID)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestGetExpenseNotFound(t *testing.T) {
	svc := NewExpenseService(newFakeStore(), feed.NewHub(), nil)
	_, err := svc.GetExpense(context.Background(), "alice", "missing")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestRefreshFeedPublishesSnapshot(t *testing.T) {
	store := newFakeStore()
	hub := feed.NewHub()
	svc := NewExpenseService(store, hub, nil)

	_, err := svc.CreateExpense(context.Background(), "alice", validExpense("coffee"))
	require.NoError(t, err)

	sub := hub.Subscribe("alice")
	defer sub.Unsubscribe()

	require.NoError(t, svc.RefreshFeed(context.Background(), "alice"))
	snap := <-sub.C
	require.Len(t, snap, 1)
}

func TestListFilteredReturnsPageAndTotals(t *testing.T) {
	store := newFakeStore()
	svc := NewExpenseService(store, feed.NewHub(), nil)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		e := validExpense(fmt.Sprintf("usd-%d", i))
		_, err := svc.CreateExpense(ctx, "alice", e)
		require.NoError(t, err)
	}
	inr := validExpense("chai")
	inr.Currency = core.INR
	inr.Amount = "50"
	_, err := svc.CreateExpense(ctx, "alice", inr)
	require.NoError(t, err)

	page, err := svc.ListFiltered(ctx, "alice", Filter{Currency: core.USD}, 2)
	require.NoError(t, err)
	assert.Len(t, page.Records, 5)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 25, page.TotalRecords)
	assert.Equal(t, int64(250000), page.Totals[core.USD])
	assert.Equal(t, int64(0), page.Totals[core.INR])
}
