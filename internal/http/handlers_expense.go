package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/karansanghvi/spendly/internal/auth"
	"github.com/karansanghvi/spendly/internal/core"
	applog "github.com/karansanghvi/spendly/internal/log"
	"github.com/karansanghvi/spendly/internal/services"
)

func expenseFromRequest(req expenseRequest) (core.ExpenseRecord, error) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	return core.ExpenseRecord{
		Title:    sanitizeInput(req.Title),
		Amount:   strings.TrimSpace(req.Amount),
		Currency: core.Currency(strings.TrimSpace(req.Currency)),
		Category: sanitizeInput(req.Category),
		Date:     date,
		Notes:    sanitizeInput(req.Notes),
	}, nil
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	expense, err := expenseFromRequest(req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	created, err := s.expenses.CreateExpense(r.Context(), userID, expense)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	fields := applog.NewFields().
		WithExpense(created.Title, core.AmountCents(created.Amount), string(created.Currency), created.Category).
		WithOwner(userID).
		WithOperation(applog.OpCreate)
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Expense created", fields.ToSlice()...)

	writeJSON(w, http.StatusCreated, toExpenseJSON(created))
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	expense, err := s.expenses.GetExpense(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseJSON(expense))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	expense, err := expenseFromRequest(req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	expense.ID = r.PathValue("id")

	if err := s.expenses.UpdateExpense(r.Context(), userID, expense); err != nil {
		writeServiceError(w, err)
		return
	}

	updated, err := s.expenses.GetExpense(r.Context(), userID, expense.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseJSON(updated))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := s.expenses.DeleteExpense(r.Context(), userID, r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListExpenses serves the paginated, filterable expense listing.
// Query parameters: currency, category, days (trailing window), date
// (exact day, wins over days), page.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.expenses.ListFiltered(r.Context(), userID, filter, parsePage(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := expensePageJSON{
		Expenses:     toExpenseListJSON(page.Records),
		Page:         page.Page,
		TotalPages:   page.TotalPages,
		TotalRecords: page.TotalRecords,
	}
	for _, cur := range core.Currencies {
		resp.Totals = append(resp.Totals, currencyCentsJSON{Currency: string(cur), Cents: page.Totals[cur]})
	}
	writeJSON(w, http.StatusOK, resp)
}

func filterFromQuery(r *http.Request) (services.Filter, error) {
	q := r.URL.Query()
	f := services.Filter{
		Currency: core.Currency(strings.TrimSpace(q.Get("currency"))),
		Category: strings.TrimSpace(q.Get("category")),
	}

	if v := strings.TrimSpace(q.Get("days")); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 1 {
			return services.Filter{}, &queryError{"invalid days parameter"}
		}
		f.WithinDays = days
	}
	if v := strings.TrimSpace(q.Get("date")); v != "" {
		date, err := core.ParseDate(v)
		if err != nil {
			return services.Filter{}, &queryError{"invalid date parameter, want YYYY-MM-DD"}
		}
		f.Date = date
	}
	return f, nil
}

type queryError struct{ msg string }

func (e *queryError) Error() string { return e.msg }
