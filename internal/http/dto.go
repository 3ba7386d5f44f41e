package http

import (
	"time"

	"github.com/karansanghvi/spendly/internal/core"
	"github.com/karansanghvi/spendly/internal/sharing"
)

// Wire shapes. Amounts stay the raw decimal strings users typed;
// aggregated values are integer cents.

type userJSON struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email"`
}

type expenseJSON struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Category  string    `json:"category"`
	Date      string    `json:"date"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type expenseRequest struct {
	Title    string `json:"title"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Category string `json:"category"`
	Date     string `json:"date"`
	Notes    string `json:"notes"`
}

type expensePageJSON struct {
	Expenses     []expenseJSON       `json:"expenses"`
	Page         int                 `json:"page"`
	TotalPages   int                 `json:"total_pages"`
	TotalRecords int                 `json:"total_records"`
	Totals       []currencyCentsJSON `json:"totals"`
}

type currencyCentsJSON struct {
	Currency string `json:"currency"`
	Cents    int64  `json:"cents"`
}

type categoryCentsJSON struct {
	Category string `json:"category"`
	Cents    int64  `json:"cents"`
}

type trendPointJSON struct {
	Date  string `json:"date"`
	Cents int64  `json:"cents"`
}

type summaryJSON struct {
	Totals       []currencyCentsJSON `json:"totals"`
	Transactions int                 `json:"transactions"`
	Highest      string              `json:"highest_category"`
	Lowest       string              `json:"lowest_category"`
	ByCategory   []categoryCentsJSON `json:"by_category"`
	Trend        []trendPointJSON    `json:"trend"`
	ByCurrency   []currencyCentsJSON `json:"by_currency"`
	Top          []expenseJSON       `json:"top_expenses"`
}

type sharedViewJSON struct {
	OwnerID   string      `json:"owner_id"`
	OwnerName string      `json:"owner_name"`
	Summary   summaryJSON `json:"summary"`
}

type joinedDashboardJSON struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	OwnerName string    `json:"owner_name"`
	Token     string    `json:"token"`
	JoinedAt  time.Time `json:"joined_at"`
}

type viewerJSON struct {
	ID         string    `json:"id"`
	ViewerID   string    `json:"viewer_id"`
	ViewerName string    `json:"viewer_name"`
	JoinedAt   time.Time `json:"joined_at"`
}

func toUserJSON(u core.User) userJSON {
	return userJSON{ID: u.ID, FullName: u.FullName, Phone: u.Phone, Email: u.Email}
}

func toExpenseJSON(e core.ExpenseRecord) expenseJSON {
	return expenseJSON{
		ID:        e.ID,
		Title:     e.Title,
		Amount:    e.Amount,
		Currency:  string(e.Currency),
		Category:  e.Category,
		Date:      e.Date.String(),
		Notes:     e.Notes,
		CreatedAt: e.CreatedAt,
	}
}

func toExpenseListJSON(records []core.ExpenseRecord) []expenseJSON {
	out := make([]expenseJSON, len(records))
	for i, e := range records {
		out[i] = toExpenseJSON(e)
	}
	return out
}

func toSummaryJSON(s core.Summary) summaryJSON {
	out := summaryJSON{
		Transactions: s.Transactions,
		Highest:      s.Highest,
		Lowest:       s.Lowest,
		Top:          toExpenseListJSON(s.Top),
	}
	// Fixed enumeration order keeps the totals stable across renders.
	for _, cur := range core.Currencies {
		out.Totals = append(out.Totals, currencyCentsJSON{Currency: string(cur), Cents: s.Totals[cur]})
	}
	for _, ca := range s.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryCentsJSON{Category: ca.Category, Cents: ca.Cents})
	}
	for _, tp := range s.Trend {
		out.Trend = append(out.Trend, trendPointJSON{Date: tp.Date.String(), Cents: tp.Cents})
	}
	for _, cb := range s.ByCurrency {
		out.ByCurrency = append(out.ByCurrency, currencyCentsJSON{Currency: string(cb.Currency), Cents: cb.Cents})
	}
	return out
}

func toSharedViewJSON(v sharing.SharedView) sharedViewJSON {
	return sharedViewJSON{
		OwnerID:   v.OwnerID,
		OwnerName: v.OwnerName,
		Summary:   toSummaryJSON(v.Summary),
	}
}
