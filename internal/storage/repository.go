// Package storage persists users, expenses, share links, and join records
// in SQLite. Each write is a single-document operation; the only
// cross-record invariant (one join per user per token) is backed by a
// unique constraint so concurrent duplicate joins cannot slip through.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/karansanghvi/spendly/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- users ---

// CreateUser inserts a new user. The id and creation timestamp are
// assigned here.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, full_name, phone, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.FullName, u.Phone, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, fmt.Errorf("create user: %w", core.ErrAlreadyExists)
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, full_name, phone, email, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row, "get user")
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, full_name, phone, email, password_hash, created_at FROM users WHERE email = ?`, email)
	return scanUser(row, "get user by email")
}

// UpdateUserProfile updates the mutable profile fields.
func (r *SQLiteRepository) UpdateUserProfile(ctx context.Context, id, fullName, phone, email string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET full_name = ?, phone = ?, email = ? WHERE id = ?`,
		fullName, phone, email, id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update user profile: %w", core.ErrAlreadyExists)
		}
		return fmt.Errorf("update user profile: %w", err)
	}
	return requireRow(res, "update user profile")
}

// DisplayName implements the user-profile lookup used by the sharing
// registry.
func (r *SQLiteRepository) DisplayName(ctx context.Context, userID string) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx, `SELECT full_name FROM users WHERE id = ?`, userID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("display name: %w", err)
	}
	return name, nil
}

func scanUser(row *sql.Row, op string) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.FullName, &u.Phone, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// --- expenses ---

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.ExpenseRecord) (core.ExpenseRecord, error) {
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, owner_id, title, amount, currency, category, date, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.Title, e.Amount, string(e.Currency), e.Category, e.Date.String(), e.Notes, e.CreatedAt)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("create expense: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.ExpenseRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, amount, currency, category, date, notes, created_at
		 FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseRecord{}, core.ErrNotFound
	}
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.ExpenseRecord) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET title = ?, amount = ?, currency = ?, category = ?, date = ?, notes = ?
		 WHERE id = ?`,
		e.Title, e.Amount, string(e.Currency), e.Category, e.Date.String(), e.Notes, e.ID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return requireRow(res, "update expense")
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return requireRow(res, "delete expense")
}

// ListExpenses returns the full expense collection of one owner, oldest
// insert first. Aggregation works on the whole set.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, ownerID string) ([]core.ExpenseRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, title, amount, currency, category, date, notes, created_at
		 FROM expenses WHERE owner_id = ? ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.ExpenseRecord
	for rows.Next() {
		e, err := scanExpense(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

func scanExpense(scan func(...any) error) (core.ExpenseRecord, error) {
	var (
		e        core.ExpenseRecord
		currency string
		date     string
	)
	if err := scan(&e.ID, &e.OwnerID, &e.Title, &e.Amount, &currency, &e.Category, &date, &e.Notes, &e.CreatedAt); err != nil {
		return core.ExpenseRecord{}, err
	}
	e.Currency = core.Currency(currency)
	d, err := core.ParseDate(date)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("stored date %q: %w", date, err)
	}
	e.Date = d
	return e, nil
}

// --- share links ---

func (r *SQLiteRepository) CreateShareLink(ctx context.Context, ownerID, token string) (core.ShareLink, error) {
	link := core.ShareLink{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Token:     token,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO share_links (id, owner_id, token, created_at) VALUES (?, ?, ?, ?)`,
		link.ID, link.OwnerID, link.Token, link.CreatedAt)
	if err != nil {
		return core.ShareLink{}, fmt.Errorf("create share link: %w", err)
	}
	return link, nil
}

func (r *SQLiteRepository) GetShareLinkByToken(ctx context.Context, token string) (core.ShareLink, error) {
	var link core.ShareLink
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, token, created_at FROM share_links WHERE token = ?`, token).
		Scan(&link.ID, &link.OwnerID, &link.Token, &link.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ShareLink{}, core.ErrNotFound
	}
	if err != nil {
		return core.ShareLink{}, fmt.Errorf("get share link: %w", err)
	}
	return link, nil
}

// --- join records ---

// CreateJoinRecord inserts a join. The UNIQUE(user_id, token) constraint
// turns a concurrent duplicate join into core.ErrAlreadyJoined instead of
// a second record.
func (r *SQLiteRepository) CreateJoinRecord(ctx context.Context, j core.JoinRecord) (core.JoinRecord, error) {
	j.ID = uuid.NewString()
	j.JoinedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO join_records (id, user_id, owner_id, token, joined_at) VALUES (?, ?, ?, ?, ?)`,
		j.ID, j.UserID, j.OwnerID, j.Token, j.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.JoinRecord{}, core.ErrAlreadyJoined
		}
		return core.JoinRecord{}, fmt.Errorf("create join record: %w", err)
	}
	return j, nil
}

func (r *SQLiteRepository) GetJoinRecord(ctx context.Context, id string) (core.JoinRecord, error) {
	var j core.JoinRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, owner_id, token, joined_at FROM join_records WHERE id = ?`, id).
		Scan(&j.ID, &j.UserID, &j.OwnerID, &j.Token, &j.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.JoinRecord{}, core.ErrNotFound
	}
	if err != nil {
		return core.JoinRecord{}, fmt.Errorf("get join record: %w", err)
	}
	return j, nil
}

// HasJoin reports whether the user already redeemed this exact token.
func (r *SQLiteRepository) HasJoin(ctx context.Context, userID, token string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM join_records WHERE user_id = ? AND token = ?`, userID, token).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check join: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) ListJoinsByUser(ctx context.Context, userID string) ([]core.JoinRecord, error) {
	return r.listJoins(ctx, `user_id`, userID)
}

func (r *SQLiteRepository) ListJoinsByOwner(ctx context.Context, ownerID string) ([]core.JoinRecord, error) {
	return r.listJoins(ctx, `owner_id`, ownerID)
}

func (r *SQLiteRepository) listJoins(ctx context.Context, column, id string) ([]core.JoinRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, owner_id, token, joined_at FROM join_records WHERE `+column+` = ? ORDER BY joined_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("list joins: %w", err)
	}
	defer rows.Close()

	var out []core.JoinRecord
	for rows.Next() {
		var j core.JoinRecord
		if err := rows.Scan(&j.ID, &j.UserID, &j.OwnerID, &j.Token, &j.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan join record: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list joins: %w", err)
	}
	return out, nil
}

// DeleteJoinRecord removes a join. Hard delete, no audit trail.
func (r *SQLiteRepository) DeleteJoinRecord(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM join_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete join record: %w", err)
	}
	return requireRow(res, "delete join record")
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
