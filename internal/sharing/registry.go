// Package sharing mediates delegated read access to one user's aggregated
// dashboard through opaque capability tokens: an owner mints a link, a
// viewer redeems it, and the viewer's dashboard view runs the aggregation
// engine against the owner's expense set.
package sharing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/karansanghvi/spendly/internal/cache"
	"github.com/karansanghvi/spendly/internal/core"
)

// UnknownUser is substituted when a profile lookup fails; a missing
// profile never fails a listing.
const UnknownUser = "Unknown User"

// SharedPathPrefix is the URL path under which shared dashboards are
// served; the token is the final path segment.
const SharedPathPrefix = "/shared-dashboard/"

// topExpenses is how many top-ranked expenses a shared view includes.
const topExpenses = 5

// Stores consumed by the registry. The SQLite repository satisfies all of
// them.
type (
	LinkStore interface {
		CreateShareLink(ctx context.Context, ownerID, token string) (core.ShareLink, error)
		GetShareLinkByToken(ctx context.Context, token string) (core.ShareLink, error)
	}

	JoinStore interface {
		CreateJoinRecord(ctx context.Context, j core.JoinRecord) (core.JoinRecord, error)
		GetJoinRecord(ctx context.Context, id string) (core.JoinRecord, error)
		HasJoin(ctx context.Context, userID, token string) (bool, error)
		ListJoinsByUser(ctx context.Context, userID string) ([]core.JoinRecord, error)
		ListJoinsByOwner(ctx context.Context, ownerID string) ([]core.JoinRecord, error)
		DeleteJoinRecord(ctx context.Context, id string) error
	}

	// ExpenseReader supplies an owner's full expense collection for the
	// shared (read-only) view.
	ExpenseReader interface {
		ListExpenses(ctx context.Context, ownerID string) ([]core.ExpenseRecord, error)
	}

	// ProfileReader maps a user id to a display name; returns
	// core.ErrNotFound for unknown users.
	ProfileReader interface {
		DisplayName(ctx context.Context, userID string) (string, error)
	}
)

type (
	// JoinedDashboard is a join record enriched with the owner's display
	// name, for the "dashboards I joined" listing.
	JoinedDashboard struct {
		core.JoinRecord
		OwnerName string
	}

	// AcceptedViewer is the symmetric enrichment for the owner's side.
	AcceptedViewer struct {
		core.JoinRecord
		ViewerName string
	}

	// SharedView is the read-only composition a redeemed token yields.
	SharedView struct {
		OwnerID   string
		OwnerName string
		Summary   core.Summary
	}
)

// Registry implements the sharing/collaboration operations.
type Registry struct {
	links    LinkStore
	joins    JoinStore
	expenses ExpenseReader
	profiles ProfileReader
	baseURL  string

	// Display names change rarely; cache lookups so enriching a listing
	// does not hit the profile store once per row.
	names *cache.LRU[string]
}

func NewRegistry(links LinkStore, joins JoinStore, expenses ExpenseReader, profiles ProfileReader, baseURL string) *Registry {
	return &Registry{
		links:    links,
		joins:    joins,
		expenses: expenses,
		profiles: profiles,
		baseURL:  strings.TrimRight(baseURL, "/"),
		names:    cache.NewLRU[string](256, 5*time.Minute),
	}
}

// CreateShareLink mints a fresh unguessable token for the owner and
// returns the shareable URL embedding it. Tokens never expire; an owner
// may hold any number of them.
func (r *Registry) CreateShareLink(ctx context.Context, ownerID string) (core.ShareLink, string, error) {
	if ownerID == "" {
		return core.ShareLink{}, "", core.ErrUnauthenticated
	}
	token := uuid.NewString()
	link, err := r.links.CreateShareLink(ctx, ownerID, token)
	if err != nil {
		return core.ShareLink{}, "", fmt.Errorf("create share link: %w", err)
	}
	slog.InfoContext(ctx, "Share link created", "owner_id", ownerID)
	return link, r.baseURL + SharedPathPrefix + token, nil
}

// ResolveToken looks up the owner behind a token. core.ErrNotFound means
// the link is invalid or was deleted; callers render "invalid or expired
// link" for that case.
func (r *Registry) ResolveToken(ctx context.Context, token string) (string, error) {
	link, err := r.links.GetShareLinkByToken(ctx, token)
	if err != nil {
		return "", err
	}
	return link.OwnerID, nil
}

// ExtractToken accepts either a bare token or a full shared-dashboard URL
// and returns the token (the final path segment).
func ExtractToken(linkOrToken string) string {
	s := strings.TrimSpace(linkOrToken)
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// JoinViaLink redeems a share link for userID. Joining the same token
// twice is rejected with core.ErrAlreadyJoined and creates no second
// record; the check is backed by a unique constraint in the store, so the
// classic read-then-write race cannot produce duplicates either.
func (r *Registry) JoinViaLink(ctx context.Context, userID, linkOrToken string) (core.JoinRecord, error) {
	if userID == "" {
		return core.JoinRecord{}, core.ErrUnauthenticated
	}
	token := ExtractToken(linkOrToken)
	if token == "" {
		return core.JoinRecord{}, core.ErrNotFound
	}

	ownerID, err := r.ResolveToken(ctx, token)
	if err != nil {
		return core.JoinRecord{}, err
	}

	joined, err := r.joins.HasJoin(ctx, userID, token)
	if err != nil {
		return core.JoinRecord{}, fmt.Errorf("check existing join: %w", err)
	}
	if joined {
		return core.JoinRecord{}, core.ErrAlreadyJoined
	}

	join, err := r.joins.CreateJoinRecord(ctx, core.JoinRecord{
		UserID:  userID,
		OwnerID: ownerID,
		Token:   token,
	})
	if err != nil {
		if errors.Is(err, core.ErrAlreadyJoined) {
			return core.JoinRecord{}, core.ErrAlreadyJoined
		}
		return core.JoinRecord{}, fmt.Errorf("create join record: %w", err)
	}

	slog.InfoContext(ctx, "Dashboard joined", "user_id", userID, "owner_id", ownerID)
	return join, nil
}

// ListJoined returns every dashboard userID has joined, each enriched
// with the owner's display name.
func (r *Registry) ListJoined(ctx context.Context, userID string) ([]JoinedDashboard, error) {
	if userID == "" {
		return nil, core.ErrUnauthenticated
	}
	joins, err := r.joins.ListJoinsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list joined dashboards: %w", err)
	}
	out := make([]JoinedDashboard, len(joins))
	for i, j := range joins {
		out[i] = JoinedDashboard{JoinRecord: j, OwnerName: r.displayName(ctx, j.OwnerID)}
	}
	return out, nil
}

// ListAcceptedViewers returns every user who has joined ownerID's
// dashboard, each enriched with the viewer's display name.
func (r *Registry) ListAcceptedViewers(ctx context.Context, ownerID string) ([]AcceptedViewer, error) {
	if ownerID == "" {
		return nil, core.ErrUnauthenticated
	}
	joins, err := r.joins.ListJoinsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list accepted viewers: %w", err)
	}
	out := make([]AcceptedViewer, len(joins))
	for i, j := range joins {
		out[i] = AcceptedViewer{JoinRecord: j, ViewerName: r.displayName(ctx, j.UserID)}
	}
	return out, nil
}

// Leave deletes a join record on behalf of the viewer. Only the viewer
// named on the record may remove it.
func (r *Registry) Leave(ctx context.Context, joinID, requestingUserID string) error {
	join, err := r.joins.GetJoinRecord(ctx, joinID)
	if err != nil {
		return err
	}
	if join.UserID != requestingUserID {
		return core.ErrUnauthorized
	}
	if err := r.joins.DeleteJoinRecord(ctx, joinID); err != nil {
		return fmt.Errorf("leave dashboard: %w", err)
	}
	slog.InfoContext(ctx, "Dashboard left", "user_id", requestingUserID, "owner_id", join.OwnerID)
	return nil
}

// RevokeViewer deletes a join record on behalf of the owner. Only the
// owner named on the record may remove it.
func (r *Registry) RevokeViewer(ctx context.Context, joinID, requestingOwnerID string) error {
	join, err := r.joins.GetJoinRecord(ctx, joinID)
	if err != nil {
		return err
	}
	if join.OwnerID != requestingOwnerID {
		return core.ErrUnauthorized
	}
	if err := r.joins.DeleteJoinRecord(ctx, joinID); err != nil {
		return fmt.Errorf("revoke viewer: %w", err)
	}
	slog.InfoContext(ctx, "Viewer revoked", "owner_id", requestingOwnerID, "viewer_id", join.UserID)
	return nil
}

// GetSharedView resolves a token to its owner and aggregates the owner's
// current expense set. The viewer never gains write access; the result is
// derived values only.
func (r *Registry) GetSharedView(ctx context.Context, token string) (SharedView, error) {
	ownerID, err := r.ResolveToken(ctx, ExtractToken(token))
	if err != nil {
		return SharedView{}, err
	}
	records, err := r.expenses.ListExpenses(ctx, ownerID)
	if err != nil {
		return SharedView{}, fmt.Errorf("load owner expenses: %w", err)
	}
	return SharedView{
		OwnerID:   ownerID,
		OwnerName: r.displayName(ctx, ownerID),
		Summary:   core.BuildSummary(records, topExpenses),
	}, nil
}

// displayName resolves a user's display name with a short-lived cache.
// Any lookup failure degrades to UnknownUser.
func (r *Registry) displayName(ctx context.Context, userID string) string {
	if name, ok := r.names.Get(userID); ok {
		return name
	}
	name, err := r.profiles.DisplayName(ctx, userID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			slog.WarnContext(ctx, "Profile lookup failed", "user_id", userID, "error", err)
		}
		return UnknownUser
	}
	r.names.Set(userID, name)
	return name
}
