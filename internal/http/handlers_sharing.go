package http

import (
	"errors"
	"net/http"

	"github.com/karansanghvi/spendly/internal/auth"
	"github.com/karansanghvi/spendly/internal/core"
)

type shareLinkResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
	URL   string `json:"url"`
}

func (s *Server) handleCreateShareLink(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	link, url, err := s.registry.CreateShareLink(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, shareLinkResponse{ID: link.ID, Token: link.Token, URL: url})
}

type joinRequest struct {
	Link string `json:"link"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	join, err := s.registry.JoinViaLink(r.Context(), userID, req.Link)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, invalidLinkMessage)
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, joinedDashboardJSON{
		ID:       join.ID,
		OwnerID:  join.OwnerID,
		Token:    join.Token,
		JoinedAt: join.JoinedAt,
	})
}

func (s *Server) handleListJoined(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	joined, err := s.registry.ListJoined(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]joinedDashboardJSON, len(joined))
	for i, j := range joined {
		out[i] = joinedDashboardJSON{
			ID:        j.ID,
			OwnerID:   j.OwnerID,
			OwnerName: j.OwnerName,
			Token:     j.Token,
			JoinedAt:  j.JoinedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := s.registry.Leave(r.Context(), r.PathValue("id"), userID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListViewers(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	viewers, err := s.registry.ListAcceptedViewers(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]viewerJSON, len(viewers))
	for i, v := range viewers {
		out[i] = viewerJSON{
			ID:         v.ID,
			ViewerID:   v.UserID,
			ViewerName: v.ViewerName,
			JoinedAt:   v.JoinedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRevokeViewer(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := s.registry.RevokeViewer(r.Context(), r.PathValue("id"), userID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSharedDashboard serves a read-only aggregated view to whoever
// presents a valid token. No authentication: the token is the
// credential. Cached views may lag the owner's latest write by up to
// sharedViewTTL.
func (s *Server) handleSharedDashboard(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	if view, ok := s.sharedCache.Get(token); ok {
		writeJSON(w, http.StatusOK, toSharedViewJSON(view))
		return
	}

	view, err := s.registry.GetSharedView(r.Context(), token)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, invalidLinkMessage)
			return
		}
		writeServiceError(w, err)
		return
	}

	s.sharedCache.Set(token, view)
	writeJSON(w, http.StatusOK, toSharedViewJSON(view))
}
