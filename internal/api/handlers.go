package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/storysync/internal/apperr"
	"github.com/starford/storysync/internal/checksum"
	"github.com/starford/storysync/internal/storyservice"
)

const defaultRunLimit = 20

// Handler holds API route handlers.
type Handler struct {
	svc *storyservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *storyservice.Service) *Handler {
	return &Handler{svc: svc}
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(codeNotFound, "not found"))
	case errors.Is(err, apperr.ErrAuthentication):
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody(codeAuthentication, err.Error()))
	case errors.Is(err, apperr.ErrRemoteAPI):
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody(codeRemoteAPI, err.Error()))
	case errors.Is(err, apperr.ErrParse):
		slog.Warn(op+" rejected", slog.String("error", err.Error()))
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(codeParse, err.Error()))
	case errors.Is(err, apperr.ErrUnsupportedStatus):
		slog.Warn(op+" rejected", slog.String("error", err.Error()))
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(codeUnsupportedStatus, err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody(codeInternal, "internal error"))
	}
}

// ListStories handles GET /api/stories.
//
//	@Summary		List local stories
//	@Tags			stories
//	@Produce		json
//	@Success		200		{object}	StoryListResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stories [get]
func (h *Handler) ListStories(w http.ResponseWriter, r *http.Request) {
	stories, err := h.svc.ListStories(r.Context())
	if err != nil {
		writeError(w, "list stories", err)
		return
	}
	writeJSON(w, http.StatusOK, StoryListResponse{Stories: stories, Total: len(stories)})
}

// GetStory handles GET /api/stories/{id}.
//
//	@Summary		Get a single story by id
//	@Tags			stories
//	@Produce		json
//	@Param			id				path		string	true	"Story id (file name without .md)"
//	@Param			If-None-Match	header		string	false	"Checksum ETag from a previous response"
//	@Success		200				{object}	StoryDetail
//	@Success		304				"Story unchanged"
//	@Failure		404				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stories/{id} [get]
func (h *Handler) GetStory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	story, err := h.svc.GetStory(r.Context(), id)
	if err != nil {
		writeError(w, "get story", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(story.Checksum))
	if inm := r.Header.Get("If-None-Match"); inm != "" && checksum.MatchesETag(inm, story.Checksum) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, story)
}

// Push handles POST /api/sync/push.
//
//	@Summary		Push local stories to the project board
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	PushResponse
//	@Failure		422	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sync/push [post]
func (h *Handler) Push(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Push(r.Context())
	if err != nil {
		writeError(w, "push", err)
		return
	}
	writeJSON(w, http.StatusOK, PushResponse{
		Total:    res.TotalStories,
		Updated:  res.UpdatedStories,
		Archived: res.ArchivedStories,
	})
}

// Pull handles POST /api/sync/pull.
//
//	@Summary		Pull board items into local story files
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	PullResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sync/pull [post]
func (h *Handler) Pull(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Pull(r.Context())
	if err != nil {
		writeError(w, "pull", err)
		return
	}
	writeJSON(w, http.StatusOK, PullResponse{Total: res.TotalItems, Written: res.WrittenStories})
}

// ListRuns handles GET /api/runs.
//
//	@Summary		List recent synchronization runs
//	@Tags			runs
//	@Produce		json
//	@Param			limit	query		int	false	"Max runs"
//	@Success		200		{object}	RunListResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultRunLimit
	}
	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		writeError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

// RunEvents handles GET /api/runs/{id}/events.
//
//	@Summary		List the story events of one run
//	@Tags			runs
//	@Produce		json
//	@Param			id	path		string	true	"Run id"
//	@Success		200	{object}	RunEventsResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id}/events [get]
func (h *Handler) RunEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	events, err := h.svc.RunEvents(r.Context(), id)
	if err != nil {
		writeError(w, "run events", err)
		return
	}
	writeJSON(w, http.StatusOK, RunEventsResponse{RunID: id, Events: events})
}
