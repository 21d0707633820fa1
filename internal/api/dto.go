package api

import (
	"github.com/starford/storysync/internal/journal"
	"github.com/starford/storysync/internal/models"
	"github.com/starford/storysync/internal/storyservice"
)

// StoryDetail is the full story response type (aliased from the domain layer).
type StoryDetail = storyservice.StoryDetail

// StoryListResponse wraps the local story listing.
type StoryListResponse struct {
	Stories []models.StoryFile `json:"stories" validate:"required"`
	Total   int                `json:"total" example:"12" validate:"required"`
}

// PushResponse is returned by POST /sync/push.
type PushResponse struct {
	Total    int `json:"total" example:"12" validate:"required"`
	Updated  int `json:"updated" example:"12" validate:"required"`
	Archived int `json:"archived" example:"1" validate:"required"`
}

// PullResponse is returned by POST /sync/pull.
type PullResponse struct {
	Total   int `json:"total" example:"12" validate:"required"`
	Written int `json:"written" example:"11" validate:"required"`
}

// RunListResponse wraps journal runs, newest first.
type RunListResponse struct {
	Runs []journal.Run `json:"runs" validate:"required"`
}

// RunEventsResponse wraps the events of a single run.
type RunEventsResponse struct {
	RunID  string          `json:"run_id" validate:"required"`
	Events []journal.Event `json:"events" validate:"required"`
}
