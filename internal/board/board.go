// Package board defines the project board contract the synchronizers depend on.
package board

import (
	"context"
	"strings"

	"github.com/starford/storysync/internal/models"
)

// Client abstracts the remote project board. Consumers should depend on this
// interface rather than a concrete client so they can be tested against fakes.
type Client interface {
	// ValidateAuth fails with apperr.ErrAuthentication when credentials are rejected.
	ValidateAuth(ctx context.Context) error
	// ListProjectStories returns the story ids of every board item with a resolvable id.
	ListProjectStories(ctx context.Context) ([]string, error)
	// ListProjectStoryDetails returns id, title and raw status of every resolvable item.
	ListProjectStoryDetails(ctx context.Context) ([]models.Story, error)
	// UpsertStory creates the item for storyID or updates its status.
	UpsertStory(ctx context.Context, storyID, title, status string) error
	// ArchiveStory archives the item for storyID. Unknown ids are a no-op.
	ArchiveStory(ctx context.Context, storyID string) error
}

// ParseTitle extracts the story id and display title from a board item title
// of the form "[story-1] Title Text". ok is false when the title has no
// bracketed prefix or the prefix is empty.
func ParseTitle(raw string) (storyID, title string, ok bool) {
	if !strings.HasPrefix(raw, "[") {
		return "", "", false
	}
	end := strings.Index(raw, "]")
	if end < 0 {
		return "", "", false
	}
	storyID = raw[1:end]
	if storyID == "" {
		return "", "", false
	}
	return storyID, strings.TrimSpace(raw[end+1:]), true
}

// FormatTitle is the inverse of ParseTitle.
func FormatTitle(storyID, title string) string {
	return "[" + storyID + "] " + title
}
