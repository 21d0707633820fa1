// Package testutil provides shared test helpers: an in-memory board and story
// directory setup.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/starford/storysync/internal/apperr"
	"github.com/starford/storysync/internal/board"
	"github.com/starford/storysync/internal/frontmatter"
	"github.com/starford/storysync/internal/models"
	"github.com/starford/storysync/internal/storage"
)

// FakeBoard is an in-memory board.Client that records every call.
type FakeBoard struct {
	mu sync.Mutex

	// InvalidToken makes ValidateAuth fail with apperr.ErrAuthentication.
	InvalidToken bool
	// FailUpsert, when non-nil, is returned by UpsertStory.
	FailUpsert error

	items map[string]models.Story

	Calls    []string
	Upserted []models.Story
	Archived []string
}

var _ board.Client = (*FakeBoard)(nil)

// NewFakeBoard returns a board that already holds the given stories.
func NewFakeBoard(existing ...models.Story) *FakeBoard {
	b := &FakeBoard{items: make(map[string]models.Story)}
	for _, s := range existing {
		b.items[s.ID] = s
	}
	return b
}

func (b *FakeBoard) ValidateAuth(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = append(b.Calls, "validate")
	if b.InvalidToken {
		return apperr.ErrAuthentication
	}
	return nil
}

func (b *FakeBoard) ListProjectStories(_ context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = append(b.Calls, "list")
	ids := make([]string, 0, len(b.items))
	for id := range b.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (b *FakeBoard) ListProjectStoryDetails(_ context.Context) ([]models.Story, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = append(b.Calls, "details")
	out := make([]models.Story, 0, len(b.items))
	for _, s := range b.items {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *FakeBoard) UpsertStory(_ context.Context, storyID, title, status string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = append(b.Calls, "upsert:"+storyID)
	if b.FailUpsert != nil {
		return b.FailUpsert
	}
	s := models.Story{ID: storyID, Title: title, Status: status}
	b.items[storyID] = s
	b.Upserted = append(b.Upserted, s)
	return nil
}

func (b *FakeBoard) ArchiveStory(_ context.Context, storyID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = append(b.Calls, "archive:"+storyID)
	delete(b.items, storyID)
	b.Archived = append(b.Archived, storyID)
	return nil
}

// Items returns the stories currently on the board, sorted by id.
func (b *FakeBoard) Items() []models.Story {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Story, 0, len(b.items))
	for _, s := range b.items {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StoryDir creates a temporary story directory with a storage.Provider.
func StoryDir(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteStory writes a story file in the canonical format.
func WriteStory(t *testing.T, dir, id, title, status string) {
	t.Helper()
	content := frontmatter.Render(title, status, nil, nil)
	if err := os.WriteFile(filepath.Join(dir, storage.FileName(id)), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// WriteFile writes raw content into dir under name.
func WriteFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
