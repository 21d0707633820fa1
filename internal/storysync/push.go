package storysync

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/starford/storysync/internal/frontmatter"
	"github.com/starford/storysync/internal/models"
	"github.com/starford/storysync/internal/storage"
)

// Push uploads every local story and archives board stories without a file:
//   - credentials are validated before anything else is touched
//   - all files are parsed before the first remote mutation
//   - stale board stories are archived in sorted id order
func (s *Syncer) Push(ctx context.Context) (models.PushResult, error) {
	if err := s.board.ValidateAuth(ctx); err != nil {
		return models.PushResult{}, err
	}

	store, err := storage.NewFS(s.dir)
	if err != nil {
		return models.PushResult{}, err
	}
	stories, err := readStories(store)
	if err != nil {
		return models.PushResult{}, err
	}

	remoteIDs, err := s.board.ListProjectStories(ctx)
	if err != nil {
		return models.PushResult{}, err
	}

	pushed := make(map[string]struct{}, len(stories))
	for _, st := range stories {
		if err := s.board.UpsertStory(ctx, st.ID, st.Title, st.Status); err != nil {
			return models.PushResult{}, err
		}
		pushed[st.ID] = struct{}{}
		s.logger.Debug("push: upserted", slog.String("story_id", st.ID), slog.String("status", st.Status))
		s.emit(EventUpserted, st.ID)
	}

	stale := staleIDs(remoteIDs, pushed)
	for _, id := range stale {
		if err := s.board.ArchiveStory(ctx, id); err != nil {
			return models.PushResult{}, err
		}
		s.logger.Debug("push: archived", slog.String("story_id", id))
		s.emit(EventArchived, id)
	}

	res := models.PushResult{
		TotalStories:    len(stories),
		UpdatedStories:  len(stories),
		ArchivedStories: len(stale),
	}
	s.logger.Info("push: complete",
		slog.String("dir", store.Root()),
		slog.Int("total", res.TotalStories),
		slog.Int("updated", res.UpdatedStories),
		slog.Int("archived", res.ArchivedStories))
	return res, nil
}

// readStories parses every story file in listing order. The first file
// missing a required field aborts the whole read.
func readStories(store storage.Provider) ([]models.Story, error) {
	metas, err := store.List()
	if err != nil {
		return nil, err
	}
	out := make([]models.Story, 0, len(metas))
	for _, m := range metas {
		data, err := store.Read(filepath.Base(m.Path))
		if err != nil {
			return nil, err
		}
		st, err := frontmatter.ParseStory(m.Path, data)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// staleIDs returns the sorted, de-duplicated ids in remote that were not pushed.
func staleIDs(remote []string, pushed map[string]struct{}) []string {
	seen := make(map[string]struct{}, len(remote))
	var out []string
	for _, id := range remote {
		if _, ok := pushed[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
