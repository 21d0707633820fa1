package storysync

import (
	"context"
	"log/slog"

	"github.com/starford/storysync/internal/frontmatter"
	"github.com/starford/storysync/internal/models"
	"github.com/starford/storysync/internal/storage"
)

// Pull writes one file per board story, creating the directory if needed.
// Frontmatter keys other than title and status, and the body, are carried
// over from an existing file.
func (s *Syncer) Pull(ctx context.Context) (models.PullResult, error) {
	if err := s.board.ValidateAuth(ctx); err != nil {
		return models.PullResult{}, err
	}

	store, err := storage.EnsureFS(s.dir)
	if err != nil {
		return models.PullResult{}, err
	}

	stories, err := s.board.ListProjectStoryDetails(ctx)
	if err != nil {
		return models.PullResult{}, err
	}

	written := 0
	for _, st := range stories {
		name := storage.FileName(st.ID)
		existing, err := storage.ReadIfExists(store, name)
		if err != nil {
			return models.PullResult{}, err
		}
		doc := frontmatter.Parse(string(existing))
		status := models.NormalizeStatus(st.Status)
		content := frontmatter.Render(st.Title, status, doc.Frontmatter, doc.Body)
		if err := store.Write(name, []byte(content)); err != nil {
			return models.PullResult{}, err
		}
		written++
		s.logger.Debug("pull: written", slog.String("story_id", st.ID), slog.String("status", status))
		s.emit(EventWritten, st.ID)
	}

	res := models.PullResult{TotalItems: len(stories), WrittenStories: written}
	s.logger.Info("pull: complete",
		slog.String("dir", store.Root()),
		slog.Int("total", res.TotalItems),
		slog.Int("written", res.WrittenStories))
	return res, nil
}
