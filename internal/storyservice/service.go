// Package storyservice coordinates the synchronizers, the story directory,
// the run journal and live event fan-out. It is shared by the CLI, the HTTP
// API and the MCP server.
package storyservice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/starford/storysync/internal/apperr"
	"github.com/starford/storysync/internal/board"
	"github.com/starford/storysync/internal/checksum"
	"github.com/starford/storysync/internal/frontmatter"
	"github.com/starford/storysync/internal/journal"
	"github.com/starford/storysync/internal/models"
	"github.com/starford/storysync/internal/sse"
	"github.com/starford/storysync/internal/storage"
	"github.com/starford/storysync/internal/storysync"
)

// StoryDetail is the full representation of a local story.
type StoryDetail struct {
	models.StoryFile
	Content string `json:"content"`
}

// EventPublisher receives live events. *sse.Broker implements it.
type EventPublisher interface {
	Publish(event sse.Event)
	PublishStoryEvent(kind, storyID string)
}

// Option configures a Service.
type Option func(*Service)

// WithJournal records every run in db and exposes its history.
func WithJournal(db *journal.DB) Option {
	return func(s *Service) {
		if db != nil {
			s.recorder = db
			s.history = db
		}
	}
}

// WithPublisher forwards story and run events to p.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service runs synchronizations one at a time and serves read access to the
// story directory.
type Service struct {
	dir       string
	board     board.Client
	recorder  journal.Recorder
	history   journal.Reader
	publisher EventPublisher
	logger    *slog.Logger

	mu sync.Mutex // serializes Push and Pull
}

// NewService creates a new story service for dir and client.
func NewService(dir string, client board.Client, opts ...Option) *Service {
	s := &Service{
		dir:      dir,
		board:    client,
		recorder: journal.Nop{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the story directory.
func (s *Service) Dir() string {
	return s.dir
}

// Push runs the push synchronizer.
func (s *Service) Push(ctx context.Context) (models.PushResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runID := s.beginRun(journal.DirectionPush)
	res, err := storysync.New(s.dir, s.board, s.logger, s.eventHandler(runID)).Push(ctx)
	s.finishRun(runID, journal.DirectionPush, journal.Summary{
		Total:    res.TotalStories,
		Changed:  res.UpdatedStories,
		Archived: res.ArchivedStories,
	}, err)
	return res, err
}

// Pull runs the pull synchronizer.
func (s *Service) Pull(ctx context.Context) (models.PullResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runID := s.beginRun(journal.DirectionPull)
	res, err := storysync.New(s.dir, s.board, s.logger, s.eventHandler(runID)).Pull(ctx)
	s.finishRun(runID, journal.DirectionPull, journal.Summary{
		Total:   res.TotalItems,
		Changed: res.WrittenStories,
	}, err)
	return res, err
}

// ListStories parses every story in the directory. A missing directory
// yields an empty list.
func (s *Service) ListStories(_ context.Context) ([]models.StoryFile, error) {
	store, err := storage.NewFS(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.StoryFile{}, nil
		}
		return nil, err
	}
	metas, err := store.List()
	if err != nil {
		return nil, err
	}
	out := make([]models.StoryFile, 0, len(metas))
	for _, m := range metas {
		data, err := store.Read(filepath.Base(m.Path))
		if err != nil {
			return nil, err
		}
		st, err := frontmatter.ParseStory(m.Path, data)
		if err != nil {
			return nil, err
		}
		out = append(out, models.StoryFile{
			Story:     st,
			Path:      m.Path,
			Checksum:  m.Checksum,
			UpdatedAt: m.UpdatedAt,
		})
	}
	return out, nil
}

// GetStory reads and parses a single story by id.
func (s *Service) GetStory(_ context.Context, storyID string) (*StoryDetail, error) {
	if storyID == "" || strings.ContainsAny(storyID, `/\`) {
		return nil, apperr.ErrNotFound
	}
	store, err := storage.NewFS(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	name := storage.FileName(storyID)
	data, err := store.Read(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	st, err := frontmatter.ParseStory(name, data)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(store.Root(), name)
	updated := time.Now()
	if info, statErr := os.Stat(path); statErr == nil {
		updated = info.ModTime()
	}
	return &StoryDetail{
		StoryFile: models.StoryFile{
			Story:     st,
			Path:      path,
			Checksum:  checksum.Sum(data),
			UpdatedAt: updated,
		},
		Content: string(data),
	}, nil
}

// Runs returns recent journal runs, newest first. Without a journal the list is empty.
func (s *Service) Runs(_ context.Context, limit int) ([]journal.Run, error) {
	if s.history == nil {
		return []journal.Run{}, nil
	}
	runs, err := s.history.ListRuns(limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(runs), nil
}

// RunEvents returns the events of one run.
func (s *Service) RunEvents(_ context.Context, runID string) ([]journal.Event, error) {
	if s.history == nil {
		return nil, apperr.ErrNotFound
	}
	events, err := s.history.RunEvents(runID)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(events), nil
}

func (s *Service) beginRun(direction string) string {
	id, err := s.recorder.BeginRun(direction)
	if err != nil {
		s.logger.Warn("journal: begin run failed", slog.String("direction", direction), slog.String("error", err.Error()))
		return ""
	}
	return id
}

func (s *Service) finishRun(runID, direction string, summary journal.Summary, runErr error) {
	if runID != "" {
		if err := s.recorder.FinishRun(runID, summary, runErr); err != nil {
			s.logger.Warn("journal: finish run failed", slog.String("run_id", runID), slog.String("error", err.Error()))
		}
	}
	if s.publisher == nil {
		return
	}
	data := map[string]any{
		"run_id":    runID,
		"direction": direction,
		"total":     summary.Total,
		"changed":   summary.Changed,
		"archived":  summary.Archived,
	}
	kind := "sync.completed"
	if runErr != nil {
		kind = "sync.failed"
		data["error"] = runErr.Error()
	}
	s.publisher.Publish(sse.Event{Type: kind, Data: data})
}

func (s *Service) eventHandler(runID string) storysync.EventCallback {
	return func(kind, storyID string) {
		if runID != "" {
			if err := s.recorder.RecordEvent(runID, kind, storyID); err != nil {
				s.logger.Warn("journal: record event failed", slog.String("run_id", runID), slog.String("error", err.Error()))
			}
		}
		if s.publisher != nil {
			s.publisher.PublishStoryEvent(kind, storyID)
		}
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
