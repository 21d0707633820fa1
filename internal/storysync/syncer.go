// Package storysync reconciles a directory of story files with a project board.
//
// Push mirrors local files onto the board (upsert every story, archive board
// stories that have no file). Pull mirrors the board into the directory. Both
// run sequentially and stop at the first error; mutations already applied
// remotely are not rolled back.
package storysync

import (
	"io"
	"log/slog"

	"github.com/starford/storysync/internal/board"
)

// Event kinds reported to an EventCallback.
const (
	EventUpserted = "upserted"
	EventArchived = "archived"
	EventWritten  = "written"
)

// EventCallback is called after each successful mutation.
type EventCallback func(kind, storyID string)

// Syncer runs push and pull against one story directory and one board.
type Syncer struct {
	dir     string
	board   board.Client
	logger  *slog.Logger
	onEvent EventCallback
}

// New creates a Syncer. logger and cb may be nil.
func New(dir string, client board.Client, logger *slog.Logger, cb EventCallback) *Syncer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Syncer{dir: dir, board: client, logger: logger, onEvent: cb}
}

func (s *Syncer) emit(kind, storyID string) {
	if s.onEvent != nil {
		s.onEvent(kind, storyID)
	}
}
