// Package models defines the domain types for storysync.
package models

import (
	"strings"
	"time"
	"unicode"
)

// Canonical story statuses.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// Story is the unit of synchronization between a local file and a board item.
type Story struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// StoryFile is a parsed local story with file metadata.
type StoryFile struct {
	Story
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoryMetadata is a lightweight representation returned by storage listings.
type StoryMetadata struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PushResult summarises a push run.
type PushResult struct {
	TotalStories    int `json:"total_stories"`
	UpdatedStories  int `json:"updated_stories"`
	ArchivedStories int `json:"archived_stories"`
}

// PullResult summarises a pull run.
type PullResult struct {
	TotalItems     int `json:"total_items"`
	WrittenStories int `json:"written_stories"`
}

// NormalizeStatus maps a free-form status onto the canonical set.
// Unknown values are passed through with whitespace replaced by underscores.
func NormalizeStatus(status string) string {
	normalized := strings.ToLower(strings.TrimSpace(status))
	switch normalized {
	case StatusTodo:
		return StatusTodo
	case "in progress", StatusInProgress, "in-progress":
		return StatusInProgress
	case StatusDone:
		return StatusDone
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, normalized)
}
