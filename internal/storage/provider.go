// Package storage defines the story directory abstraction.
package storage

import "github.com/starford/storysync/internal/models"

// Ext is the file extension of story files.
const Ext = ".md"

// Provider is the interface for story file operations. Names are file names
// relative to the story directory; the directory is flat.
type Provider interface {
	// Root returns the absolute story directory.
	Root() string
	// List returns metadata for every regular .md file directly inside the
	// directory, sorted by path.
	List() ([]models.StoryMetadata, error)
	// Read returns the raw bytes of the named file.
	Read(name string) ([]byte, error)
	// Write atomically writes content to the named file.
	Write(name string, content []byte) error
	// Delete removes the named file.
	Delete(name string) error
}

// FileName returns the file name for a story id.
func FileName(storyID string) string {
	return storyID + Ext
}
