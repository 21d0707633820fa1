// Package frontmatter parses and renders the story markdown format: a block of
// key: value lines between two "---" delimiters followed by a free-form body.
//
// The codec is line based on purpose. Keys it does not own are carried through
// byte for byte, in their original order.
package frontmatter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/starford/storysync/internal/apperr"
	"github.com/starford/storysync/internal/models"
)

const delim = "---"

// Document is a story file split into frontmatter and body lines.
type Document struct {
	// Frontmatter holds the lines strictly between the delimiters.
	Frontmatter []string
	// HasFrontmatter is false when the content had no complete frontmatter block.
	HasFrontmatter bool
	// Body holds every line after the closing delimiter, or the whole
	// content when there is no frontmatter.
	Body []string
}

// Parse splits content into frontmatter and body. A missing or unterminated
// frontmatter block is not an error: the whole content becomes the body.
func Parse(content string) Document {
	lines := splitLines(content)
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delim {
		return Document{Body: lines}
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delim {
			return Document{
				Frontmatter:    lines[1:i],
				HasFrontmatter: true,
				Body:           lines[i+1:],
			}
		}
	}
	return Document{Body: lines}
}

// Value returns the value of the first line whose trimmed form starts with
// "key:". Surrounding whitespace and one layer of matching quotes are removed.
func Value(lines []string, key string) (string, bool) {
	prefix := key + ":"
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, prefix) {
			continue
		}
		return unquote(strings.TrimSpace(trimmed[len(prefix):])), true
	}
	return "", false
}

// Render produces a story document with fresh title and status lines.
// Existing title/status lines are dropped from frontmatter, all other lines are
// kept in order. An empty body is replaced by a level-1 heading of the title.
func Render(title, status string, frontmatter, body []string) string {
	out := make([]string, 0, len(frontmatter)+len(body)+6)
	out = append(out, delim,
		`title: "`+title+`"`,
		`status: "`+status+`"`,
	)
	for _, line := range frontmatter {
		if ownedKey(line) {
			continue
		}
		out = append(out, line)
	}
	out = append(out, delim, "")

	body = trimLeadingBlank(body)
	if len(body) == 0 {
		body = []string{"# " + title, ""}
	}
	out = append(out, body...)

	return strings.TrimRight(strings.Join(out, "\n"), " \t\r\n") + "\n"
}

// ParseStory parses a story file. The story id is the file name stem; title
// and status must both be present in the frontmatter.
func ParseStory(path string, content []byte) (models.Story, error) {
	name := filepath.Base(path)
	doc := Parse(string(content))
	title, okTitle := Value(doc.Frontmatter, "title")
	status, okStatus := Value(doc.Frontmatter, "status")
	if !okTitle || !okStatus {
		return models.Story{}, fmt.Errorf("%w: missing frontmatter fields in %s", apperr.ErrParse, name)
	}
	return models.Story{
		ID:     strings.TrimSuffix(name, filepath.Ext(name)),
		Title:  title,
		Status: status,
	}, nil
}

func ownedKey(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	return strings.HasPrefix(lower, "title:") || strings.HasPrefix(lower, "status:")
}

func unquote(v string) string {
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if first == last && (first == '"' || first == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

func trimLeadingBlank(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	return lines
}

// splitLines splits on \n, drops a trailing \r per line and does not yield a
// final empty line for a trailing newline.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.TrimSuffix(content, "\n")
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
