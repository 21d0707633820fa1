// Package ghproject implements board.Client against the GitHub Projects (v2)
// GraphQL API.
package ghproject

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/starford/storysync/internal/apperr"
	"github.com/starford/storysync/internal/board"
	"github.com/starford/storysync/internal/models"
)

// DefaultEndpoint is the public GitHub GraphQL endpoint.
const DefaultEndpoint = "https://api.github.com/graphql"

// DefaultStatusFieldName is the single-select field read when listing items.
const DefaultStatusFieldName = "Status"

// pageSize is the fixed number of project items fetched per listing.
const pageSize = 100

// StatusOptions maps canonical statuses to single-select option ids.
type StatusOptions struct {
	Todo       string
	InProgress string
	Done       string
}

// Config holds everything needed to talk to one project board.
type Config struct {
	Endpoint        string
	Token           string
	ProjectID       string
	StatusFieldID   string
	StatusFieldName string
	StatusOptions   StatusOptions
	Timeout         time.Duration
}

// Item is a project item with a resolvable story id.
type Item struct {
	ItemID  string
	StoryID string
	Title   string
	Status  string
}

// Client talks to the GitHub GraphQL API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// Verify *Client satisfies board.Client at compile time.
var _ board.Client = (*Client)(nil)

// New creates a client. A nil logger discards debug output.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.StatusFieldName == "" {
		cfg.StatusFieldName = DefaultStatusFieldName
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// ValidateAuth issues a trivial viewer query.
func (c *Client) ValidateAuth(ctx context.Context) error {
	data, err := c.graphql(ctx, viewerQuery, nil)
	if err != nil {
		return err
	}
	c.logger.Debug("ghproject: authenticated", slog.String("login", gjson.GetBytes(data, "data.viewer.login").String()))
	return nil
}

// ListProjectStories returns the story ids of the board items.
func (c *Client) ListProjectStories(ctx context.Context) ([]string, error) {
	items, err := c.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.StoryID
	}
	return ids, nil
}

// ListProjectStoryDetails returns id, display title and raw status per item.
func (c *Client) ListProjectStoryDetails(ctx context.Context) ([]models.Story, error) {
	items, err := c.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Story, len(items))
	for i, it := range items {
		out[i] = models.Story{ID: it.StoryID, Title: it.Title, Status: it.Status}
	}
	return out, nil
}

// UpsertStory adds a draft issue titled "[id] title" when no item exists for
// storyID, then sets the status field.
func (c *Client) UpsertStory(ctx context.Context, storyID, title, status string) error {
	optionID, err := c.statusOptionID(status)
	if err != nil {
		return err
	}
	items, err := c.ListItems(ctx)
	if err != nil {
		return err
	}

	itemID := ""
	if existing, ok := findItem(items, storyID); ok {
		itemID = existing.ItemID
	} else {
		itemID, err = c.addDraftIssue(ctx, board.FormatTitle(storyID, title))
		if err != nil {
			return err
		}
		c.logger.Debug("ghproject: draft issue added", slog.String("story_id", storyID), slog.String("item_id", itemID))
	}
	return c.updateStatus(ctx, itemID, optionID)
}

// ArchiveStory archives the item for storyID, if any.
func (c *Client) ArchiveStory(ctx context.Context, storyID string) error {
	items, err := c.ListItems(ctx)
	if err != nil {
		return err
	}
	existing, ok := findItem(items, storyID)
	if !ok {
		return nil
	}
	_, err = c.graphql(ctx, archiveItemMutation, map[string]any{
		"projectId": c.cfg.ProjectID,
		"itemId":    existing.ItemID,
	})
	return err
}

// ListItems fetches the first page of project items and keeps those whose
// title carries a story id prefix.
func (c *Client) ListItems(ctx context.Context) ([]Item, error) {
	data, err := c.graphql(ctx, listItemsQuery, map[string]any{
		"projectId":   c.cfg.ProjectID,
		"first":       pageSize,
		"statusField": c.cfg.StatusFieldName,
	})
	if err != nil {
		return nil, err
	}
	node := gjson.GetBytes(data, "data.node")
	if !node.Exists() || node.Type == gjson.Null {
		return nil, fmt.Errorf("%w: project %s not found", apperr.ErrRemoteAPI, c.cfg.ProjectID)
	}

	var items []Item
	for _, n := range node.Get("items.nodes").Array() {
		raw := n.Get("content.title").String()
		storyID, title, ok := board.ParseTitle(raw)
		if !ok {
			continue
		}
		items = append(items, Item{
			ItemID:  n.Get("id").String(),
			StoryID: storyID,
			Title:   title,
			Status:  n.Get("status.name").String(),
		})
	}
	return items, nil
}

func (c *Client) addDraftIssue(ctx context.Context, title string) (string, error) {
	data, err := c.graphql(ctx, addDraftIssueMutation, map[string]any{
		"projectId": c.cfg.ProjectID,
		"title":     title,
	})
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(data, "data.addProjectV2DraftIssue.projectItem.id").String()
	if id == "" {
		return "", fmt.Errorf("%w: addProjectV2DraftIssue returned no item id", apperr.ErrRemoteAPI)
	}
	return id, nil
}

func (c *Client) updateStatus(ctx context.Context, itemID, optionID string) error {
	_, err := c.graphql(ctx, updateStatusMutation, map[string]any{
		"projectId": c.cfg.ProjectID,
		"itemId":    itemID,
		"fieldId":   c.cfg.StatusFieldID,
		"optionId":  optionID,
	})
	return err
}

func (c *Client) statusOptionID(status string) (string, error) {
	var id string
	switch models.NormalizeStatus(status) {
	case models.StatusTodo:
		id = c.cfg.StatusOptions.Todo
	case models.StatusInProgress:
		id = c.cfg.StatusOptions.InProgress
	case models.StatusDone:
		id = c.cfg.StatusOptions.Done
	}
	if id == "" {
		return "", fmt.Errorf("%w: %q", apperr.ErrUnsupportedStatus, status)
	}
	return id, nil
}

// graphql posts one query and returns the raw response body. GraphQL-level
// errors are mapped onto the apperr taxonomy.
func (c *Client) graphql(ctx context.Context, query string, variables map[string]any) ([]byte, error) {
	if variables == nil {
		variables = map[string]any{}
	}
	payload, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return nil, fmt.Errorf("ghproject: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ghproject: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "storysync")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrRemoteAPI, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", apperr.ErrRemoteAPI, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %s", apperr.ErrAuthentication, responseMessage(body, resp.Status))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", apperr.ErrRemoteAPI, responseMessage(body, resp.Status))
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON response", apperr.ErrRemoteAPI)
	}

	if errs := gjson.GetBytes(body, "errors"); errs.Exists() && len(errs.Array()) > 0 {
		var msgs []string
		for _, e := range errs.Array() {
			msg := e.Get("message").String()
			if msg == "" {
				msg = "Unknown error"
			}
			msgs = append(msgs, msg)
		}
		joined := strings.Join(msgs, ", ")
		if strings.Contains(joined, "Bad credentials") {
			return nil, fmt.Errorf("%w: %s", apperr.ErrAuthentication, joined)
		}
		return nil, fmt.Errorf("%w: %s", apperr.ErrRemoteAPI, joined)
	}
	return body, nil
}

func responseMessage(body []byte, status string) string {
	if msg := gjson.GetBytes(body, "message").String(); msg != "" {
		return msg
	}
	return status
}

func findItem(items []Item, storyID string) (Item, bool) {
	for _, it := range items {
		if it.StoryID == storyID {
			return it, true
		}
	}
	return Item{}, false
}
