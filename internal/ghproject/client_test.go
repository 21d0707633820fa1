package ghproject

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/starford/storysync/internal/apperr"
)

type fakeItem struct {
	id, title, status string
	archived          bool
}

// fakeGraphQL is a minimal in-process stand-in for the GitHub GraphQL API.
type fakeGraphQL struct {
	mu        sync.Mutex
	token     string
	items     []*fakeItem
	nextID    int
	mutations []string
	lastVars  map[string]any
	failWith  string
}

func (f *fakeGraphQL) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+f.token {
		writeGraphQL(w, map[string]any{"errors": []map[string]string{{"message": "Bad credentials"}}})
		return
	}
	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.lastVars = req.Variables
	if f.failWith != "" {
		writeGraphQL(w, map[string]any{"errors": []map[string]string{{"message": f.failWith}}})
		return
	}

	switch {
	case strings.Contains(req.Query, "viewer"):
		writeGraphQL(w, map[string]any{"data": map[string]any{"viewer": map[string]string{"login": "octocat"}}})
	case strings.Contains(req.Query, "addProjectV2DraftIssue"):
		f.nextID++
		it := &fakeItem{id: fmt.Sprintf("item-%d", f.nextID), title: req.Variables["title"].(string)}
		f.items = append(f.items, it)
		f.mutations = append(f.mutations, "add:"+it.title)
		writeGraphQL(w, map[string]any{"data": map[string]any{
			"addProjectV2DraftIssue": map[string]any{"projectItem": map[string]string{"id": it.id}},
		}})
	case strings.Contains(req.Query, "updateProjectV2ItemFieldValue"):
		itemID := req.Variables["itemId"].(string)
		f.mutations = append(f.mutations, "status:"+itemID+"="+req.Variables["optionId"].(string))
		writeGraphQL(w, map[string]any{"data": map[string]any{}})
	case strings.Contains(req.Query, "archiveProjectV2Item"):
		itemID := req.Variables["itemId"].(string)
		for _, it := range f.items {
			if it.id == itemID {
				it.archived = true
			}
		}
		f.mutations = append(f.mutations, "archive:"+itemID)
		writeGraphQL(w, map[string]any{"data": map[string]any{}})
	default:
		var nodes []map[string]any
		for _, it := range f.items {
			if it.archived {
				continue
			}
			node := map[string]any{"id": it.id, "content": map[string]string{"title": it.title}}
			if it.status != "" {
				node["status"] = map[string]string{"name": it.status}
			} else {
				node["status"] = nil
			}
			nodes = append(nodes, node)
		}
		writeGraphQL(w, map[string]any{"data": map[string]any{
			"node": map[string]any{"items": map[string]any{"nodes": nodes}},
		}})
	}
}

func writeGraphQL(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testClient(t *testing.T, fake *fakeGraphQL, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return New(Config{
		Endpoint:      srv.URL,
		Token:         token,
		ProjectID:     "PVT_1",
		StatusFieldID: "FIELD_1",
		StatusOptions: StatusOptions{Todo: "opt-todo", InProgress: "opt-progress", Done: "opt-done"},
	}, nil)
}

func TestValidateAuth(t *testing.T) {
	fake := &fakeGraphQL{token: "good"}
	if err := testClient(t, fake, "good").ValidateAuth(context.Background()); err != nil {
		t.Fatalf("ValidateAuth: %v", err)
	}
	err := testClient(t, fake, "bad").ValidateAuth(context.Background())
	if !errors.Is(err, apperr.ErrAuthentication) {
		t.Fatalf("err = %v, want ErrAuthentication", err)
	}
}

func TestUnauthorizedStatusIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, Token: "x"}, nil)
	err := c.ValidateAuth(context.Background())
	if !errors.Is(err, apperr.ErrAuthentication) {
		t.Fatalf("err = %v, want ErrAuthentication", err)
	}
	if !strings.Contains(err.Error(), "Bad credentials") {
		t.Errorf("message lost: %v", err)
	}
}

func TestServerErrorIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(Config{Endpoint: srv.URL}, nil).ValidateAuth(context.Background())
	if !errors.Is(err, apperr.ErrRemoteAPI) {
		t.Fatalf("err = %v, want ErrRemoteAPI", err)
	}
}

func TestGraphQLErrorIsRemoteError(t *testing.T) {
	fake := &fakeGraphQL{token: "t", failWith: "Could not resolve to a node"}
	_, err := testClient(t, fake, "t").ListItems(context.Background())
	if !errors.Is(err, apperr.ErrRemoteAPI) {
		t.Fatalf("err = %v, want ErrRemoteAPI", err)
	}
}

func TestListItems_SkipsUnresolvableTitles(t *testing.T) {
	fake := &fakeGraphQL{token: "t", items: []*fakeItem{
		{id: "i1", title: "[story-1] One", status: "Todo"},
		{id: "i2", title: "Untracked idea"},
		{id: "i3", title: "[story-9] Example", status: "In Progress"},
	}}
	c := testClient(t, fake, "t")

	details, err := c.ListProjectStoryDetails(context.Background())
	if err != nil {
		t.Fatalf("ListProjectStoryDetails: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("len = %d, want 2", len(details))
	}
	if details[1].ID != "story-9" || details[1].Title != "Example" || details[1].Status != "In Progress" {
		t.Errorf("details[1] = %+v", details[1])
	}
	if fake.lastVars["first"].(float64) != pageSize {
		t.Errorf("page size = %v", fake.lastVars["first"])
	}

	ids, err := c.ListProjectStories(context.Background())
	if err != nil {
		t.Fatalf("ListProjectStories: %v", err)
	}
	if strings.Join(ids, ",") != "story-1,story-9" {
		t.Errorf("ids = %v", ids)
	}
}

func TestUpsertStory_CreatesThenUpdates(t *testing.T) {
	fake := &fakeGraphQL{token: "t"}
	c := testClient(t, fake, "t")
	ctx := context.Background()

	if err := c.UpsertStory(ctx, "story-1", "Story One", "todo"); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := c.UpsertStory(ctx, "story-1", "Story One", "in-progress"); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	want := []string{
		"add:[story-1] Story One",
		"status:item-1=opt-todo",
		"status:item-1=opt-progress",
	}
	if strings.Join(fake.mutations, "|") != strings.Join(want, "|") {
		t.Errorf("mutations = %v, want %v", fake.mutations, want)
	}
}

func TestUpsertStory_UnsupportedStatus(t *testing.T) {
	fake := &fakeGraphQL{token: "t"}
	err := testClient(t, fake, "t").UpsertStory(context.Background(), "story-1", "One", "blocked")
	if !errors.Is(err, apperr.ErrUnsupportedStatus) {
		t.Fatalf("err = %v, want ErrUnsupportedStatus", err)
	}
	if len(fake.mutations) != 0 {
		t.Errorf("no mutation expected, got %v", fake.mutations)
	}
}

func TestArchiveStory(t *testing.T) {
	fake := &fakeGraphQL{token: "t", items: []*fakeItem{{id: "i1", title: "[story-1] One"}}}
	c := testClient(t, fake, "t")
	ctx := context.Background()

	if err := c.ArchiveStory(ctx, "story-1"); err != nil {
		t.Fatalf("ArchiveStory: %v", err)
	}
	if err := c.ArchiveStory(ctx, "story-1"); err != nil {
		t.Fatalf("second ArchiveStory should be a no-op: %v", err)
	}
	if err := c.ArchiveStory(ctx, "missing"); err != nil {
		t.Fatalf("unknown id should be a no-op: %v", err)
	}
	if len(fake.mutations) != 1 || fake.mutations[0] != "archive:i1" {
		t.Errorf("mutations = %v", fake.mutations)
	}
}
