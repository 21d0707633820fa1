package storysync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/storysync/internal/apperr"
	"github.com/starford/storysync/internal/models"
	"github.com/starford/storysync/internal/testutil"
)

func TestPush_UpsertsAllStories(t *testing.T) {
	for _, status := range []string{"todo", "in_progress", "done"} {
		t.Run(status, func(t *testing.T) {
			dir, _ := testutil.StoryDir(t)
			testutil.WriteStory(t, dir, "story-1", "Story One", status)
			testutil.WriteStory(t, dir, "story-2", "Story Two", status)
			fake := testutil.NewFakeBoard()

			res, err := New(dir, fake, nil, nil).Push(context.Background())
			if err != nil {
				t.Fatalf("Push: %v", err)
			}
			if res.TotalStories != 2 || res.UpdatedStories != 2 {
				t.Errorf("result = %+v, want 2/2", res)
			}
			if len(fake.Upserted) != 2 {
				t.Fatalf("upserts = %d, want 2", len(fake.Upserted))
			}
			for i, id := range []string{"story-1", "story-2"} {
				if fake.Upserted[i].ID != id || fake.Upserted[i].Status != status {
					t.Errorf("upsert[%d] = %+v", i, fake.Upserted[i])
				}
			}
		})
	}
}

func TestPush_EmptyDirectory(t *testing.T) {
	dir, _ := testutil.StoryDir(t)
	fake := testutil.NewFakeBoard()

	res, err := New(dir, fake, nil, nil).Push(context.Background())
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if res != (models.PushResult{}) {
		t.Errorf("result = %+v, want zero", res)
	}
	if len(fake.Upserted) != 0 || len(fake.Archived) != 0 {
		t.Errorf("unexpected calls: %v", fake.Calls)
	}
}

func TestPush_ExactPairsNoArchives(t *testing.T) {
	dir, _ := testutil.StoryDir(t)
	testutil.WriteStory(t, dir, "story-1", "One", "todo")
	testutil.WriteStory(t, dir, "story-2", "Two", "done")
	fake := testutil.NewFakeBoard()

	if _, err := New(dir, fake, nil, nil).Push(context.Background()); err != nil {
		t.Fatalf("Push: %v", err)
	}
	want := []models.Story{
		{ID: "story-1", Title: "One", Status: "todo"},
		{ID: "story-2", Title: "Two", Status: "done"},
	}
	if len(fake.Upserted) != len(want) {
		t.Fatalf("upserted = %+v", fake.Upserted)
	}
	for i := range want {
		if fake.Upserted[i] != want[i] {
			t.Errorf("upsert[%d] = %+v, want %+v", i, fake.Upserted[i], want[i])
		}
	}
	if len(fake.Archived) != 0 {
		t.Errorf("archived = %v, want none", fake.Archived)
	}
}

func TestPush_ArchivesRemovedStories(t *testing.T) {
	dir, _ := testutil.StoryDir(t)
	testutil.WriteStory(t, dir, "story-2", "Story Two", "todo")
	fake := testutil.NewFakeBoard(
		models.Story{ID: "story-1", Title: "Story One", Status: "todo"},
		models.Story{ID: "story-2", Title: "Story Two", Status: "todo"},
	)

	var events []string
	res, err := New(dir, fake, nil, func(kind, id string) {
		events = append(events, kind+":"+id)
	}).Push(context.Background())
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if res.TotalStories != 1 || res.UpdatedStories != 1 || res.ArchivedStories != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(fake.Upserted) != 1 || fake.Upserted[0].ID != "story-2" {
		t.Errorf("upserted = %+v", fake.Upserted)
	}
	if strings.Join(fake.Archived, ",") != "story-1" {
		t.Errorf("archived = %v, want [story-1]", fake.Archived)
	}
	if strings.Join(events, ",") != "upserted:story-2,archived:story-1" {
		t.Errorf("events = %v", events)
	}
}

func TestPush_ArchivesInSortedOrder(t *testing.T) {
	dir, _ := testutil.StoryDir(t)
	fake := testutil.NewFakeBoard(
		models.Story{ID: "story-c"},
		models.Story{ID: "story-a"},
		models.Story{ID: "story-b"},
	)
	if _, err := New(dir, fake, nil, nil).Push(context.Background()); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if strings.Join(fake.Archived, ",") != "story-a,story-b,story-c" {
		t.Errorf("archived = %v", fake.Archived)
	}
}

func TestPush_Idempotent(t *testing.T) {
	dir, _ := testutil.StoryDir(t)
	testutil.WriteStory(t, dir, "story-1", "One", "todo")
	testutil.WriteStory(t, dir, "story-2", "Two", "done")
	fake := testutil.NewFakeBoard()
	syncer := New(dir, fake, nil, nil)

	if _, err := syncer.Push(context.Background()); err != nil {
		t.Fatalf("first Push: %v", err)
	}
	first := append([]models.Story(nil), fake.Upserted...)
	fake.Upserted = nil

	if _, err := syncer.Push(context.Background()); err != nil {
		t.Fatalf("second Push: %v", err)
	}
	if len(fake.Upserted) != len(first) {
		t.Fatalf("second run upserts = %d, want %d", len(fake.Upserted), len(first))
	}
	for i := range first {
		if fake.Upserted[i] != first[i] {
			t.Errorf("upsert[%d] = %+v, want %+v", i, fake.Upserted[i], first[i])
		}
	}
	if len(fake.Items()) != 2 {
		t.Errorf("board items = %d, want 2", len(fake.Items()))
	}
	if len(fake.Archived) != 0 {
		t.Errorf("archived = %v", fake.Archived)
	}
}

func TestPush_InvalidTokenShortCircuits(t *testing.T) {
	dir, _ := testutil.StoryDir(t)
	testutil.WriteStory(t, dir, "story-1", "One", "todo")
	fake := testutil.NewFakeBoard(models.Story{ID: "story-0"})
	fake.InvalidToken = true

	_, err := New(dir, fake, nil, nil).Push(context.Background())
	if !errors.Is(err, apperr.ErrAuthentication) {
		t.Fatalf("err = %v, want ErrAuthentication", err)
	}
	if len(fake.Calls) != 1 || fake.Calls[0] != "validate" {
		t.Errorf("calls = %v, want only validate", fake.Calls)
	}
}

func TestPush_ParseErrorBeforeAnyUpsert(t *testing.T) {
	dir, _ := testutil.StoryDir(t)
	testutil.WriteStory(t, dir, "story-1", "One", "todo")
	if err := os.WriteFile(filepath.Join(dir, "story-2.md"), []byte("---\ntitle: \"No status\"\n---\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	fake := testutil.NewFakeBoard()

	_, err := New(dir, fake, nil, nil).Push(context.Background())
	if !errors.Is(err, apperr.ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
	if !strings.Contains(err.Error(), "story-2.md") {
		t.Errorf("error should name the file: %v", err)
	}
	if len(fake.Upserted) != 0 {
		t.Errorf("upserted = %+v, want none", fake.Upserted)
	}
}

func TestPush_IgnoresNonMarkdownAndSubdirs(t *testing.T) {
	dir, _ := testutil.StoryDir(t)
	testutil.WriteStory(t, dir, "story-1", "One", "todo")
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644)
	_ = os.MkdirAll(filepath.Join(dir, "archive"), 0o755)
	testutil.WriteStory(t, filepath.Join(dir, "archive"), "story-old", "Old", "done")
	fake := testutil.NewFakeBoard()

	res, err := New(dir, fake, nil, nil).Push(context.Background())
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if res.TotalStories != 1 {
		t.Errorf("total = %d, want 1", res.TotalStories)
	}
}

func TestPush_UpsertFailureStopsRun(t *testing.T) {
	dir, _ := testutil.StoryDir(t)
	testutil.WriteStory(t, dir, "story-1", "One", "todo")
	testutil.WriteStory(t, dir, "story-2", "Two", "todo")
	fake := testutil.NewFakeBoard(models.Story{ID: "story-9"})
	fake.FailUpsert = apperr.ErrRemoteAPI

	_, err := New(dir, fake, nil, nil).Push(context.Background())
	if !errors.Is(err, apperr.ErrRemoteAPI) {
		t.Fatalf("err = %v, want ErrRemoteAPI", err)
	}
	if len(fake.Archived) != 0 {
		t.Errorf("archive must not run after a failed upsert: %v", fake.Archived)
	}
}

func TestPush_MissingDirectory(t *testing.T) {
	fake := testutil.NewFakeBoard()
	_, err := New(filepath.Join(t.TempDir(), "missing"), fake, nil, nil).Push(context.Background())
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}
