package cvcweb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "content.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStoreMigratesOlderSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE portfolio_projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT NOT NULL, slug TEXT UNIQUE NOT NULL,
		category TEXT NOT NULL DEFAULT '', client_category TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '', image TEXT NOT NULL DEFAULT '', url TEXT NOT NULL DEFAULT '',
		year TEXT NOT NULL DEFAULT '', tags TEXT NOT NULL DEFAULT '', achievements TEXT NOT NULL DEFAULT '',
		technologies TEXT NOT NULL DEFAULT '', featured INTEGER NOT NULL DEFAULT 0,
		published_at TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL);
	INSERT INTO portfolio_projects (title, slug, created_at, updated_at) VALUES ('Legacy', 'legacy', '', '');`)
	db.Close()
	if err != nil {
		t.Fatalf("seed old schema: %v", err)
	}

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore on old schema: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	if _, err := s.UpsertProject(ctx, PortfolioProject{Title: "Legacy", Challenge: "Old stack", TeamSize: "2"}); err != nil {
		t.Fatalf("UpsertProject failed: %v", err)
	}
	projects, _, err := s.ListProjects(ctx, ProjectFilter{})
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(projects) != 1 || projects[0].Challenge != "Old stack" || projects[0].Status != StatusPublished {
		t.Errorf("projects = %+v", projects)
	}
}

func slugsOf(projects []PortfolioProject) []string {
	out := make([]string, len(projects))
	for i, p := range projects {
		out[i] = p.Slug
	}
	return out
}

func TestNewStoreIsReopenable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	s.Close()

	// ensureSchema must tolerate the columns it already added.
	s, err = NewStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	s.Close()
}

func TestUpsertProjectDerivesSlug(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	slug, err := s.UpsertProject(ctx, PortfolioProject{
		Title:        "Hill Phoenix Kiosk",
		Tags:         StringList{"retail", "kiosk"},
		Achievements: StringList{"Shipped in 6 weeks"},
		Year:         "2021",
	})
	if err != nil {
		t.Fatalf("UpsertProject failed: %v", err)
	}
	if slug != "hill-phoenix-kiosk" {
		t.Errorf("slug = %q, want hill-phoenix-kiosk", slug)
	}

	projects, total, err := s.ListProjects(ctx, ProjectFilter{})
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if total != 1 || len(projects) != 1 {
		t.Fatalf("got %d projects (total %d), want 1", len(projects), total)
	}
	p := projects[0]
	if p.Status != StatusPublished {
		t.Errorf("status = %q, want published", p.Status)
	}
	if p.PublishedAt.IsZero() {
		t.Error("published_at should default to now")
	}
	if diff := cmp.Diff([]string{"retail", "kiosk"}, []string(p.Tags)); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
}

func TestUpsertProjectUpdatesBySlug(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, desc := range []string{"first", "second"} {
		if _, err := s.UpsertProject(ctx, PortfolioProject{Title: "Acme", Slug: "acme", Description: desc}); err != nil {
			t.Fatalf("UpsertProject failed: %v", err)
		}
	}
	projects, total, err := s.ListProjects(ctx, ProjectFilter{})
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}
	if projects[0].Description != "second" {
		t.Errorf("description = %q, want second", projects[0].Description)
	}
}

func TestUpsertProjectRejectsInvalid(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	cases := []PortfolioProject{
		{Title: "  "},
		{Title: "!!!"},
		{Title: "ok", Status: "archived"},
	}
	for _, p := range cases {
		if _, err := s.UpsertProject(ctx, p); !errors.Is(err, ErrInvalidProject) {
			t.Errorf("UpsertProject(%+v) error = %v, want ErrInvalidProject", p, err)
		}
	}
}

func TestSyncProjectsRollsBackOnFailure(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertProject(ctx, PortfolioProject{Title: "Existing"}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	_, err := s.SyncProjects(ctx, []PortfolioProject{
		{Title: "New One"},
		{Title: ""},
	}, false)
	if !errors.Is(err, ErrInvalidProject) {
		t.Fatalf("SyncProjects error = %v, want ErrInvalidProject", err)
	}

	projects, _, err := s.ListProjects(ctx, ProjectFilter{})
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if diff := cmp.Diff([]string{"existing"}, slugsOf(projects)); diff != "" {
		t.Errorf("rows after failed sync (-want +got):\n%s", diff)
	}
}

func TestSyncProjectsPrune(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"Keep", "Drop"} {
		if _, err := s.UpsertProject(ctx, PortfolioProject{Title: title}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
	n, err := s.SyncProjects(ctx, []PortfolioProject{{Title: "Keep"}, {Title: "Added"}}, true)
	if err != nil {
		t.Fatalf("SyncProjects failed: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
	projects, _, err := s.ListProjects(ctx, ProjectFilter{})
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	got := slugsOf(projects)
	if len(got) != 2 || !contains(got, "keep") || !contains(got, "added") {
		t.Errorf("slugs after prune = %v, want keep and added", got)
	}
}

func TestSyncProjectsEmptyPruneClears(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	if _, err := s.UpsertProject(ctx, PortfolioProject{Title: "Only"}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := s.SyncProjects(ctx, nil, true); err != nil {
		t.Fatalf("SyncProjects failed: %v", err)
	}
	_, total, _ := s.ListProjects(ctx, ProjectFilter{})
	if total != 0 {
		t.Errorf("total = %d, want 0", total)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func TestSetFeaturedAndStatus(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertProject(ctx, PortfolioProject{Title: "Acme"}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	projects, _, _ := s.ListProjects(ctx, ProjectFilter{})
	id := projects[0].ID

	ok, err := s.SetFeatured(ctx, id, true)
	if err != nil || !ok {
		t.Fatalf("SetFeatured = %v, %v", ok, err)
	}
	ok, err = s.SetStatus(ctx, id, StatusDraft)
	if err != nil || !ok {
		t.Fatalf("SetStatus = %v, %v", ok, err)
	}
	p, err := s.GetProject(ctx, id)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if !p.Featured || p.Status != StatusDraft {
		t.Errorf("got featured=%v status=%q", p.Featured, p.Status)
	}

	ok, err = s.SetFeatured(ctx, id+100, true)
	if err != nil || ok {
		t.Errorf("SetFeatured on missing id = %v, %v; want false, nil", ok, err)
	}
	if _, err := s.SetStatus(ctx, id, "archived"); !errors.Is(err, ErrInvalidProject) {
		t.Errorf("SetStatus(archived) error = %v", err)
	}
}

func TestListProjectsFilterAndPaging(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, title := range []string{"A", "B", "C", "D"} {
		status := StatusPublished
		if title == "C" {
			status = StatusDraft
		}
		p := PortfolioProject{Title: title, Status: status, PublishedAt: base.AddDate(i, 0, 0)}
		if _, err := s.UpsertProject(ctx, p); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	projects, total, err := s.ListProjects(ctx, ProjectFilter{Status: StatusPublished, Limit: 2})
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if diff := cmp.Diff([]string{"d", "b"}, slugsOf(projects)); diff != "" {
		t.Errorf("first page (-want +got):\n%s", diff)
	}

	projects, _, err = s.ListProjects(ctx, ProjectFilter{Status: StatusPublished, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if diff := cmp.Diff([]string{"a"}, slugsOf(projects)); diff != "" {
		t.Errorf("second page (-want +got):\n%s", diff)
	}
}

func TestDeleteProject(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	if _, err := s.UpsertProject(ctx, PortfolioProject{Title: "Gone"}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	projects, _, _ := s.ListProjects(ctx, ProjectFilter{})
	id := projects[0].ID

	if ok, err := s.DeleteProject(ctx, id); err != nil || !ok {
		t.Fatalf("DeleteProject = %v, %v", ok, err)
	}
	if ok, err := s.DeleteProject(ctx, id); err != nil || ok {
		t.Errorf("second DeleteProject = %v, %v; want false, nil", ok, err)
	}
	if _, err := s.GetProject(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProject after delete error = %v, want ErrNotFound", err)
	}
}

func TestListPostsByStatus(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	posts := []BlogPost{
		{Title: "Old", Published: true, PublishedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Title: "Draft", Published: false},
		{Title: "New", Published: true, Tags: StringList{"go"}, PublishedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, p := range posts {
		if _, err := s.CreatePost(ctx, p); err != nil {
			t.Fatalf("CreatePost failed: %v", err)
		}
	}
	got, err := s.ListPosts(ctx, PostFilter{Status: StatusPublished})
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(got) != 2 || got[0].Slug != "new" || got[1].Slug != "old" {
		t.Fatalf("posts = %+v, want new then old", got)
	}
	if diff := cmp.Diff(StringList{"go"}, got[0].Tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}

	drafts, err := s.ListPosts(ctx, PostFilter{Status: StatusDraft})
	if err != nil {
		t.Fatalf("ListPosts drafts failed: %v", err)
	}
	if len(drafts) != 1 || drafts[0].Slug != "draft" || !drafts[0].PublishedAt.IsZero() {
		t.Errorf("drafts = %+v", drafts)
	}
	all, err := s.ListPosts(ctx, PostFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListPosts all failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("limit 2 returned %d posts", len(all))
	}
	if _, err := s.ListPosts(ctx, PostFilter{Status: "archived"}); !errors.Is(err, ErrInvalidPost) {
		t.Errorf("unknown status error = %v, want ErrInvalidPost", err)
	}
}

func TestCreatePost(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	p, err := s.CreatePost(ctx, BlogPost{Title: "  Hello World ", Content: "Body", Published: true})
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	if p.ID == 0 || p.Slug != "hello-world" || p.Title != "Hello World" {
		t.Errorf("post = %+v", p)
	}
	if p.PublishedAt.IsZero() || p.CreatedAt.IsZero() {
		t.Errorf("timestamps not set: %+v", p)
	}

	if _, err := s.CreatePost(ctx, BlogPost{Title: "Hello World"}); !errors.Is(err, ErrSlugTaken) {
		t.Errorf("duplicate slug error = %v, want ErrSlugTaken", err)
	}
	for _, bad := range []BlogPost{{}, {Title: "   "}, {Title: "!!!"}} {
		if _, err := s.CreatePost(ctx, bad); !errors.Is(err, ErrInvalidPost) {
			t.Errorf("CreatePost(%+v) error = %v, want ErrInvalidPost", bad, err)
		}
	}
}

func TestUpdatePostKeepsPublishTime(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	first := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := s.CreatePost(ctx, BlogPost{Title: "Hello", Published: true, PublishedAt: first}); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	ok, err := s.UpdatePost(ctx, "hello", BlogPost{Title: "Hello again", Content: "New", Published: true})
	if err != nil || !ok {
		t.Fatalf("UpdatePost = %v, %v", ok, err)
	}
	got, err := s.GetPost(ctx, "hello")
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if got.Title != "Hello again" || got.Content != "New" || !got.PublishedAt.Equal(first) {
		t.Errorf("after update = %+v", got)
	}

	if _, err := s.UpdatePost(ctx, "hello", BlogPost{Title: "Hello again"}); err != nil {
		t.Fatalf("unpublish failed: %v", err)
	}
	got, _ = s.GetPost(ctx, "hello")
	if got.Published || !got.PublishedAt.IsZero() {
		t.Errorf("after unpublish = %+v", got)
	}

	if ok, err := s.UpdatePost(ctx, "missing", BlogPost{Title: "x"}); err != nil || ok {
		t.Errorf("UpdatePost missing = %v, %v, want false, nil", ok, err)
	}
}

func TestDeletePost(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	if _, err := s.CreatePost(ctx, BlogPost{Title: "Gone"}); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	if ok, err := s.DeletePost(ctx, "gone"); err != nil || !ok {
		t.Fatalf("DeletePost = %v, %v", ok, err)
	}
	if ok, _ := s.DeletePost(ctx, "gone"); ok {
		t.Error("second delete reported a deletion")
	}
	if _, err := s.GetPost(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPost after delete error = %v, want ErrNotFound", err)
	}
}
