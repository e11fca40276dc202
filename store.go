package cvcweb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = sql.ErrNoRows

// ErrInvalidProject is returned when a project cannot be stored as given.
var ErrInvalidProject = errors.New("invalid project")

const timeLayout = time.RFC3339

// Store wraps the SQLite content database that backs the route handlers.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the server keep reading while a maintenance run writes; the
	// busy timeout makes writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA foreign_keys=ON;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS portfolio_projects (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    slug TEXT UNIQUE NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    client_category TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    image TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL DEFAULT '',
    year TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '',
    achievements TEXT NOT NULL DEFAULT '',
    technologies TEXT NOT NULL DEFAULT '',
    featured INTEGER NOT NULL DEFAULT 0,
    published_at TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS blog_posts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    slug TEXT UNIQUE NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    excerpt TEXT NOT NULL DEFAULT '',
    author TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '',
    featured_image TEXT NOT NULL DEFAULT '',
    published INTEGER NOT NULL DEFAULT 0,
    published_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_portfolio_featured ON portfolio_projects(featured);
CREATE INDEX IF NOT EXISTS idx_blog_published ON blog_posts(published);
`)
	if err != nil {
		return err
	}
	// Columns added after the first release; older databases only get them here.
	for _, m := range addedColumns {
		_, err := s.db.Exec(`ALTER TABLE ` + m.table + ` ADD COLUMN ` + m.column + ` ` + m.definition)
		if err != nil && !strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
			return fmt.Errorf("add column %s.%s: %w", m.table, m.column, err)
		}
	}
	return nil
}

var addedColumns = []struct{ table, column, definition string }{
	{"portfolio_projects", "status", "TEXT NOT NULL DEFAULT 'published'"},
	{"portfolio_projects", "challenge", "TEXT NOT NULL DEFAULT ''"},
	{"portfolio_projects", "solution", "TEXT NOT NULL DEFAULT ''"},
	{"portfolio_projects", "results", "TEXT NOT NULL DEFAULT ''"},
	{"portfolio_projects", "key_features", "TEXT NOT NULL DEFAULT ''"},
	{"portfolio_projects", "testimonial", "TEXT NOT NULL DEFAULT ''"},
	{"portfolio_projects", "testimonial_author", "TEXT NOT NULL DEFAULT ''"},
	{"portfolio_projects", "testimonial_role", "TEXT NOT NULL DEFAULT ''"},
	{"portfolio_projects", "client_name", "TEXT NOT NULL DEFAULT ''"},
	{"portfolio_projects", "work_type", "TEXT NOT NULL DEFAULT ''"},
	{"portfolio_projects", "duration", "TEXT NOT NULL DEFAULT ''"},
	{"portfolio_projects", "team_size", "TEXT NOT NULL DEFAULT ''"},
	{"portfolio_projects", "role", "TEXT NOT NULL DEFAULT ''"},
	{"blog_posts", "meta_description", "TEXT NOT NULL DEFAULT ''"},
	{"blog_posts", "created_at", "TEXT"},
	{"blog_posts", "updated_at", "TEXT"},
}

const projectColumns = `id, title, slug, category, client_category, description, image, url, year,
	tags, achievements, technologies, challenge, solution, results, key_features,
	testimonial, testimonial_author, testimonial_role, client_name, work_type, duration, team_size, role,
	featured, status, COALESCE(published_at, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(r rowScanner) (PortfolioProject, error) {
	var p PortfolioProject
	var tags, achievements, technologies, keyFeatures, publishedAt, createdAt, updatedAt string
	var featured int
	err := r.Scan(&p.ID, &p.Title, &p.Slug, &p.Category, &p.ClientCategory, &p.Description,
		&p.Image, &p.URL, &p.Year, &tags, &achievements, &technologies,
		&p.Challenge, &p.Solution, &p.Results, &keyFeatures,
		&p.Testimonial, &p.TestimonialAuthor, &p.TestimonialRole, &p.ClientName, &p.WorkType,
		&p.Duration, &p.TeamSize, &p.Role,
		&featured, &p.Status, &publishedAt, &createdAt, &updatedAt)
	if err != nil {
		return PortfolioProject{}, err
	}
	p.Tags = SplitList(tags)
	p.Achievements = SplitList(achievements)
	p.Technologies = SplitList(technologies)
	p.KeyFeatures = SplitList(keyFeatures)
	p.Featured = featured == 1
	p.PublishedAt = parseTime(publishedAt)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

// ProjectFilter narrows ListProjects. A zero Limit means no limit.
type ProjectFilter struct {
	Status string
	Limit  int
	Offset int
}

// ListProjects returns projects ordered by publish date, newest first, and
// the total number of rows matching the filter.
func (s *Store) ListProjects(ctx context.Context, f ProjectFilter) ([]PortfolioProject, int, error) {
	where := ""
	var args []any
	if f.Status != "" {
		where = " WHERE status = ?"
		args = append(args, f.Status)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM portfolio_projects`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, f.Offset)
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM portfolio_projects`+where+
		` ORDER BY published_at DESC, created_at DESC, id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var projects []PortfolioProject
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

// GetProject returns a single project by id.
func (s *Store) GetProject(ctx context.Context, id int64) (PortfolioProject, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM portfolio_projects WHERE id = ?`, id)
	return scanProject(row)
}

// SetFeatured stores the featured flag as 0/1. It reports false when no row has the id.
func (s *Store) SetFeatured(ctx context.Context, id int64, featured bool) (bool, error) {
	v := 0
	if featured {
		v = 1
	}
	return s.updateColumn(ctx, id, "featured", v)
}

// SetStatus changes the publish status. It reports false when no row has the id.
func (s *Store) SetStatus(ctx context.Context, id int64, status string) (bool, error) {
	if !ValidStatus(status) {
		return false, fmt.Errorf("%w: unknown status %q", ErrInvalidProject, status)
	}
	return s.updateColumn(ctx, id, "status", status)
}

// updateColumn is only called with column names from this file.
func (s *Store) updateColumn(ctx context.Context, id int64, column string, value any) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE portfolio_projects SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		value, formatTime(s.now()), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteProject removes a project by id. It reports false when nothing was deleted.
func (s *Store) DeleteProject(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM portfolio_projects WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpsertProject inserts p, or updates the row that already has its slug.
// The slug is derived from the title when empty. It returns the stored slug.
func (s *Store) UpsertProject(ctx context.Context, p PortfolioProject) (string, error) {
	return s.upsertProject(ctx, s.db, p)
}

// NormalizeProject trims the title, derives a missing slug and defaults the
// status. It fails with ErrInvalidProject when p cannot be stored.
func NormalizeProject(p PortfolioProject) (PortfolioProject, error) {
	p.Title = strings.TrimSpace(p.Title)
	p.Slug = strings.TrimSpace(p.Slug)
	if p.Title == "" {
		return p, fmt.Errorf("%w: title is required", ErrInvalidProject)
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	if p.Slug == "" {
		return p, fmt.Errorf("%w: title %q has no slug characters", ErrInvalidProject, p.Title)
	}
	if p.Status == "" {
		p.Status = StatusPublished
	}
	if !ValidStatus(p.Status) {
		return p, fmt.Errorf("%w: unknown status %q", ErrInvalidProject, p.Status)
	}
	return p, nil
}

func (s *Store) upsertProject(ctx context.Context, ex execer, p PortfolioProject) (string, error) {
	p, err := NormalizeProject(p)
	if err != nil {
		return "", err
	}
	now := s.now()
	if p.PublishedAt.IsZero() {
		p.PublishedAt = now
	}
	featured := 0
	if p.Featured {
		featured = 1
	}
	_, err = ex.ExecContext(ctx, `
INSERT INTO portfolio_projects (
    title, slug, category, client_category, description, image, url, year,
    tags, achievements, technologies, challenge, solution, results, key_features,
    testimonial, testimonial_author, testimonial_role, client_name, work_type, duration, team_size, role,
    featured, status, published_at, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(slug) DO UPDATE SET
    title = excluded.title,
    category = excluded.category,
    client_category = excluded.client_category,
    description = excluded.description,
    image = excluded.image,
    url = excluded.url,
    year = excluded.year,
    tags = excluded.tags,
    achievements = excluded.achievements,
    technologies = excluded.technologies,
    challenge = excluded.challenge,
    solution = excluded.solution,
    results = excluded.results,
    key_features = excluded.key_features,
    testimonial = excluded.testimonial,
    testimonial_author = excluded.testimonial_author,
    testimonial_role = excluded.testimonial_role,
    client_name = excluded.client_name,
    work_type = excluded.work_type,
    duration = excluded.duration,
    team_size = excluded.team_size,
    role = excluded.role,
    featured = excluded.featured,
    status = excluded.status,
    published_at = excluded.published_at,
    updated_at = excluded.updated_at`,
		p.Title, p.Slug, p.Category, p.ClientCategory, p.Description, p.Image, p.URL, p.Year,
		p.Tags.String(), p.Achievements.String(), p.Technologies.String(),
		p.Challenge, p.Solution, p.Results, p.KeyFeatures.String(),
		p.Testimonial, p.TestimonialAuthor, p.TestimonialRole, p.ClientName, p.WorkType,
		p.Duration, p.TeamSize, p.Role,
		featured, p.Status, formatTime(p.PublishedAt), formatTime(now), formatTime(now))
	if err != nil {
		return "", fmt.Errorf("upsert %q: %w", p.Slug, err)
	}
	return p.Slug, nil
}

// SyncProjects upserts every project in one transaction. The first failure
// rolls the whole sync back. With prune set, rows whose slug is not part of
// the sync are deleted as well.
func (s *Store) SyncProjects(ctx context.Context, projects []PortfolioProject, prune bool) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	slugs := make([]any, 0, len(projects))
	for i, p := range projects {
		slug, err := s.upsertProject(ctx, tx, p)
		if err != nil {
			return 0, fmt.Errorf("project %d: %w", i, err)
		}
		slugs = append(slugs, slug)
	}
	if prune {
		query := `DELETE FROM portfolio_projects`
		if len(slugs) > 0 {
			query += ` WHERE slug NOT IN (?` + strings.Repeat(", ?", len(slugs)-1) + `)`
		}
		if _, err := tx.ExecContext(ctx, query, slugs...); err != nil {
			return 0, fmt.Errorf("prune: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(projects), nil
}

const postColumns = `id, title, slug, content, excerpt, author, category, tags, featured_image,
	meta_description, published, COALESCE(published_at, ''), COALESCE(created_at, ''), COALESCE(updated_at, '')`

func scanPost(r rowScanner) (BlogPost, error) {
	var p BlogPost
	var tags, publishedAt, createdAt, updatedAt string
	var published int
	err := r.Scan(&p.ID, &p.Title, &p.Slug, &p.Content, &p.Excerpt, &p.Author, &p.Category,
		&tags, &p.FeaturedImage, &p.MetaDescription, &published, &publishedAt, &createdAt, &updatedAt)
	if err != nil {
		return BlogPost{}, err
	}
	p.Tags = SplitList(tags)
	p.Published = published == 1
	p.PublishedAt = parseTime(publishedAt)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// ErrInvalidPost is returned when a post cannot be stored as given.
var ErrInvalidPost = errors.New("invalid post")

// ErrSlugTaken is returned by CreatePost when another post has the slug.
var ErrSlugTaken = errors.New("slug already in use")

func normalizePost(p BlogPost) (BlogPost, error) {
	p.Title = strings.TrimSpace(p.Title)
	p.Slug = strings.TrimSpace(p.Slug)
	if p.Title == "" {
		return p, fmt.Errorf("%w: title is required", ErrInvalidPost)
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	if p.Slug == "" {
		return p, fmt.Errorf("%w: title %q has no slug characters", ErrInvalidPost, p.Title)
	}
	return p, nil
}

// PostFilter narrows ListPosts. An empty Status lists drafts and published
// posts alike. A zero Limit means no limit.
type PostFilter struct {
	Status string
	Limit  int
}

// ListPosts returns posts newest first.
func (s *Store) ListPosts(ctx context.Context, f PostFilter) ([]BlogPost, error) {
	where := ""
	var args []any
	switch f.Status {
	case "":
	case StatusPublished:
		where = " WHERE published = 1"
	case StatusDraft:
		where = " WHERE published = 0"
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidPost, f.Status)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, `SELECT `+postColumns+` FROM blog_posts`+where+
		` ORDER BY COALESCE(published_at, created_at) DESC, id DESC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []BlogPost
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// GetPost returns a post by slug, published or not.
func (s *Store) GetPost(ctx context.Context, slug string) (BlogPost, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM blog_posts WHERE slug = ?`, slug)
	return scanPost(row)
}

// publishedAt is the stored publish time: unset for drafts, now for a post
// published without one.
func (s *Store) publishedAt(p BlogPost) any {
	if !p.Published {
		return nil
	}
	if p.PublishedAt.IsZero() {
		return formatTime(s.now())
	}
	return formatTime(p.PublishedAt)
}

// CreatePost inserts a new post and returns it as stored.
func (s *Store) CreatePost(ctx context.Context, p BlogPost) (BlogPost, error) {
	p, err := normalizePost(p)
	if err != nil {
		return BlogPost{}, err
	}
	published := 0
	if p.Published {
		published = 1
	}
	now := formatTime(s.now())
	res, err := s.db.ExecContext(ctx, `
INSERT INTO blog_posts (title, slug, content, excerpt, author, category, tags, featured_image,
    meta_description, published, published_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(slug) DO NOTHING`,
		p.Title, p.Slug, p.Content, p.Excerpt, p.Author, p.Category, p.Tags.String(),
		p.FeaturedImage, p.MetaDescription, published, s.publishedAt(p), now, now)
	if err != nil {
		return BlogPost{}, fmt.Errorf("insert post %q: %w", p.Slug, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return BlogPost{}, err
	} else if n == 0 {
		return BlogPost{}, fmt.Errorf("%w: %q", ErrSlugTaken, p.Slug)
	}
	return s.GetPost(ctx, p.Slug)
}

// UpdatePost replaces the editable fields of the post with the given slug.
// A post that stays published keeps its original publish time unless p sets
// one. It reports false when no post has the slug.
func (s *Store) UpdatePost(ctx context.Context, slug string, p BlogPost) (bool, error) {
	p.Slug = slug
	p, err := normalizePost(p)
	if err != nil {
		return false, err
	}
	published := 0
	var given any
	if p.Published {
		published = 1
		given = formatTime(p.PublishedAt)
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE blog_posts SET
    title = ?, content = ?, excerpt = ?, author = ?, category = ?, tags = ?,
    featured_image = ?, meta_description = ?, published = ?,
    published_at = CASE WHEN ? = 1 THEN COALESCE(?, published_at, ?) ELSE NULL END,
    updated_at = ?
WHERE slug = ?`,
		p.Title, p.Content, p.Excerpt, p.Author, p.Category, p.Tags.String(),
		p.FeaturedImage, p.MetaDescription, published,
		published, given, formatTime(s.now()),
		formatTime(s.now()), slug)
	if err != nil {
		return false, fmt.Errorf("update post %q: %w", slug, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeletePost removes a post by slug. It reports false when nothing was deleted.
func (s *Store) DeletePost(ctx context.Context, slug string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blog_posts WHERE slug = ?`, slug)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
