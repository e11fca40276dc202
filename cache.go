package cvcweb

import (
	"context"
	"sync"
	"time"
)

// ContentCache is an in-memory cache of published projects and posts with TTL.
// It feeds the sitemap and the feed; mutations call Invalidate.
type ContentCache struct {
	mu       sync.RWMutex
	projects []PortfolioProject
	posts    []BlogPost
	loaded   bool
	fetched  time.Time
	ttl      time.Duration
	handle   *StoreHandle
}

// NewContentCache creates a ContentCache backed by the given handle.
func NewContentCache(h *StoreHandle, ttl time.Duration) *ContentCache {
	return &ContentCache{handle: h, ttl: ttl}
}

func (c *ContentCache) valid() bool {
	return c.loaded && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *ContentCache) Invalidate() {
	c.mu.Lock()
	c.projects = nil
	c.posts = nil
	c.loaded = false
	c.mu.Unlock()
}

func (c *ContentCache) load(ctx context.Context) error {
	if c.valid() {
		return nil
	}
	s, err := c.handle.Get(ctx)
	if err != nil {
		return err
	}
	projects, _, err := s.ListProjects(ctx, ProjectFilter{Status: StatusPublished})
	if err != nil {
		return err
	}
	posts, err := s.ListPosts(ctx, PostFilter{Status: StatusPublished})
	if err != nil {
		return err
	}
	c.projects = projects
	c.posts = posts
	c.loaded = true
	c.fetched = time.Now()
	return nil
}

// ensureLoaded tries a read lock first and only takes the write lock to reload.
func (c *ContentCache) ensureLoaded(ctx context.Context) ([]PortfolioProject, []BlogPost, error) {
	c.mu.RLock()
	if c.valid() {
		projects, posts := c.projects, c.posts
		c.mu.RUnlock()
		return projects, posts, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, nil, err
	}
	return c.projects, c.posts, nil
}

// PublishedProjects returns published projects, newest first.
func (c *ContentCache) PublishedProjects(ctx context.Context) ([]PortfolioProject, error) {
	projects, _, err := c.ensureLoaded(ctx)
	return projects, err
}

// PublishedPosts returns published blog posts, newest first.
func (c *ContentCache) PublishedPosts(ctx context.Context) ([]BlogPost, error) {
	_, posts, err := c.ensureLoaded(ctx)
	return posts, err
}
