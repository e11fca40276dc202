package cvcweb

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

const defaultPostAuthor = "CVC Team"

// postRequest is the body of POST /api/blog and PUT /api/blog/:slug.
type postRequest struct {
	Title              string     `json:"title"`
	Slug               string     `json:"slug"`
	Content            string     `json:"content"`
	Excerpt            string     `json:"excerpt"`
	Author             string     `json:"author"`
	Category           string     `json:"category"`
	Tags               StringList `json:"tags"`
	FeaturedImage      string     `json:"featuredImage"`
	FeaturedImageSnake string     `json:"featured_image"`
	MetaDescription    string     `json:"metaDescription"`
	SEOMetaDescription string     `json:"seoMetaDescription"`
	Status             string     `json:"status"`
	PublishedAt        *time.Time `json:"publishedAt"`
}

func (r postRequest) post() (BlogPost, error) {
	if r.Status != "" && !ValidStatus(r.Status) {
		return BlogPost{}, fmt.Errorf("%w: unknown status %q", ErrInvalidPost, r.Status)
	}
	p := BlogPost{
		Title:           r.Title,
		Slug:            r.Slug,
		Content:         r.Content,
		Excerpt:         r.Excerpt,
		Author:          r.Author,
		Category:        r.Category,
		Tags:            r.Tags,
		FeaturedImage:   r.FeaturedImage,
		MetaDescription: r.SEOMetaDescription,
		Published:       r.Status == StatusPublished,
	}
	if p.Author == "" {
		p.Author = defaultPostAuthor
	}
	if p.FeaturedImage == "" {
		p.FeaturedImage = r.FeaturedImageSnake
	}
	if p.MetaDescription == "" {
		p.MetaDescription = r.MetaDescription
	}
	if p.MetaDescription == "" {
		p.MetaDescription = r.Excerpt
	}
	if r.PublishedAt != nil {
		p.PublishedAt = *r.PublishedAt
	}
	return p, nil
}

// postSummary is a list entry for GET /api/blog.
type postSummary struct {
	ID                int64      `json:"id"`
	Title             string     `json:"title"`
	Slug              string     `json:"slug"`
	Excerpt           string     `json:"excerpt"`
	Category          string     `json:"category,omitempty"`
	Author            string     `json:"author,omitempty"`
	Status            string     `json:"status"`
	PublishedAt       *time.Time `json:"publishedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	EstimatedReadTime int        `json:"estimatedReadTime"`
}

func summarize(p BlogPost) postSummary {
	s := postSummary{
		ID:                p.ID,
		Title:             p.Title,
		Slug:              p.Slug,
		Excerpt:           p.Excerpt,
		Category:          p.Category,
		Author:            p.Author,
		Status:            p.Status(),
		CreatedAt:         p.CreatedAt,
		EstimatedReadTime: readMinutes(p.Content),
	}
	if s.Excerpt == "" {
		s.Excerpt = truncate(p.Content, 200)
	}
	if !p.PublishedAt.IsZero() {
		at := p.PublishedAt
		s.PublishedAt = &at
	}
	return s
}

type postListResponse struct {
	Posts []postSummary `json:"posts"`
	Total int           `json:"total"`
}

type postResponse struct {
	Success bool     `json:"success"`
	Post    BlogPost `json:"post"`
}

// visiblePostStatus limits anonymous callers to published posts once admin
// auth is configured. "all" and an empty status list every post.
func (a *App) visiblePostStatus(c echo.Context) (string, bool) {
	if a.Config.AdminPassword != "" && !IsAdmin(c) {
		return StatusPublished, true
	}
	switch status := c.QueryParam("status"); status {
	case "", "all":
		return "", true
	case StatusDraft, StatusPublished:
		return status, true
	default:
		return "", false
	}
}

func (a *App) handleListPosts(c echo.Context) error {
	const failed = "Failed to fetch blog posts"
	status, ok := a.visiblePostStatus(c)
	if !ok {
		return respondError(c, http.StatusBadRequest, "Invalid status")
	}
	limit := defaultListLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return respondError(c, http.StatusBadRequest, "Invalid limit")
		}
		limit = min(n, maxListLimit)
	}
	s, err := a.store(c)
	if err != nil {
		a.logError(c, "open store", err)
		return respondError(c, http.StatusInternalServerError, failed)
	}
	posts, err := s.ListPosts(c.Request().Context(), PostFilter{Status: status, Limit: limit})
	if err != nil {
		a.logError(c, "list posts", err)
		return respondError(c, http.StatusInternalServerError, failed)
	}
	resp := postListResponse{Posts: make([]postSummary, 0, len(posts)), Total: len(posts)}
	for _, p := range posts {
		resp.Posts = append(resp.Posts, summarize(p))
	}
	return c.JSON(http.StatusOK, resp)
}

func (a *App) handleGetPost(c echo.Context) error {
	s, err := a.store(c)
	if err != nil {
		a.logError(c, "open store", err)
		return respondError(c, http.StatusInternalServerError, "Failed to fetch blog post")
	}
	p, err := s.GetPost(c.Request().Context(), c.Param("slug"))
	if errors.Is(err, ErrNotFound) {
		return respondError(c, http.StatusNotFound, "Blog post not found")
	}
	if err != nil {
		a.logError(c, "get post", err)
		return respondError(c, http.StatusInternalServerError, "Failed to fetch blog post")
	}
	if status, _ := a.visiblePostStatus(c); status == StatusPublished && !p.Published {
		return respondError(c, http.StatusNotFound, "Blog post not found")
	}
	return c.JSON(http.StatusOK, p)
}

func decodePost(c echo.Context) (BlogPost, error) {
	var req postRequest
	if err := decodeJSON(c, &req); err != nil {
		return BlogPost{}, err
	}
	return req.post()
}

func (a *App) handleCreatePost(c echo.Context) error {
	const failed = "Failed to create blog post"
	p, err := decodePost(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: failed, Details: err.Error()})
	}
	s, err := a.store(c)
	if err != nil {
		a.logError(c, "open store", err)
		return respondError(c, http.StatusInternalServerError, failed)
	}
	created, err := s.CreatePost(c.Request().Context(), p)
	switch {
	case errors.Is(err, ErrInvalidPost):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: failed, Details: err.Error()})
	case errors.Is(err, ErrSlugTaken):
		return c.JSON(http.StatusConflict, errorResponse{Error: failed, Details: err.Error()})
	case err != nil:
		a.logError(c, "create post", err)
		return respondError(c, http.StatusInternalServerError, failed)
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, postResponse{Success: true, Post: created})
}

func (a *App) handleUpdatePost(c echo.Context) error {
	const failed = "Failed to update blog post"
	p, err := decodePost(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: failed, Details: err.Error()})
	}
	s, err := a.store(c)
	if err != nil {
		a.logError(c, "open store", err)
		return respondError(c, http.StatusInternalServerError, failed)
	}
	updated, err := s.UpdatePost(c.Request().Context(), c.Param("slug"), p)
	if errors.Is(err, ErrInvalidPost) {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: failed, Details: err.Error()})
	}
	if err != nil {
		a.logError(c, "update post", err)
		return respondError(c, http.StatusInternalServerError, failed)
	}
	if !updated {
		return respondError(c, http.StatusNotFound, "Blog post not found")
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, successResponse{Success: true, Message: "Blog post updated successfully"})
}

func (a *App) handleDeletePost(c echo.Context) error {
	const failed = "Failed to delete blog post"
	s, err := a.store(c)
	if err != nil {
		a.logError(c, "open store", err)
		return respondError(c, http.StatusInternalServerError, failed)
	}
	deleted, err := s.DeletePost(c.Request().Context(), c.Param("slug"))
	if err != nil {
		a.logError(c, "delete post", err)
		return respondError(c, http.StatusInternalServerError, failed)
	}
	if !deleted {
		return respondError(c, http.StatusNotFound, "Blog post not found")
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, successResponse{Success: true, Message: "Blog post deleted successfully"})
}
