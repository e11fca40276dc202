package cvcweb

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// Sync modes accepted by the ?mode= query parameter.
const (
	SyncAtomic     = "atomic"
	SyncBestEffort = "best-effort"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func parseID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// visibleStatus limits anonymous callers to published projects once admin
// auth is configured.
func (a *App) visibleStatus(c echo.Context) string {
	status := c.QueryParam("status")
	if a.Config.AdminPassword != "" && !IsAdmin(c) {
		return StatusPublished
	}
	return status
}

type listResponse struct {
	Docs        []PortfolioProject `json:"docs"`
	TotalDocs   int                `json:"totalDocs"`
	Limit       int                `json:"limit"`
	Page        int                `json:"page"`
	TotalPages  int                `json:"totalPages"`
	HasNextPage bool               `json:"hasNextPage"`
}

func (a *App) handleListProjects(c echo.Context) error {
	limit := defaultListLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return respondError(c, http.StatusBadRequest, "Invalid limit")
		}
		limit = min(n, maxListLimit)
	}
	page := 1
	if v := c.QueryParam("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return respondError(c, http.StatusBadRequest, "Invalid page")
		}
		page = n
	}
	s, err := a.store(c)
	if err != nil {
		a.logError(c, "open store", err)
		return respondError(c, http.StatusInternalServerError, "Failed to fetch portfolio items")
	}
	projects, total, err := s.ListProjects(c.Request().Context(), ProjectFilter{
		Status: a.visibleStatus(c),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		a.logError(c, "list projects", err)
		return respondError(c, http.StatusInternalServerError, "Failed to fetch portfolio items")
	}
	if projects == nil {
		projects = []PortfolioProject{}
	}
	totalPages := (total + limit - 1) / limit
	return c.JSON(http.StatusOK, listResponse{
		Docs:        projects,
		TotalDocs:   total,
		Limit:       limit,
		Page:        page,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
	})
}

func (a *App) handleGetProject(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return respondError(c, http.StatusNotFound, "Portfolio item not found")
	}
	s, err := a.store(c)
	if err != nil {
		a.logError(c, "open store", err)
		return respondError(c, http.StatusInternalServerError, "Failed to fetch portfolio item")
	}
	p, err := s.GetProject(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return respondError(c, http.StatusNotFound, "Portfolio item not found")
	}
	if err != nil {
		a.logError(c, "get project", err)
		return respondError(c, http.StatusInternalServerError, "Failed to fetch portfolio item")
	}
	if status := a.visibleStatus(c); status != "" && p.Status != status {
		return respondError(c, http.StatusNotFound, "Portfolio item not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (a *App) handleDeleteProject(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return respondError(c, http.StatusNotFound, "Portfolio item not found")
	}
	s, err := a.store(c)
	if err != nil {
		a.logError(c, "open store", err)
		return respondError(c, http.StatusInternalServerError, "Failed to delete portfolio item")
	}
	deleted, err := s.DeleteProject(c.Request().Context(), id)
	if err != nil {
		a.logError(c, "delete project", err)
		return respondError(c, http.StatusInternalServerError, "Failed to delete portfolio item")
	}
	if !deleted {
		return respondError(c, http.StatusNotFound, "Portfolio item not found")
	}
	a.Cache.Invalidate()
	return respondOK(c)
}

type featuredRequest struct {
	Featured *bool `json:"featured"`
}

func (a *App) handleFeatured(c echo.Context) error {
	const failed = "Failed to update featured status"
	id, ok := parseID(c)
	if !ok {
		return respondError(c, http.StatusBadRequest, failed)
	}
	var req featuredRequest
	if err := decodeJSON(c, &req); err != nil || req.Featured == nil {
		return respondError(c, http.StatusBadRequest, failed)
	}
	s, err := a.store(c)
	if err != nil {
		a.logError(c, "open store", err)
		return respondError(c, http.StatusInternalServerError, failed)
	}
	updated, err := s.SetFeatured(c.Request().Context(), id, *req.Featured)
	if err != nil {
		a.logError(c, "update featured status", err)
		return respondError(c, http.StatusInternalServerError, failed)
	}
	if !updated {
		return respondError(c, http.StatusBadRequest, failed)
	}
	a.Cache.Invalidate()
	return respondOK(c)
}

type publishRequest struct {
	Status string `json:"status"`
}

func (a *App) handlePublish(c echo.Context) error {
	const failed = "Failed to update project status"
	id, ok := parseID(c)
	if !ok {
		return respondError(c, http.StatusBadRequest, failed)
	}
	var req publishRequest
	if err := decodeJSON(c, &req); err != nil {
		return respondError(c, http.StatusBadRequest, failed)
	}
	if !ValidStatus(req.Status) {
		return respondError(c, http.StatusBadRequest, fmt.Sprintf("Invalid status %q", req.Status))
	}
	s, err := a.store(c)
	if err != nil {
		a.logError(c, "open store", err)
		return respondError(c, http.StatusInternalServerError, failed)
	}
	updated, err := s.SetStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		a.logError(c, "update project status", err)
		return respondError(c, http.StatusInternalServerError, failed)
	}
	if !updated {
		return respondError(c, http.StatusBadRequest, failed)
	}
	a.Cache.Invalidate()
	return respondOK(c)
}

// syncProject is one element of a sync payload from the marketing suite.
// It accepts the camelCase field names and the snake_case column names the
// suite also sends.
type syncProject struct {
	Title             string     `json:"title"`
	Slug              string     `json:"slug"`
	Category          string     `json:"category"`
	ClientCategory    string     `json:"clientCategory"`
	Description       string     `json:"description"`
	Image             string     `json:"image"`
	URL               string     `json:"url"`
	Year              string     `json:"year"`
	Tags              StringList `json:"tags"`
	Achievements      StringList `json:"achievements"`
	Technologies      StringList `json:"technologies"`
	Challenge         string     `json:"challenge"`
	Solution          string     `json:"solution"`
	Results           string     `json:"results"`
	KeyFeatures       StringList `json:"keyFeatures"`
	Testimonial       string     `json:"testimonial"`
	TestimonialAuthor string     `json:"testimonialAuthor"`
	TestimonialRole   string     `json:"testimonialRole"`
	ClientName        string     `json:"clientName"`
	WorkType          string     `json:"workType"`
	Duration          string     `json:"duration"`
	TeamSize          string     `json:"teamSize"`
	Role              string     `json:"role"`
	Featured          bool       `json:"featured"`
	Status            string     `json:"status"`
	PublishedAt       *time.Time `json:"publishedAt"`
}

// UnmarshalJSON implements json.Unmarshaler. A camelCase field wins over
// its snake_case alias when both are set.
func (sp *syncProject) UnmarshalJSON(data []byte) error {
	type plain syncProject
	var v struct {
		plain
		ClientCategory    string     `json:"client_category"`
		KeyFeatures       StringList `json:"key_features"`
		TestimonialAuthor string     `json:"testimonial_author"`
		TestimonialRole   string     `json:"testimonial_role"`
		ClientName        string     `json:"client_name"`
		WorkType          string     `json:"work_type"`
		TeamSize          string     `json:"team_size"`
		PublishedAt       *time.Time `json:"published_at"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*sp = syncProject(v.plain)
	fill := func(dst *string, alias string) {
		if *dst == "" {
			*dst = alias
		}
	}
	fill(&sp.ClientCategory, v.ClientCategory)
	fill(&sp.TestimonialAuthor, v.TestimonialAuthor)
	fill(&sp.TestimonialRole, v.TestimonialRole)
	fill(&sp.ClientName, v.ClientName)
	fill(&sp.WorkType, v.WorkType)
	fill(&sp.TeamSize, v.TeamSize)
	if len(sp.KeyFeatures) == 0 {
		sp.KeyFeatures = v.KeyFeatures
	}
	if sp.PublishedAt == nil {
		sp.PublishedAt = v.PublishedAt
	}
	return nil
}

func (sp syncProject) project() PortfolioProject {
	p := PortfolioProject{
		Title:             sp.Title,
		Slug:              sp.Slug,
		Category:          sp.Category,
		ClientCategory:    sp.ClientCategory,
		Description:       sp.Description,
		Image:             sp.Image,
		URL:               sp.URL,
		Year:              sp.Year,
		Tags:              sp.Tags,
		Achievements:      sp.Achievements,
		Technologies:      sp.Technologies,
		Challenge:         sp.Challenge,
		Solution:          sp.Solution,
		Results:           sp.Results,
		KeyFeatures:       sp.KeyFeatures,
		Testimonial:       sp.Testimonial,
		TestimonialAuthor: sp.TestimonialAuthor,
		TestimonialRole:   sp.TestimonialRole,
		ClientName:        sp.ClientName,
		WorkType:          sp.WorkType,
		Duration:          sp.Duration,
		TeamSize:          sp.TeamSize,
		Role:              sp.Role,
		Featured:          sp.Featured,
		Status:            sp.Status,
	}
	if sp.PublishedAt != nil {
		p.PublishedAt = *sp.PublishedAt
	}
	return p
}

// decodeSyncProjects decodes and checks every element of a sync payload.
// The first bad element is reported by index.
func decodeSyncProjects(items []json.RawMessage) ([]PortfolioProject, error) {
	projects := make([]PortfolioProject, 0, len(items))
	for i, item := range items {
		var sp syncProject
		if err := json.Unmarshal(item, &sp); err != nil {
			return nil, fmt.Errorf("project %d: %w", i, err)
		}
		p, err := NormalizeProject(sp.project())
		if err != nil {
			return nil, fmt.Errorf("project %d: %w", i, err)
		}
		projects = append(projects, p)
	}
	return projects, nil
}

type syncRequest struct {
	Projects json.RawMessage `json:"projects"`
}

type syncFailure struct {
	Index int    `json:"index"`
	Slug  string `json:"slug,omitempty"`
	Error string `json:"error"`
}

type syncResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Count   int           `json:"count"`
	Mode    string        `json:"mode"`
	Failed  []syncFailure `json:"failed,omitempty"`
}

// handleSync upserts a batch of projects by slug. The payload is fully
// validated before the store is opened.
func (a *App) handleSync(c echo.Context) error {
	const failed = "Failed to sync portfolio"
	var req syncRequest
	if err := decodeJSON(c, &req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid data format")
	}
	raw := bytes.TrimSpace(req.Projects)
	if len(raw) == 0 || raw[0] != '[' {
		return respondError(c, http.StatusBadRequest, "Invalid data format")
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid data format")
	}
	projects, err := decodeSyncProjects(items)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid data format", Details: err.Error()})
	}

	mode := c.QueryParam("mode")
	if mode == "" {
		mode = SyncAtomic
	}
	if mode != SyncAtomic && mode != SyncBestEffort {
		return respondError(c, http.StatusBadRequest, fmt.Sprintf("Invalid sync mode %q", mode))
	}
	prune := false
	if v := c.QueryParam("prune"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return respondError(c, http.StatusBadRequest, "Invalid prune flag")
		}
		prune = b
	}
	if prune && mode != SyncAtomic {
		return respondError(c, http.StatusBadRequest, "prune requires atomic mode")
	}

	s, err := a.store(c)
	if err != nil {
		a.logError(c, "open store", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: failed, Details: err.Error()})
	}
	ctx := c.Request().Context()

	var count int
	var failures []syncFailure
	if mode == SyncAtomic {
		count, err = s.SyncProjects(ctx, projects, prune)
		if err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, ErrInvalidProject) {
				code = http.StatusBadRequest
			} else {
				a.logError(c, "sync portfolio", err)
			}
			return c.JSON(code, errorResponse{Error: failed, Details: err.Error()})
		}
	} else {
		for i, p := range projects {
			if _, err := s.UpsertProject(ctx, p); err != nil {
				failures = append(failures, syncFailure{Index: i, Slug: p.Slug, Error: err.Error()})
				continue
			}
			count++
		}
	}
	if count > 0 || prune {
		a.Cache.Invalidate()
	}
	return c.JSON(http.StatusOK, syncResponse{
		Success: true,
		Message: fmt.Sprintf("Successfully synced %d portfolio projects", count),
		Count:   count,
		Mode:    mode,
		Failed:  failures,
	})
}
