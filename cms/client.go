// Package cms is a small client for the CMS REST API (/api/<collection>).
//
// It covers what the maintenance tasks need: filtered and sorted reads,
// deletes by id, and JSON create/update calls.
package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"
)

// DefaultLimit is the page size used when a Query leaves Limit at zero.
const DefaultLimit = 100

// ErrNotFound is returned when the API answers 404 for a document.
var ErrNotFound = errors.New("cms: not found")

// APIError is a non-2xx response other than 404.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("cms: %s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("cms: %s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Client talks to one CMS instance.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New returns a client for the CMS at baseURL (e.g. http://localhost:3456).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("cms: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("cms: base url %q must be http or https", baseURL)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Where is one where[field][operator]=value filter.
type Where struct {
	Field    string
	Operator string
	Value    string
}

// Equals builds a where[field][equals]=value filter.
func Equals(field, value string) Where {
	return Where{Field: field, Operator: "equals", Value: value}
}

// Query holds the list parameters the CMS understands.
type Query struct {
	Limit int
	Page  int
	Depth int
	Sort  string // "-field" sorts descending
	Where []Where
}

// Values encodes the query as URL parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	v.Set("limit", strconv.Itoa(limit))
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Depth > 0 {
		v.Set("depth", strconv.Itoa(q.Depth))
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	for _, w := range q.Where {
		v.Add(fmt.Sprintf("where[%s][%s]", w.Field, w.Operator), w.Value)
	}
	return v
}

// FindResult is one page of a collection.
type FindResult struct {
	Docs        []Doc `json:"docs"`
	TotalDocs   int   `json:"totalDocs"`
	Limit       int   `json:"limit"`
	Page        int   `json:"page"`
	HasNextPage bool  `json:"hasNextPage"`
}

func (c *Client) endpoint(segments ...string) string {
	u := *c.base
	u.Path = path.Join(append([]string{"/", u.Path, "api"}, segments...)...)
	u.RawQuery = ""
	return u.String()
}

// do sends a request and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cms: encode body: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("cms: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cms: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			Method:     method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(text)),
		}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("cms: decode %s %s: %w", method, endpoint, err)
	}
	return nil
}

// Find reads one page of a collection.
func (c *Client) Find(ctx context.Context, collection string, q Query) (*FindResult, error) {
	endpoint := c.endpoint(collection) + "?" + q.Values().Encode()
	var res FindResult
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &res); err != nil {
		return nil, err
	}
	if res.Docs == nil {
		return nil, fmt.Errorf("cms: GET %s: response has no docs array", endpoint)
	}
	return &res, nil
}

// maxPages bounds FindAll against a server that ignores the page parameter.
const maxPages = 1000

// FindAll reads every page of a collection. A page shorter than the limit
// is the last one; so is any page that brings the total up to totalDocs.
func (c *Client) FindAll(ctx context.Context, collection string, q Query) ([]Doc, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	var all []Doc
	for range maxPages {
		res, err := c.Find(ctx, collection, q)
		if err != nil {
			return nil, err
		}
		all = append(all, res.Docs...)
		if len(res.Docs) < q.Limit || (res.TotalDocs > 0 && len(all) >= res.TotalDocs) {
			return all, nil
		}
		q.Page++
	}
	return nil, fmt.Errorf("cms: %s has more than %d pages of %d", collection, maxPages, q.Limit)
}

// FindByID reads one document.
func (c *Client) FindByID(ctx context.Context, collection, id string) (Doc, error) {
	var doc Doc
	if err := c.do(ctx, http.MethodGet, c.endpoint(collection, id), nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes a document. A 404 is returned as ErrNotFound.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	return c.do(ctx, http.MethodDelete, c.endpoint(collection, id), nil, nil)
}

// unwrap returns the document a write answered with. The CMS wraps it as
// {"doc": ..., "message": ...}; a bare document is returned as is.
func unwrap(res Doc) Doc {
	if doc := res.Object("doc"); doc != nil {
		return doc
	}
	return res
}

// Update sends a PATCH with the given fields and returns the updated document.
func (c *Client) Update(ctx context.Context, collection, id string, fields map[string]any) (Doc, error) {
	var res Doc
	if err := c.do(ctx, http.MethodPatch, c.endpoint(collection, id), fields, &res); err != nil {
		return nil, err
	}
	return unwrap(res), nil
}

// Create POSTs a new document and returns it as stored.
func (c *Client) Create(ctx context.Context, collection string, data any) (Doc, error) {
	endpoint := c.endpoint(collection)
	var res Doc
	if err := c.do(ctx, http.MethodPost, endpoint, data, &res); err != nil {
		return nil, err
	}
	doc := unwrap(res)
	if doc.ID() == "" {
		return nil, fmt.Errorf("cms: POST %s: response has no document id", endpoint)
	}
	return doc, nil
}
