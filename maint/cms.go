package maint

import (
	"context"
	"errors"
	"fmt"

	"github.com/craigvc/cvcwebsolutions-sub003/cms"
)

// Collections used by the API tasks.
const (
	Portfolio  = "portfolio"
	BlogPosts  = "blog-posts"
	Media      = "media"
	Categories = "categories"
)

// CMS is the part of *cms.Client the API tasks use.
type CMS interface {
	Find(ctx context.Context, collection string, q cms.Query) (*cms.FindResult, error)
	FindAll(ctx context.Context, collection string, q cms.Query) ([]cms.Doc, error)
	FindByID(ctx context.Context, collection, id string) (cms.Doc, error)
	Create(ctx context.Context, collection string, data any) (cms.Doc, error)
	Delete(ctx context.Context, collection, id string) error
	Update(ctx context.Context, collection, id string, fields map[string]any) (cms.Doc, error)
}

var _ CMS = (*cms.Client)(nil)

// unreachable reports whether err means the API could not be reached at all,
// as opposed to an HTTP error status for a single document.
func unreachable(err error) bool {
	if err == nil || errors.Is(err, cms.ErrNotFound) {
		return false
	}
	var apiErr *cms.APIError
	return !errors.As(err, &apiErr)
}

func label(d cms.Doc) string {
	title := d.String("title")
	if title == "" {
		title = d.String("filename")
	}
	if title == "" {
		return "ID " + d.ID()
	}
	return fmt.Sprintf("%s (ID: %s)", title, d.ID())
}

// deleteOne deletes a document and records the outcome. A 404 means the
// document is already gone and is a skip. Only an unreachable API is returned.
func deleteOne(ctx context.Context, r *Report, c CMS, collection, id, name string) error {
	if r.DryRun {
		r.Skip("would delete %s", name)
		return nil
	}
	err := c.Delete(ctx, collection, id)
	switch {
	case err == nil:
		r.Success("Deleted: %s", name)
	case errors.Is(err, cms.ErrNotFound):
		r.Skip("Already absent: %s", name)
	case unreachable(err):
		return err
	default:
		r.Fail("delete "+name, err)
	}
	return nil
}

// updateOne patches a document and records the outcome. Only an unreachable API is returned.
func updateOne(ctx context.Context, r *Report, c CMS, collection, id, name string, fields map[string]any, done string) error {
	if r.DryRun {
		r.Skip("would update %s: %v", name, fields)
		return nil
	}
	_, err := c.Update(ctx, collection, id, fields)
	if err != nil {
		if unreachable(err) {
			return err
		}
		r.Fail("update "+name, err)
		return nil
	}
	r.Success("%s: %s", done, name)
	return nil
}
