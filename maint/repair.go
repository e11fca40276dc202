package maint

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/craigvc/cvcwebsolutions-sub003/cms"
)

// DefaultMediaPrefix is where uploaded media is served from.
const DefaultMediaPrefix = "/media/"

// FixMediaURLs returns a task that points each media document's url at
// prefix + filename when it does not already.
func FixMediaURLs(c CMS, prefix string) Task {
	if prefix == "" {
		prefix = DefaultMediaPrefix
	}
	return Task{
		Name:  "fix-media-urls",
		Short: "Rewrite media urls to " + prefix + "<filename>",
		Action: func(ctx context.Context, r *Report) error {
			docs, err := c.FindAll(ctx, Media, cms.Query{})
			if err != nil {
				return err
			}
			r.Note("Found %d media documents", len(docs))
			for _, d := range docs {
				filename := d.String("filename")
				if filename == "" {
					r.Skip("%s has no filename", label(d))
					continue
				}
				want := prefix + filename
				if d.String("url") == want {
					r.Skip("%s already at %s", label(d), want)
					continue
				}
				if err := updateOne(ctx, r, c, Media, d.ID(), filename, map[string]any{"url": want}, "Updated url"); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// YearEnd returns the published_at value used for a project year.
func YearEnd(year string) string {
	return year + "-12-31T23:59:59.000Z"
}

// SetPortfolioDates returns a task that sets each portfolio project's
// published_at to the end of its year so listings sort by year.
func SetPortfolioDates(c CMS) Task {
	return Task{
		Name:  "set-portfolio-dates",
		Short: "Set published_at from each project's year",
		Action: func(ctx context.Context, r *Report) error {
			docs, err := c.FindAll(ctx, Portfolio, cms.Query{})
			if err != nil {
				return err
			}
			r.Note("Found %d portfolio projects", len(docs))
			for _, d := range docs {
				year := strings.TrimSpace(d.String("year"))
				if year == "" {
					r.Skip("%s has no year", label(d))
					continue
				}
				if !yearPattern.MatchString(year) {
					r.Fail(label(d), fmt.Errorf("invalid year %q", year))
					continue
				}
				want := YearEnd(year)
				if d.String("published_at") == want {
					r.Skip("%s already dated %s", label(d), want)
					continue
				}
				if err := updateOne(ctx, r, c, Portfolio, d.ID(), label(d), map[string]any{"published_at": want}, "Set date "+want); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func missingCategory(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, "none")
}

// AssignClientCategories returns a task that fills in clientCategory for
// projects that have none, using assignments keyed by project title.
func AssignClientCategories(c CMS, assignments map[string]string) Task {
	return Task{
		Name:  "assign-categories",
		Short: "Fill in missing client categories by title",
		Action: func(ctx context.Context, r *Report) error {
			if len(assignments) == 0 {
				return fmt.Errorf("no category assignments configured")
			}
			docs, err := c.FindAll(ctx, Portfolio, cms.Query{})
			if err != nil {
				return err
			}
			var todo []cms.Doc
			for _, d := range docs {
				if !missingCategory(d.String("clientCategory")) {
					continue
				}
				if _, ok := assignments[d.String("title")]; ok {
					todo = append(todo, d)
				}
			}
			if len(todo) == 0 {
				r.Note("No projects need a client category")
				return nil
			}
			r.Note("Found %d projects to update", len(todo))
			for _, d := range todo {
				cat := assignments[d.String("title")]
				if err := updateOne(ctx, r, c, Portfolio, d.ID(), label(d), map[string]any{"clientCategory": cat}, "Set "+cat); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
