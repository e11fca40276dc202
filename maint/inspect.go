package maint

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/craigvc/cvcwebsolutions-sub003/cms"
)

// ListSpec selects what ListDocs prints.
type ListSpec struct {
	Fields []string
	Sort   string
	Limit  int // zero reads the whole collection
}

// ListDocs returns a read-only task that prints the projected fields of
// each document in a collection.
func ListDocs(c CMS, collection string, ls ListSpec) Task {
	return Task{
		Name:  "list " + collection,
		Short: "List " + collection + " documents",
		Action: func(ctx context.Context, r *Report) error {
			var (
				docs  []cms.Doc
				total int
			)
			q := cms.Query{Sort: ls.Sort, Limit: ls.Limit}
			if ls.Limit > 0 {
				res, err := c.Find(ctx, collection, q)
				if err != nil {
					return err
				}
				docs, total = res.Docs, res.TotalDocs
			} else {
				all, err := c.FindAll(ctx, collection, q)
				if err != nil {
					return err
				}
				docs, total = all, len(all)
			}
			if len(docs) == 0 {
				r.Note("No %s documents found", collection)
				return nil
			}
			r.Note("Total %s documents: %d", collection, total)
			for _, d := range docs {
				r.Line("%s", FormatProjection(d, ls.Fields))
			}
			return nil
		},
	}
}

// FindByTerms returns a read-only task that reports, for each term, the
// documents whose field contains it, or a no-matches line.
func FindByTerms(c CMS, collection, field string, terms []string) Task {
	return Task{
		Name:  "find " + collection,
		Short: fmt.Sprintf("Find %s documents by %s", collection, field),
		Action: func(ctx context.Context, r *Report) error {
			if len(terms) == 0 {
				return fmt.Errorf("no search terms given")
			}
			docs, err := c.FindAll(ctx, collection, cms.Query{})
			if err != nil {
				return err
			}
			for _, tm := range MatchTerms(docs, field, terms) {
				if len(tm.Matches) == 0 {
					r.Skip("%q: no matches found", tm.Term)
					continue
				}
				r.Success("%q: %d matches", tm.Term, len(tm.Matches))
				for _, d := range tm.Matches {
					r.Line("ID: %s - %s", d.ID(), d.String(field))
				}
			}
			return nil
		},
	}
}

// CategoryCount is one row of a category usage report.
type CategoryCount struct {
	Name  string
	Count int
}

// Uncategorized names documents with an empty category field.
const Uncategorized = "Uncategorized"

// CountCategories counts docs per category, most used first, ties by name.
// A relation expanded to an object is counted by its name.
func CountCategories(docs []cms.Doc, field string) []CategoryCount {
	counts := map[string]int{}
	for _, d := range docs {
		name := d.String(field)
		if obj := d.Object(field); obj != nil {
			name = obj.String("name")
		}
		if name == "" {
			name = Uncategorized
		}
		counts[name]++
	}
	out := make([]CategoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, CategoryCount{Name: name, Count: n})
	}
	slices.SortFunc(out, func(a, b CategoryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// CategoryUsage returns a read-only task that prints how many documents use each category.
func CategoryUsage(c CMS, collection, field string) Task {
	return Task{
		Name:  "category-usage " + collection,
		Short: fmt.Sprintf("Count %s documents per %s", collection, field),
		Action: func(ctx context.Context, r *Report) error {
			docs, err := c.FindAll(ctx, collection, cms.Query{Depth: 1})
			if err != nil {
				return err
			}
			counts := CountCategories(docs, field)
			for _, cc := range counts {
				r.Line("%s: %d items", cc.Name, cc.Count)
			}
			r.Note("Total unique categories: %d", len(counts))
			return nil
		},
	}
}

// ShowDocs returns a read-only task that prints every field of each document
// by id, keys sorted. An id the API does not know is a skip.
func ShowDocs(c CMS, collection string, ids []string) Task {
	return Task{
		Name:  "show " + collection,
		Short: "Print " + collection + " documents by id",
		Action: func(ctx context.Context, r *Report) error {
			if len(ids) == 0 {
				return fmt.Errorf("no ids given")
			}
			for _, id := range ids {
				d, err := c.FindByID(ctx, collection, id)
				switch {
				case errors.Is(err, cms.ErrNotFound):
					r.Skip("ID %s not found", id)
					continue
				case unreachable(err):
					return err
				case err != nil:
					r.Fail("ID "+id, err)
					continue
				}
				r.Success("%s", label(d))
				keys := slices.Sorted(maps.Keys(d))
				for _, k := range keys {
					r.Line("%s: %s", k, d.String(k))
				}
			}
			return nil
		},
	}
}
