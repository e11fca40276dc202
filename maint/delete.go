package maint

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/craigvc/cvcwebsolutions-sub003/cms"
)

// DeleteByID returns a task that deletes known document ids in order.
// Deleting an id that is already gone is a skip, so reruns are harmless.
func DeleteByID(c CMS, collection string, ids []string) Task {
	return Task{
		Name:  "delete " + collection,
		Short: "Delete " + collection + " documents by id",
		Action: func(ctx context.Context, r *Report) error {
			if len(ids) == 0 {
				return fmt.Errorf("no ids given")
			}
			for _, id := range ids {
				if err := deleteOne(ctx, r, c, collection, id, "ID "+id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// DeleteMatching returns a task that deletes every document whose title
// or slug contains any of terms.
func DeleteMatching(c CMS, collection string, terms []string) Task {
	return Task{
		Name:  "delete-matching " + collection,
		Short: "Delete " + collection + " documents whose title or slug matches",
		Action: func(ctx context.Context, r *Report) error {
			if len(terms) == 0 {
				return fmt.Errorf("no search terms given")
			}
			docs, err := c.FindAll(ctx, collection, cms.Query{})
			if err != nil {
				return err
			}
			matches := MatchAny(docs, []string{"title", "slug"}, terms)
			if len(matches) == 0 {
				r.Note("No matching documents found to delete")
				return nil
			}
			r.Note("Found %d documents to delete", len(matches))
			for _, d := range matches {
				if err := deleteOne(ctx, r, c, collection, d.ID(), label(d)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// DuplicateGroup is a set of documents sharing one field value.
type DuplicateGroup struct {
	Value string
	Keep  cms.Doc
	Drop  []cms.Doc
}

// Duplicates groups docs by the lowercased, trimmed field value and keeps
// the lowest id in each group. Docs with an empty value are never grouped.
func Duplicates(docs []cms.Doc, field string) []DuplicateGroup {
	groups := map[string][]cms.Doc{}
	var order []string
	for _, d := range docs {
		v := strings.TrimSpace(d.Lower(field))
		if v == "" {
			continue
		}
		if _, ok := groups[v]; !ok {
			order = append(order, v)
		}
		groups[v] = append(groups[v], d)
	}
	var out []DuplicateGroup
	for _, v := range order {
		g := groups[v]
		if len(g) < 2 {
			continue
		}
		slices.SortStableFunc(g, func(a, b cms.Doc) int {
			return cmp.Compare(a.Int("id"), b.Int("id"))
		})
		out = append(out, DuplicateGroup{Value: v, Keep: g[0], Drop: g[1:]})
	}
	return out
}

// DedupeByField returns a task that deletes all but the oldest document of
// each group sharing a field value.
func DedupeByField(c CMS, collection, field string) Task {
	return Task{
		Name:  fmt.Sprintf("dedupe %s by %s", collection, field),
		Short: fmt.Sprintf("Delete %s documents with a duplicate %s", collection, field),
		Check: func(ctx context.Context) (bool, string, error) {
			docs, err := c.FindAll(ctx, collection, cms.Query{})
			if err != nil {
				return false, "", err
			}
			return len(Duplicates(docs, field)) == 0, "no duplicate " + field + " values", nil
		},
		Action: func(ctx context.Context, r *Report) error {
			docs, err := c.FindAll(ctx, collection, cms.Query{})
			if err != nil {
				return err
			}
			groups := Duplicates(docs, field)
			r.Note("Found %d duplicated %s values", len(groups), field)
			for _, g := range groups {
				r.Line("Keeping %s", label(g.Keep))
				for _, d := range g.Drop {
					if err := deleteOne(ctx, r, c, collection, d.ID(), label(d)); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}
