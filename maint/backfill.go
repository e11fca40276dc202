package maint

import (
	"context"
	"database/sql"
	"fmt"
)

const categoriesPath = "categories"

type postCategory struct {
	postID     int64
	categoryID int64
}

// LinkBlogCategories returns a task that copies each blog post's legacy
// category_id into the blog_posts_rels relationship table. Posts that are
// already linked are skipped, so the task can be rerun safely.
func LinkBlogCategories(db *sql.DB) Task {
	return Task{
		Name:  "link-blog-categories",
		Short: "Create blog_posts_rels rows from blog_posts.category_id",
		Check: func(ctx context.Context) (bool, string, error) {
			for _, t := range []string{"blog_posts", "blog_posts_rels"} {
				if err := requireTable(ctx, db, t); err != nil {
					return false, "", err
				}
			}
			var missing int
			err := db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM blog_posts p
WHERE p.category_id IS NOT NULL
  AND NOT EXISTS (
    SELECT 1 FROM blog_posts_rels r
    WHERE r.parent_id = p.id AND r.path = ? AND r.categories_id = p.category_id
  )`, categoriesPath).Scan(&missing)
			if err != nil {
				return false, "", fmt.Errorf("count unlinked posts: %w", err)
			}
			return missing == 0, "every categorized post is already linked", nil
		},
		Action: func(ctx context.Context, r *Report) error {
			posts, err := categorizedPosts(ctx, db)
			if err != nil {
				return err
			}
			r.Note("Found %d posts with a category", len(posts))
			for _, p := range posts {
				linked, err := isLinked(ctx, db, p)
				if err != nil {
					r.Fail(fmt.Sprintf("post %d", p.postID), err)
					continue
				}
				if linked {
					r.Skip("Post %d already linked to category %d", p.postID, p.categoryID)
					continue
				}
				if r.DryRun {
					r.Skip("would link post %d to category %d", p.postID, p.categoryID)
					continue
				}
				_, err = db.ExecContext(ctx,
					`INSERT INTO blog_posts_rels ("order", parent_id, path, categories_id) VALUES (1, ?, ?, ?)`,
					p.postID, categoriesPath, p.categoryID)
				if err != nil {
					r.Fail(fmt.Sprintf("post %d", p.postID), err)
					continue
				}
				r.Success("Linked post %d to category %d", p.postID, p.categoryID)
			}

			var total int
			if err := db.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM blog_posts_rels WHERE path = ?`, categoriesPath).Scan(&total); err != nil {
				return fmt.Errorf("count relationships: %w", err)
			}
			r.Note("Total category relationships: %d", total)
			return nil
		},
	}
}

func categorizedPosts(ctx context.Context, db *sql.DB) ([]postCategory, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, category_id FROM blog_posts WHERE category_id IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()
	var out []postCategory
	for rows.Next() {
		var p postCategory
		if err := rows.Scan(&p.postID, &p.categoryID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func isLinked(ctx context.Context, db *sql.DB, p postCategory) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blog_posts_rels WHERE parent_id = ? AND path = ? AND categories_id = ?`,
		p.postID, categoriesPath, p.categoryID).Scan(&n)
	return n > 0, err
}
