package main

import (
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/craigvc/cvcwebsolutions-sub003/cms"
	"github.com/craigvc/cvcwebsolutions-sub003/maint"
)

const maintLong = `Run one content maintenance task.

The column tasks open the content database given by --content-db, where
portfolio_projects lives. link-blog-categories opens the CMS database given
by --db. API tasks talk to the CMS at --api-url.

Every task prints one line per item and a closing summary, and exits
non-zero only when it cannot run at all.

Tasks are not coordinated with each other or with a running server. Run one
task at a time, and stop the server (or accept its writes racing the task)
before running a database task against its store file.`

func newMaintCmd(cfg *cliConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maint",
		Short: "Inspect and repair CMS content",
		Long:  maintLong,
	}

	cmd.AddCommand(
		dbCmd(cfg, contentDB, "add-status-column", "Add portfolio_projects.status in --content-db and mark existing rows published",
			func(db *sql.DB) maint.Task { return maint.AddColumn(db, maint.StatusColumn) }),
		dbCmd(cfg, contentDB, "add-screenshot-column", "Add portfolio_projects.screenshot_url in --content-db",
			func(db *sql.DB) maint.Task { return maint.AddColumn(db, maint.ScreenshotColumn) }),
		dbCmd(cfg, cmsDB, "link-blog-categories", "Link blog posts to their category in blog_posts_rels in --db",
			maint.LinkBlogCategories),
	)

	cmd.AddCommand(
		apiCmd(cfg, "check-portfolio", "List portfolio projects", cobra.NoArgs,
			func(c maint.CMS, _ []string) maint.Task {
				return maint.ListDocs(c, maint.Portfolio, maint.ListSpec{
					Fields: []string{"id", "title", "year", "status", "clientCategory"},
				})
			}),
		apiCmd(cfg, "check-blog-order", "Show the newest blog posts in display order", cobra.NoArgs,
			func(c maint.CMS, _ []string) maint.Task {
				return maint.ListDocs(c, maint.BlogPosts, maint.ListSpec{
					Fields: []string{"id", "title", "publishedAt"},
					Sort:   "-publishedAt",
					Limit:  10,
				})
			}),
		apiCmd(cfg, "check-categories", "Count portfolio projects per client category", cobra.NoArgs,
			func(c maint.CMS, _ []string) maint.Task {
				return maint.CategoryUsage(c, maint.Portfolio, "clientCategory")
			}),
		targetCmd(cfg, "find <term>...", "Find documents whose field contains each term", cobra.MinimumNArgs(1),
			maint.Portfolio, "title", func(c maint.CMS, collection, field string, args []string) maint.Task {
				return maint.FindByTerms(c, collection, field, args)
			}),
		targetCmd(cfg, "show <id>...", "Print every field of documents by id", cobra.MinimumNArgs(1),
			maint.Portfolio, "", func(c maint.CMS, collection, _ string, args []string) maint.Task {
				return maint.ShowDocs(c, collection, args)
			}),
		newAttachMediaCmd(cfg),
		targetCmd(cfg, "delete <id>...", "Delete documents by id", cobra.MinimumNArgs(1),
			maint.Portfolio, "", func(c maint.CMS, collection, _ string, args []string) maint.Task {
				return maint.DeleteByID(c, collection, args)
			}),
		targetCmd(cfg, "delete-matching <term>...", "Delete documents whose title or slug contains any term", cobra.MinimumNArgs(1),
			maint.Portfolio, "", func(c maint.CMS, collection, _ string, args []string) maint.Task {
				return maint.DeleteMatching(c, collection, args)
			}),
		targetCmd(cfg, "dedupe", "Delete documents that repeat a field value, keeping the oldest", cobra.NoArgs,
			maint.Categories, "name", func(c maint.CMS, collection, field string, _ []string) maint.Task {
				return maint.DedupeByField(c, collection, field)
			}),
		apiCmd(cfg, "fix-media-urls", "Point media urls at the media prefix", cobra.NoArgs,
			func(c maint.CMS, _ []string) maint.Task { return maint.FixMediaURLs(c, cfg.MediaPrefix) }),
		apiCmd(cfg, "set-portfolio-dates", "Set published_at from each project's year", cobra.NoArgs,
			func(c maint.CMS, _ []string) maint.Task { return maint.SetPortfolioDates(c) }),
		apiCmd(cfg, "assign-categories", "Fill in missing client categories from category_assignments", cobra.NoArgs,
			func(c maint.CMS, _ []string) maint.Task { return maint.AssignClientCategories(c, cfg.assignments()) }),
	)
	return cmd
}

func runTask(cmd *cobra.Command, cfg *cliConfig, task maint.Task) error {
	rn := &maint.Runner{Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr(), DryRun: cfg.DryRun}
	if _, err := rn.Run(cmd.Context(), task); err != nil {
		return reportedError{err}
	}
	return nil
}

func contentDB(cfg *cliConfig) string { return cfg.ContentDB }
func cmsDB(cfg *cliConfig) string     { return cfg.DB }

func dbCmd(cfg *cliConfig, dbPath func(*cliConfig) string, use, short string, build func(*sql.DB) maint.Task) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := maint.OpenDB(dbPath(cfg))
			if err != nil {
				return err
			}
			defer db.Close()
			return runTask(cmd, cfg, build(db))
		},
	}
}

type apiBuilder func(c maint.CMS, args []string) maint.Task

func apiCmd(cfg *cliConfig, use, short string, args cobra.PositionalArgs, build apiBuilder) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		client, err := cms.New(cfg.APIURL)
		if err != nil {
			return err
		}
		return runTask(cmd, cfg, build(client, args))
	}
	return cmd
}

// targetCmd is an API command whose task takes a collection and, when
// field is non-empty, a document field, both overridable by flags.
func targetCmd(cfg *cliConfig, use, short string, args cobra.PositionalArgs, collection, field string,
	build func(c maint.CMS, collection, field string, args []string) maint.Task) *cobra.Command {
	var coll, fld string
	cmd := apiCmd(cfg, use, short, args, func(c maint.CMS, a []string) maint.Task {
		return build(c, coll, fld, a)
	})
	cmd.Flags().StringVar(&coll, "collection", collection, "CMS collection")
	fld = field
	if field != "" {
		cmd.Flags().StringVar(&fld, "field", field, "document field to match")
	}
	return cmd
}

func newAttachMediaCmd(cfg *cliConfig) *cobra.Command {
	var post, alt string
	cmd := &cobra.Command{
		Use:   "attach-media <file>",
		Short: "Create a media record for a file in the media directory and assign it to a blog post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := maint.MediaRecordFromFile(args[0], cfg.MediaPrefix, alt)
			if err != nil {
				return err
			}
			client, err := cms.New(cfg.APIURL)
			if err != nil {
				return err
			}
			return runTask(cmd, cfg, maint.AttachMedia(client, rec, post))
		},
	}
	cmd.Flags().StringVar(&post, "post", "", "slug of the blog post to use the image as featured image")
	cmd.Flags().StringVar(&alt, "alt", "", "alt text for the media record")
	return cmd
}
