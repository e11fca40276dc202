package maint

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/craigvc/cvcwebsolutions-sub003/cms"
)

// MediaRecord is the metadata of a file already copied into the media
// directory, in the shape the media collection stores.
type MediaRecord struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Filesize int64  `json:"filesize"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	URL      string `json:"url"`
	Alt      string `json:"alt,omitempty"`
}

// MediaRecordFromFile describes the file at p. The url is prefix + base
// name. Width and height stay zero for files that are not a decodable image.
func MediaRecordFromFile(p, prefix, alt string) (MediaRecord, error) {
	if prefix == "" {
		prefix = DefaultMediaPrefix
	}
	f, err := os.Open(p)
	if err != nil {
		return MediaRecord{}, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return MediaRecord{}, err
	}
	if st.IsDir() {
		return MediaRecord{}, fmt.Errorf("%s is a directory", p)
	}
	name := filepath.Base(p)
	rec := MediaRecord{
		Filename: name,
		MimeType: mime.TypeByExtension(strings.ToLower(filepath.Ext(name))),
		Filesize: st.Size(),
		URL:      path.Join(prefix, name),
		Alt:      alt,
	}
	if rec.MimeType == "" {
		rec.MimeType = "application/octet-stream"
	}
	if cfg, _, err := image.DecodeConfig(f); err == nil {
		rec.Width, rec.Height = cfg.Width, cfg.Height
	}
	return rec, nil
}

// featuredImageID returns the media id a post points at, whether the
// relation came back as an id or expanded to an object.
func featuredImageID(post cms.Doc) string {
	if obj := post.Object("featuredImage"); obj != nil {
		return obj.ID()
	}
	return post.String("featuredImage")
}

// relationID sends numeric ids as numbers, the way the CMS stores them.
func relationID(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

// AttachMedia returns a task that makes sure a media document exists for
// rec and, when postSlug is set, that the blog post with that slug uses it
// as its featured image. An existing media document with the same filename
// is reused.
func AttachMedia(c CMS, rec MediaRecord, postSlug string) Task {
	return Task{
		Name:  "attach-media " + rec.Filename,
		Short: "Create a media record and assign it to a blog post",
		Action: func(ctx context.Context, r *Report) error {
			res, err := c.Find(ctx, Media, cms.Query{Limit: 1, Where: []cms.Where{cms.Equals("filename", rec.Filename)}})
			if err != nil {
				return err
			}
			var mediaID string
			switch {
			case len(res.Docs) > 0:
				mediaID = res.Docs[0].ID()
				r.Skip("Media record already exists: %s", label(res.Docs[0]))
			case r.DryRun:
				r.Skip("would create media record %s", rec.Filename)
			default:
				doc, err := c.Create(ctx, Media, rec)
				if unreachable(err) {
					return err
				}
				if err != nil {
					r.Fail("create media "+rec.Filename, err)
					return nil
				}
				mediaID = doc.ID()
				r.Success("Created media record: %s (ID: %s)", rec.Filename, mediaID)
			}
			if postSlug == "" {
				return nil
			}

			posts, err := c.Find(ctx, BlogPosts, cms.Query{Limit: 1, Where: []cms.Where{cms.Equals("slug", postSlug)}})
			if err != nil {
				return err
			}
			if len(posts.Docs) == 0 {
				r.Fail("post "+postSlug, errors.New("blog post not found"))
				return nil
			}
			post := posts.Docs[0]
			name := label(post)
			if mediaID == "" {
				r.Skip("would set featured image of %s", name)
				return nil
			}
			if featuredImageID(post) == mediaID {
				r.Skip("Featured image already set: %s", name)
				return nil
			}
			return updateOne(ctx, r, c, BlogPosts, post.ID(), name,
				map[string]any{"featuredImage": relationID(mediaID)}, "Assigned featured image")
		},
	}
}
