package cvcweb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Project status values stored in portfolio_projects.status.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// ValidStatus reports whether s is a status the store accepts.
func ValidStatus(s string) bool {
	return s == StatusDraft || s == StatusPublished
}

// PortfolioProject is a case study row in the content store.
type PortfolioProject struct {
	ID                int64      `json:"id"`
	Title             string     `json:"title"`
	Slug              string     `json:"slug"`
	Category          string     `json:"category,omitempty"`
	ClientCategory    string     `json:"clientCategory,omitempty"`
	Description       string     `json:"description,omitempty"`
	Image             string     `json:"image,omitempty"`
	URL               string     `json:"url,omitempty"`
	Year              string     `json:"year,omitempty"`
	Tags              StringList `json:"tags"`
	Achievements      StringList `json:"achievements"`
	Technologies      StringList `json:"technologies"`
	Challenge         string     `json:"challenge,omitempty"`
	Solution          string     `json:"solution,omitempty"`
	Results           string     `json:"results,omitempty"`
	KeyFeatures       StringList `json:"keyFeatures,omitempty"`
	Testimonial       string     `json:"testimonial,omitempty"`
	TestimonialAuthor string     `json:"testimonialAuthor,omitempty"`
	TestimonialRole   string     `json:"testimonialRole,omitempty"`
	ClientName        string     `json:"clientName,omitempty"`
	WorkType          string     `json:"workType,omitempty"`
	Duration          string     `json:"duration,omitempty"`
	TeamSize          string     `json:"teamSize,omitempty"`
	Role              string     `json:"role,omitempty"`
	Featured          bool       `json:"featured"`
	Status            string     `json:"status"`
	PublishedAt       time.Time  `json:"publishedAt"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// BlogPost is a row in blog_posts. Published posts feed the sitemap and the feed.
type BlogPost struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Slug            string     `json:"slug"`
	Excerpt         string     `json:"excerpt,omitempty"`
	Content         string     `json:"content"`
	Author          string     `json:"author,omitempty"`
	Category        string     `json:"category,omitempty"`
	FeaturedImage   string     `json:"featuredImage,omitempty"`
	MetaDescription string     `json:"metaDescription,omitempty"`
	Tags            StringList `json:"tags"`
	Published       bool       `json:"published"`
	PublishedAt     time.Time  `json:"publishedAt"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Status reports the post's publish state using the project status values.
func (p BlogPost) Status() string {
	if p.Published {
		return StatusPublished
	}
	return StatusDraft
}

// StringList decodes either a JSON array of strings or a single
// comma-separated string. Pieces are trimmed and empty pieces dropped.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = SplitList(s)
		return nil
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = FilterEmpty(items)
		return nil
	}
	return fmt.Errorf("list must be a string or an array of strings, got %s", data)
}

// MarshalJSON always encodes an array, never null.
func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// String joins the list the way it is stored.
func (l StringList) String() string {
	return strings.Join(l, ",")
}
