package domain

import (
	"fmt"
	"strings"
)

type Image struct {
	ID        string   `json:"_id"`
	URL       string   `json:"url"`
	Path      string   `json:"path,omitempty"`
	Category  string   `json:"category"`
	Anime     *string  `json:"anime"`
	NSFW      bool     `json:"nsfw"`
	Character *string  `json:"character"`
	Tags      []string `json:"tags"`
}

type ImageCreate struct {
	URL       string   `json:"url"`
	Category  string   `json:"category"`
	Anime     *string  `json:"anime"`
	NSFW      bool     `json:"nsfw"`
	Character *string  `json:"character"`
	Tags      []string `json:"tags"`
}

// ImageUpdate carries only the fields the caller set.
type ImageUpdate struct {
	URL       *string   `json:"url"`
	Category  *string   `json:"category"`
	Anime     *string   `json:"anime"`
	NSFW      *bool     `json:"nsfw"`
	Character *string   `json:"character"`
	Tags      *[]string `json:"tags"`

	// Path is filled by the service when URL triggers a new download.
	Path *string `json:"-"`
}

func (u ImageUpdate) IsEmpty() bool {
	return u.URL == nil && u.Category == nil && u.Anime == nil &&
		u.NSFW == nil && u.Character == nil && u.Tags == nil
}

// ImageFilter narrows image queries. Zero values mean "no constraint" except
// NSFW, which is applied when NSFWSet is true.
type ImageFilter struct {
	Category  string
	Anime     string
	Character string
	Tags      []string
	NSFW      bool
	NSFWSet   bool
}

// HasAny reports whether the filter constrains the result at all.
func (f ImageFilter) HasAny() bool {
	return (f.NSFWSet && f.NSFW) || f.Category != "" || f.Anime != "" ||
		f.Character != "" || len(f.Tags) > 0
}

// ParseTags splits a comma separated tag list, dropping blanks.
func ParseTags(raw string) []string {
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(tag); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

const (
	DefaultPage     = 1
	DefaultPageSize = 5
)

type PageRequest struct {
	Page int64
	Size int64
}

func (p PageRequest) Validate() error {
	if p.Page < 1 {
		return fmt.Errorf("%w: page must be >= 1", ErrInvalidInput)
	}
	if p.Size < 1 {
		return fmt.Errorf("%w: size must be >= 1", ErrInvalidInput)
	}
	return nil
}

func (p PageRequest) Skip() int64 {
	return (p.Page - 1) * p.Size
}

type ImagePage struct {
	Page       int64   `json:"page"`
	Size       int64   `json:"size"`
	Total      int64   `json:"total"`
	TotalPages int64   `json:"total_pages"`
	Images     []Image `json:"images"`
}

// StoredImage is the result of ingesting a source image into local storage.
type StoredImage struct {
	// Path is relative to the storage root: "<category>/<file>".
	Path string
}
