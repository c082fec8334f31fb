package domain

import "time"

// DefaultListLimit bounds list and subscription result sets when the caller
// does not pass a positive limit.
const DefaultListLimit = 50

type Post struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	ImageURL     *string    `json:"image_url"`
	ImagePath    *string    `json:"-"`
	AuthorID     string     `json:"author_id"`
	AuthorName   string     `json:"author_name"`
	AuthorAvatar *string    `json:"author_avatar"`
	CreatedAt    *time.Time `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at"`
}

// ImageUpload references an image to attach to a post. Data takes precedence
// over URI; a URI equal to the post's current image URL is treated as
// unchanged.
type ImageUpload struct {
	URI         string
	Data        []byte
	ContentType string
}

// StoredImage is an uploaded image. Path is the canonical storage key; URL is
// derived from it and only used for display.
type StoredImage struct {
	URL  string
	Path string
}

type CreatePostInput struct {
	Title   string
	Content string
	Image   *ImageUpload
}

// UpdatePostInput carries a partial update. Nil fields are left untouched.
type UpdatePostInput struct {
	Title       *string
	Content     *string
	Image       *ImageUpload
	RemoveImage bool
}
