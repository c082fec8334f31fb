package domain

import "time"

type Comment struct {
	ID           string     `json:"id"`
	PostID       string     `json:"post_id"`
	Content      string     `json:"content"`
	AuthorID     string     `json:"author_id"`
	AuthorName   string     `json:"author_name"`
	AuthorAvatar *string    `json:"author_avatar"`
	CreatedAt    *time.Time `json:"created_at"`
}

type CreateCommentInput struct {
	Content string `json:"content"`
}
