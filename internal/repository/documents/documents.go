// Package documents implements the profile, post and comment repositories on
// top of a docstore.Store.
package documents

import "github.com/vedran77/board/internal/domain"

const (
	usersCollection    = "users"
	postsCollection    = "posts"
	commentsCollection = "comments"
)

// Field names as stored in documents.
const (
	fieldEmail        = "email"
	fieldDisplayName  = "displayName"
	fieldPhotoURL     = "photoURL"
	fieldTitle        = "title"
	fieldContent      = "content"
	fieldImageURL     = "imageUrl"
	fieldImagePath    = "imagePath"
	fieldAuthorID     = "authorId"
	fieldAuthorName   = "authorName"
	fieldAuthorAvatar = "authorAvatar"
	fieldCreatedAt    = "createdAt"
	fieldUpdatedAt    = "updatedAt"
)

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return domain.DefaultListLimit
	}
	return limit
}
