package ws

import (
	"encoding/json"
	"time"

	"github.com/vedran77/board/internal/domain"
)

// Event types - Client → Server
const (
	EventTypePostsSubscribe      = "posts.subscribe"
	EventTypePostsUnsubscribe    = "posts.unsubscribe"
	EventTypeCommentsSubscribe   = "comments.subscribe"
	EventTypeCommentsUnsubscribe = "comments.unsubscribe"
	EventTypeSessionRefresh      = "session.refresh"
	EventTypePing                = "ping"
)

// Event types - Server → Client
const (
	EventTypePostsSnapshot    = "posts.snapshot"
	EventTypeCommentsSnapshot = "comments.snapshot"
	EventTypeSessionState     = "session.state"
	EventTypePong             = "pong"
	EventTypeError            = "error"
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

// PostsPayload selects the whole board, or one author's posts when AuthorID
// is set.
type PostsPayload struct {
	AuthorID string `json:"author_id,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type CommentsPayload struct {
	PostID string `json:"post_id"`
}

// --- Server → Client payloads ---

type PostsSnapshotPayload struct {
	AuthorID string        `json:"author_id,omitempty"`
	Posts    []domain.Post `json:"posts"`
}

type CommentsSnapshotPayload struct {
	PostID   string           `json:"post_id"`
	Comments []domain.Comment `json:"comments"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, payload any) (*Event, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	return &Event{
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}

func postsKey(authorID string) string {
	if authorID == "" {
		return "posts:*"
	}
	return "posts:" + authorID
}

func commentsKey(postID string) string {
	return "comments:" + postID
}
