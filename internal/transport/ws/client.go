package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vedran77/board/internal/docstore"
	"github.com/vedran77/board/internal/domain"
	"github.com/vedran77/board/internal/session"
	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
	sendBufSize    = 64
	maxPostsLimit  = 100
)

// PostFeed opens live post queries.
type PostFeed interface {
	SubscribeAll(ctx context.Context, limit int) (*docstore.Stream[[]domain.Post], error)
	SubscribeByAuthor(ctx context.Context, authorID string, limit int) (*docstore.Stream[[]domain.Post], error)
}

// CommentFeed opens live comment queries.
type CommentFeed interface {
	Subscribe(ctx context.Context, postID string) (*docstore.Stream[[]domain.Comment], error)
}

// SubscriptionObserver is told when live subscriptions open. The returned
// func is called once the subscription ends.
type SubscriptionObserver interface {
	SubscriptionOpened(kind string) (closed func())
}

// Client is one WebSocket connection and the live subscriptions it holds.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	userID   string
	sess     *session.Context
	posts    PostFeed
	comments CommentFeed
	observer SubscriptionObserver
	logger   *slog.Logger

	mu   sync.Mutex
	subs map[string]func()

	send   chan []byte
	cancel context.CancelFunc
	ready  chan struct{}
}

func (c *Client) disconnect() {
	<-c.ready
	c.cancel()
}

// Run serves the connection until it closes or ctx ends.
func (c *Client) Run(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	close(c.ready)
	defer c.cancel()

	if !c.hub.add(c) {
		c.sess.Close()
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer c.hub.remove(c)

	c.conn.SetReadLimit(maxMessageSize)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readPump(ctx) })
	g.Go(func() error { return c.writePump(ctx) })
	g.Go(func() error { return c.watchSession(ctx) })
	err := g.Wait()

	c.closeSubscriptions()
	c.sess.Close()

	switch {
	case err == nil:
		c.conn.Close(websocket.StatusNormalClosure, "")
	case websocket.CloseStatus(err) != -1:
		c.logger.Debug("ws: client disconnected", slog.String("user_id", c.userID))
	case errors.Is(err, context.Canceled):
		c.conn.Close(websocket.StatusGoingAway, "")
	default:
		c.logger.Warn("ws: connection failed",
			slog.String("user_id", c.userID),
			slog.String("error", err.Error()))
		c.conn.Close(websocket.StatusInternalError, "")
	}
}

// readPump always returns a non-nil error so the other pumps stop with it.
func (c *Client) readPump(ctx context.Context) error {
	for {
		var event Event
		if err := wsjson.Read(ctx, c.conn, &event); err != nil {
			return err
		}
		c.handleEvent(ctx, &event)
	}
}

func (c *Client) writePump(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(wctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return err
			}

		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// watchSession pushes every session change to the client.
func (c *Client) watchSession(ctx context.Context) error {
	updates, stop := c.sess.Watch()
	defer stop()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			c.emit(ctx, EventTypeSessionState, snap)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) handleEvent(ctx context.Context, event *Event) {
	switch event.Type {
	case EventTypePostsSubscribe:
		var p PostsPayload
		if !c.decode(event, &p) {
			return
		}
		c.subscribePosts(ctx, p)

	case EventTypePostsUnsubscribe:
		var p PostsPayload
		if !c.decode(event, &p) {
			return
		}
		c.unsubscribe(postsKey(p.AuthorID))

	case EventTypeCommentsSubscribe:
		var p CommentsPayload
		if !c.decode(event, &p) {
			return
		}
		if p.PostID == "" {
			c.sendError(ctx, "INVALID_PAYLOAD", "post_id is required")
			return
		}
		c.subscribeComments(ctx, p)

	case EventTypeCommentsUnsubscribe:
		var p CommentsPayload
		if !c.decode(event, &p) {
			return
		}
		c.unsubscribe(commentsKey(p.PostID))

	case EventTypeSessionRefresh:
		if err := c.sess.RefreshProfile(ctx); err != nil {
			c.logger.Warn("ws: profile refresh failed",
				slog.String("user_id", c.userID),
				slog.String("error", err.Error()))
			c.sendError(ctx, "REFRESH_FAILED", "Could not refresh your profile")
		}

	case EventTypePing:
		c.emit(ctx, EventTypePong, nil)

	default:
		c.sendError(ctx, "UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

func (c *Client) decode(event *Event, v any) bool {
	if len(event.Payload) == 0 {
		return true
	}
	if err := json.Unmarshal(event.Payload, v); err != nil {
		c.sendError(context.Background(), "INVALID_PAYLOAD", "invalid "+event.Type+" payload")
		return false
	}
	return true
}

func (c *Client) subscribePosts(ctx context.Context, p PostsPayload) {
	limit := p.Limit
	if limit <= 0 || limit > maxPostsLimit {
		limit = 0
	}

	key := postsKey(p.AuthorID)
	c.subscribe(ctx, key, "posts", func(subCtx context.Context) (func(), error) {
		var (
			stream *docstore.Stream[[]domain.Post]
			err    error
		)
		if p.AuthorID == "" {
			stream, err = c.posts.SubscribeAll(subCtx, limit)
		} else {
			stream, err = c.posts.SubscribeByAuthor(subCtx, p.AuthorID, limit)
		}
		if err != nil {
			return nil, err
		}
		go func() {
			for posts := range stream.Updates() {
				c.emit(subCtx, EventTypePostsSnapshot, PostsSnapshotPayload{AuthorID: p.AuthorID, Posts: posts})
			}
		}()
		return stream.Close, nil
	})
}

func (c *Client) subscribeComments(ctx context.Context, p CommentsPayload) {
	c.subscribe(ctx, commentsKey(p.PostID), "comments", func(subCtx context.Context) (func(), error) {
		stream, err := c.comments.Subscribe(subCtx, p.PostID)
		if err != nil {
			return nil, err
		}
		go func() {
			for comments := range stream.Updates() {
				c.emit(subCtx, EventTypeCommentsSnapshot, CommentsSnapshotPayload{PostID: p.PostID, Comments: comments})
			}
		}()
		return stream.Close, nil
	})
}

// subscribe opens a subscription under key unless one is already open.
func (c *Client) subscribe(ctx context.Context, key, kind string, open func(context.Context) (func(), error)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subs[key]; ok {
		return
	}

	subCtx, cancel := context.WithCancel(ctx)
	closeStream, err := open(subCtx)
	if err != nil {
		cancel()
		c.logger.Warn("ws: subscribe failed",
			slog.String("user_id", c.userID),
			slog.String("key", key),
			slog.String("error", err.Error()))
		c.sendError(ctx, "SUBSCRIBE_FAILED", "Could not subscribe to "+kind)
		return
	}

	closed := func() {}
	if c.observer != nil {
		closed = c.observer.SubscriptionOpened(kind)
	}
	c.subs[key] = func() {
		cancel()
		closeStream()
		closed()
	}
}

func (c *Client) unsubscribe(key string) {
	c.mu.Lock()
	stop, ok := c.subs[key]
	delete(c.subs, key)
	c.mu.Unlock()

	if ok {
		stop()
	}
}

func (c *Client) closeSubscriptions() {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]func())
	c.mu.Unlock()

	for _, stop := range subs {
		stop()
	}
}

// Subscriptions returns the number of open subscriptions.
func (c *Client) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// emit queues an event, waiting while the send buffer is full.
func (c *Client) emit(ctx context.Context, eventType string, payload any) {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		c.logger.Error("ws: marshal event", slog.String("type", eventType), slog.String("error", err.Error()))
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-ctx.Done():
	}
}

func (c *Client) sendError(ctx context.Context, code, message string) {
	evt, err := NewEvent(EventTypeError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-ctx.Done():
	default:
	}
}
