package docstore

import (
	"context"
	"log/slog"
	"sync"
)

// FetchFunc runs a query against a backend.
type FetchFunc func(ctx context.Context, q Query) ([]*Document, error)

// Listener receives full result sets of a query. Only the newest pending
// snapshot is kept when the consumer falls behind, so every received snapshot
// is newer than the previous one.
type Listener struct {
	updates chan []*Document
	done    chan struct{}
	once    sync.Once
}

func newListener() *Listener {
	return &Listener{
		updates: make(chan []*Document, 1),
		done:    make(chan struct{}),
	}
}

// Updates is closed once the listener stops.
func (l *Listener) Updates() <-chan []*Document {
	return l.updates
}

// Close stops the listener. It is safe to call more than once.
func (l *Listener) Close() {
	l.once.Do(func() { close(l.done) })
}

// offer replaces any pending value in ch with v. It returns false once done
// is closed.
func offer[T any](ch chan T, done <-chan struct{}, v T) bool {
	for {
		select {
		case <-done:
			return false
		default:
		}
		select {
		case ch <- v:
			return true
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

type watcher struct {
	kick chan struct{}
}

// Feed fans collection change notifications out to the listeners watching
// that collection.
type Feed struct {
	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
	logger   *slog.Logger
}

func NewFeed(logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		watchers: make(map[string]map[*watcher]struct{}),
		logger:   logger,
	}
}

// Publish marks collection as changed. Repeated publishes before a watcher
// refreshes coalesce into one refresh.
func (f *Feed) Publish(collection string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for w := range f.watchers[collection] {
		select {
		case w.kick <- struct{}{}:
		default:
		}
	}
}

// PublishAll marks every watched collection as changed, used after a change
// notification stream was interrupted.
func (f *Feed) PublishAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, set := range f.watchers {
		for w := range set {
			select {
			case w.kick <- struct{}{}:
			default:
			}
		}
	}
}

// Watchers returns the number of live listeners on collection.
func (f *Feed) Watchers(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers[collection])
}

// Watch registers a listener for q that refetches through fetch on every
// published change of q's collection.
func (f *Feed) Watch(ctx context.Context, q Query, fetch FetchFunc) (*Listener, error) {
	w := &watcher{kick: make(chan struct{}, 1)}

	// Register before the first fetch so a concurrent write is not missed.
	f.add(q.Collection, w)

	docs, err := fetch(ctx, q)
	if err != nil {
		f.remove(q.Collection, w)
		return nil, err
	}

	l := newListener()
	l.updates <- docs

	go f.run(ctx, q, fetch, w, l)
	return l, nil
}

func (f *Feed) run(ctx context.Context, q Query, fetch FetchFunc, w *watcher, l *Listener) {
	defer close(l.updates)
	defer f.remove(q.Collection, w)

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case <-w.kick:
			docs, err := fetch(ctx, q)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				f.logger.Warn("docstore: listener refresh failed",
					slog.String("collection", q.Collection),
					slog.String("error", err.Error()))
				continue
			}
			if !offer(l.updates, l.done, docs) {
				return
			}
		}
	}
}

func (f *Feed) add(collection string, w *watcher) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.watchers[collection]
	if !ok {
		set = make(map[*watcher]struct{})
		f.watchers[collection] = set
	}
	set[w] = struct{}{}
}

func (f *Feed) remove(collection string, w *watcher) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set := f.watchers[collection]
	delete(set, w)
	if len(set) == 0 {
		delete(f.watchers, collection)
	}
}

// Stream is a typed view over a Listener.
type Stream[T any] struct {
	updates  chan T
	listener *Listener
}

// MapStream converts every snapshot of l with fn.
func MapStream[T any](l *Listener, fn func([]*Document) T) *Stream[T] {
	s := &Stream[T]{
		updates:  make(chan T, 1),
		listener: l,
	}
	go func() {
		defer close(s.updates)
		for docs := range l.Updates() {
			if !offer(s.updates, l.done, fn(docs)) {
				return
			}
		}
	}()
	return s
}

// Updates is closed when the stream ends.
func (s *Stream[T]) Updates() <-chan T {
	return s.updates
}

func (s *Stream[T]) Close() {
	s.listener.Close()
}
