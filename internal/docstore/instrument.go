package docstore

import (
	"context"
	"time"
)

// Observer records the outcome of store operations.
type Observer interface {
	ObserveOperation(op string, elapsed time.Duration, err error)
}

type instrumented struct {
	next     Store
	observer Observer
}

// Instrument wraps s so every operation is reported to o.
func Instrument(s Store, o Observer) Store {
	return &instrumented{next: s, observer: o}
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	s.observer.ObserveOperation(op, time.Since(start), err)
}

func (s *instrumented) Get(ctx context.Context, path string) (doc *Document, err error) {
	defer func(start time.Time) { s.observe("get", start, err) }(time.Now())
	return s.next.Get(ctx, path)
}

func (s *instrumented) Add(ctx context.Context, collection string, data Fields) (id string, err error) {
	defer func(start time.Time) { s.observe("add", start, err) }(time.Now())
	return s.next.Add(ctx, collection, data)
}

func (s *instrumented) Set(ctx context.Context, path string, data Fields) (err error) {
	defer func(start time.Time) { s.observe("set", start, err) }(time.Now())
	return s.next.Set(ctx, path, data)
}

func (s *instrumented) Update(ctx context.Context, path string, data Fields) (err error) {
	defer func(start time.Time) { s.observe("update", start, err) }(time.Now())
	return s.next.Update(ctx, path, data)
}

func (s *instrumented) Delete(ctx context.Context, path string) (err error) {
	defer func(start time.Time) { s.observe("delete", start, err) }(time.Now())
	return s.next.Delete(ctx, path)
}

func (s *instrumented) Query(ctx context.Context, q Query) (docs []*Document, err error) {
	defer func(start time.Time) { s.observe("query", start, err) }(time.Now())
	return s.next.Query(ctx, q)
}

func (s *instrumented) Listen(ctx context.Context, q Query) (l *Listener, err error) {
	defer func(start time.Time) { s.observe("listen", start, err) }(time.Now())
	return s.next.Listen(ctx, q)
}
