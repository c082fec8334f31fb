// Package media stores post images and resolves their public URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/board/internal/blobstore"
	"github.com/vedran77/board/internal/domain"
)

const (
	DefaultContentType = "image/jpeg"
	DefaultMaxBytes    = 10 << 20
)

var (
	ErrEmptyImage    = errors.New("image has no data")
	ErrImageTooLarge = errors.New("image exceeds size limit")
	ErrFetchFailed   = errors.New("image fetch failed")
)

// Observer is notified of upload and delete outcomes.
type Observer interface {
	RecordImageUpload(err error)
	RecordImageDelete(err error)
}

type Uploader struct {
	blobs    blobstore.Store
	baseURL  string
	client   *http.Client
	maxBytes int64
	observer Observer
	newID    func() (uuid.UUID, error)
	now      func() time.Time
}

type Option func(*Uploader)

// WithHTTPClient sets the client used to fetch images given by URI.
func WithHTTPClient(c *http.Client) Option {
	return func(u *Uploader) { u.client = c }
}

func WithMaxBytes(n int64) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.maxBytes = n
		}
	}
}

func WithObserver(o Observer) Option {
	return func(u *Uploader) { u.observer = o }
}

// NewUploader stores images in blobs. Public URLs are baseURL + "/" + path.
func NewUploader(blobs blobstore.Store, baseURL string, opts ...Option) *Uploader {
	u := &Uploader{
		blobs:    blobs,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   http.DefaultClient,
		maxBytes: DefaultMaxBytes,
		newID:    uuid.NewRandom,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload stores image under posts/{ownerID}/{id} and returns its URL and
// path.
func (u *Uploader) Upload(ctx context.Context, ownerID string, image *domain.ImageUpload) (*domain.StoredImage, error) {
	stored, err := u.upload(ctx, ownerID, image)
	if u.observer != nil {
		u.observer.RecordImageUpload(err)
	}
	return stored, err
}

func (u *Uploader) upload(ctx context.Context, ownerID string, image *domain.ImageUpload) (*domain.StoredImage, error) {
	data, declared := image.Data, image.ContentType
	if len(data) == 0 {
		if image.URI == "" {
			return nil, ErrEmptyImage
		}
		fetched, fetchedType, err := u.fetch(ctx, image.URI)
		if err != nil {
			return nil, err
		}
		data = fetched
		if declared == "" {
			declared = fetchedType
		}
	}
	if int64(len(data)) > u.maxBytes {
		return nil, ErrImageTooLarge
	}

	path := ObjectPath(ownerID, u.generateID())
	if err := u.blobs.Put(ctx, path, data, contentType(declared, data)); err != nil {
		return nil, fmt.Errorf("storing image: %w", err)
	}

	return &domain.StoredImage{URL: u.URL(path), Path: path}, nil
}

// Delete removes a stored image by path.
func (u *Uploader) Delete(ctx context.Context, path string) error {
	err := u.blobs.Delete(ctx, path)
	if u.observer != nil {
		u.observer.RecordImageDelete(err)
	}
	return err
}

func (u *Uploader) URL(path string) string {
	return u.baseURL + "/" + path
}

// ObjectPath is the storage path of an image owned by ownerID.
func ObjectPath(ownerID, id string) string {
	return "posts/" + ownerID + "/" + id
}

// generateID falls back to the millisecond clock when no random UUID can be
// generated.
func (u *Uploader) generateID() string {
	id, err := u.newID()
	if err != nil {
		return strconv.FormatInt(u.now().UnixMilli(), 10)
	}
	return id.String()
}

func (u *Uploader) fetch(ctx context.Context, uri string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", &domain.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, u.maxBytes+1))
	if err != nil {
		return nil, "", &domain.NetworkError{Err: err}
	}
	if int64(len(data)) > u.maxBytes {
		return nil, "", ErrImageTooLarge
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// contentType prefers the declared type, then the sniffed one, then
// DefaultContentType.
func contentType(declared string, data []byte) string {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	sniffed := http.DetectContentType(data)
	if mt, _, err := mime.ParseMediaType(sniffed); err == nil && strings.HasPrefix(mt, "image/") {
		return mt
	}
	return DefaultContentType
}
