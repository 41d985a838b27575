// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"inspiro/internal/storage"
)

// ImageHostStub is an in-memory storage.Host. Setting UploadErr or DeleteErr
// makes the corresponding call fail.
type ImageHostStub struct {
	mu        sync.Mutex
	items     map[string][]byte
	nextID    int
	UploadErr error
	DeleteErr error
	Deleted   []string
}

// NewImageHostStub creates an empty in-memory host.
func NewImageHostStub() *ImageHostStub {
	return &ImageHostStub{items: make(map[string][]byte)}
}

func (s *ImageHostStub) Name() string { return "stub" }

// Upload stores the data and returns a URL carrying the asset ID.
func (s *ImageHostStub) Upload(_ context.Context, u storage.Upload) (storage.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UploadErr != nil {
		return storage.Asset{}, s.UploadErr
	}
	s.nextID++
	id := fmt.Sprintf("%s/asset-%d", u.Folder, s.nextID)
	s.items[id] = u.Data
	return storage.Asset{
		URL: fmt.Sprintf("https://images.test/%s.jpg?id=%s", id, id),
		ID:  id,
	}, nil
}

// Delete removes the asset or returns storage.ErrAssetNotFound.
func (s *ImageHostStub) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	if _, ok := s.items[id]; !ok {
		return storage.ErrAssetNotFound
	}
	delete(s.items, id)
	s.Deleted = append(s.Deleted, id)
	return nil
}

// Put seeds an asset without going through Upload.
func (s *ImageHostStub) Put(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = []byte("seed")
	return fmt.Sprintf("https://images.test/%s.jpg?id=%s", id, id)
}

// Has reports whether id is stored.
func (s *ImageHostStub) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[id]
	return ok
}

// Len returns the number of stored assets.
func (s *ImageHostStub) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
