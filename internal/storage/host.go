// Package storage adapts external image hosts behind a small upload/delete
// contract. Hosted assets are addressed by an ID of the form
// "<folder>/<stem>" which is also embedded in the public URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Folders used by the application.
const (
	FolderPosts    = "posts_thumbnails"
	FolderProfiles = "profiles"
)

var (
	// ErrAssetNotFound is returned by Delete when nothing is stored under the ID.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrInvalidAssetID is returned when an ID or URL does not name an asset.
	ErrInvalidAssetID = errors.New("invalid asset id")
)

// Upload is a file handed to a Host.
type Upload struct {
	Folder      string
	Filename    string
	ContentType string
	Data        []byte
}

// Asset is a stored upload.
type Asset struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

// Host stores and removes images.
type Host interface {
	Upload(ctx context.Context, u Upload) (Asset, error)
	Delete(ctx context.Context, id string) error
	Name() string
}

// IgnoreNotFound treats an already removed asset as a successful removal.
func IgnoreNotFound(err error) error {
	if errors.Is(err, ErrAssetNotFound) {
		return nil
	}
	return err
}

// ParseAssetID extracts the asset ID from a hosted URL. The "id" query
// parameter wins; otherwise the last two path segments are used with the
// extension stripped.
func ParseAssetID(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidAssetID)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAssetID, err)
	}
	if id := u.Query().Get("id"); id != "" {
		if err := ValidateAssetID(id); err != nil {
			return "", err
		}
		return id, nil
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 {
		return "", fmt.Errorf("%w: %q has no folder", ErrInvalidAssetID, rawURL)
	}
	folder := segments[len(segments)-2]
	file := segments[len(segments)-1]
	stem := strings.TrimSuffix(file, path.Ext(file))
	id := folder + "/" + stem
	if err := ValidateAssetID(id); err != nil {
		return "", err
	}
	return id, nil
}

// ValidateAssetID checks that id is exactly "<folder>/<stem>" with no
// traversal components.
func ValidateAssetID(id string) error {
	folder, stem, ok := strings.Cut(id, "/")
	if !ok || folder == "" || stem == "" || strings.Contains(stem, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidAssetID, id)
	}
	for _, part := range []string{folder, stem} {
		if part == "." || part == ".." || strings.Contains(part, "\\") {
			return fmt.Errorf("%w: %q", ErrInvalidAssetID, id)
		}
	}
	return nil
}

func newAssetID(folder string) (string, error) {
	id := folder + "/" + uuid.NewString()
	if err := ValidateAssetID(id); err != nil {
		return "", err
	}
	return id, nil
}

func extensionFor(u Upload) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(u.Filename)), "."); ext != "" {
		return ext
	}
	switch u.ContentType {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	}
	if exts, _ := mime.ExtensionsByType(u.ContentType); len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}

func publicURL(base, id, ext string) string {
	return fmt.Sprintf("%s/%s.%s?id=%s", strings.TrimRight(base, "/"), id, ext, url.QueryEscape(id))
}
