package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DiskHost keeps assets on the local filesystem. The API serves the root
// directory under /media.
type DiskHost struct {
	root    string
	baseURL string
}

// NewDiskHost creates root if needed.
func NewDiskHost(root, baseURL string) (*DiskHost, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskHost{root: root, baseURL: baseURL}, nil
}

func (h *DiskHost) Name() string { return "disk" }

// Root returns the directory files are written to.
func (h *DiskHost) Root() string { return h.root }

func (h *DiskHost) Upload(_ context.Context, u Upload) (Asset, error) {
	id, err := newAssetID(u.Folder)
	if err != nil {
		return Asset{}, err
	}
	ext := extensionFor(u)
	target := filepath.Join(h.root, filepath.FromSlash(id)+"."+ext)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Asset{}, fmt.Errorf("create folder: %w", err)
	}
	if err := os.WriteFile(target, u.Data, 0o644); err != nil {
		return Asset{}, fmt.Errorf("write asset: %w", err)
	}
	return Asset{URL: publicURL(h.baseURL, id, ext), ID: id}, nil
}

func (h *DiskHost) Delete(_ context.Context, id string) error {
	if err := ValidateAssetID(id); err != nil {
		return err
	}
	matches, err := filepath.Glob(filepath.Join(h.root, filepath.FromSlash(id)+".*"))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return ErrAssetNotFound
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove asset: %w", err)
		}
	}
	return nil
}
