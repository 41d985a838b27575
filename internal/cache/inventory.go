package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	browseVersionKey = "posts:browse:version"
	browseKeyFormat  = "posts:browse:v%d:%d:%d"
)

const (
	BrowseTTL = 30 * time.Second
)

// BrowseKey names one page of the public browse feed. The key embeds the feed
// version so a single INCR invalidates every cached page.
func BrowseKey(ctx context.Context, limit, offset int) string {
	var version int64
	if client != nil {
		v, err := client.Get(ctx, browseVersionKey).Int64()
		if err == nil {
			version = v
		}
	}
	return fmt.Sprintf(browseKeyFormat, version, limit, offset)
}

// InvalidateBrowse retires every cached browse page.
func InvalidateBrowse(ctx context.Context) {
	if client != nil {
		client.Incr(ctx, browseVersionKey)
	}
}
