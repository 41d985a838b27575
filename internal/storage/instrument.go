package storage

import (
	"context"
	"time"

	"inspiro/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

type instrumented struct {
	Host
}

// Instrument wraps h with latency metrics and tracing spans.
func Instrument(h Host) Host {
	return &instrumented{Host: h}
}

func (i *instrumented) Upload(ctx context.Context, u Upload) (asset Asset, err error) {
	span, ctx := observability.NewSpan(ctx, "image_host.upload",
		attribute.String("image_host", i.Name()),
		attribute.String("folder", u.Folder),
		attribute.Int("bytes", len(u.Data)),
	)
	start := time.Now()
	defer func() {
		observability.ObserveImageHost(i.Name(), "upload", start, err)
		span.End(err)
	}()
	return i.Host.Upload(ctx, u)
}

func (i *instrumented) Delete(ctx context.Context, id string) (err error) {
	span, ctx := observability.NewSpan(ctx, "image_host.delete",
		attribute.String("image_host", i.Name()),
		attribute.String("asset_id", id),
	)
	start := time.Now()
	defer func() {
		observability.ObserveImageHost(i.Name(), "delete", start, IgnoreNotFound(err))
		span.End(IgnoreNotFound(err))
	}()
	return i.Host.Delete(ctx, id)
}

func (i *instrumented) Unwrap() Host { return i.Host }

// LocalRoot returns the directory served by a disk host, looking through
// instrumentation wrappers.
func LocalRoot(h Host) (string, bool) {
	for h != nil {
		if d, ok := h.(interface{ Root() string }); ok {
			return d.Root(), true
		}
		u, ok := h.(interface{ Unwrap() Host })
		if !ok {
			return "", false
		}
		h = u.Unwrap()
	}
	return "", false
}
