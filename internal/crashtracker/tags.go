package crashtracker

import (
	"context"
	"maps"
)

type tagsContextKey struct{}

// WithTags returns a context whose reports carry tags on top of the ones already in ctx.
func WithTags(ctx context.Context, tags map[string]string) context.Context {
	merged := TagsFromContext(ctx)
	if merged == nil {
		merged = make(map[string]string, len(tags))
	}
	maps.Copy(merged, tags)
	return context.WithValue(ctx, tagsContextKey{}, merged)
}

// TagsFromContext returns a copy of the tags stored in ctx, or nil.
func TagsFromContext(ctx context.Context) map[string]string {
	tags, ok := ctx.Value(tagsContextKey{}).(map[string]string)
	if !ok {
		return nil
	}
	return maps.Clone(tags)
}
