package i18n

import (
	"context"

	"golang.org/x/text/language"
)

type ctxKey struct{}

// WithTag stores the request locale.
func WithTag(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, ctxKey{}, tag)
}

// FromContext returns the request locale, English when none was set.
func FromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(ctxKey{}).(language.Tag); ok {
		return tag
	}
	return language.English
}
