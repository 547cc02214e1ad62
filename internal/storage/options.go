package storage

import "context"

// Options are the per-call session flags.
type Options struct {
	// Caching makes reads consult and populate the cache and writes update it.
	Caching bool
	// Buffering routes writes through the write buffer.
	Buffering bool
}

type optionsKey struct{}

// WithOptions overrides the Interface defaults for calls made with ctx.
func WithOptions(ctx context.Context, o Options) context.Context {
	return context.WithValue(ctx, optionsKey{}, o)
}

// OptionsFrom returns the options carried by ctx, if any.
func OptionsFrom(ctx context.Context) (Options, bool) {
	o, ok := ctx.Value(optionsKey{}).(Options)
	return o, ok
}
