package di

import "context"

// Option is a function that configures the dependency injection container.
type Option func(*options)

// WithContext sets the context handed to constructors. Carry the logger on it
// (logger.WithContext) so providers log through zerolog.Ctx.
func WithContext(ctx context.Context) Option {
	return func(opts *options) {
		opts.ctx = ctx
	}
}

// WithProviders adds constructor functions to the dependency injection container.
// Providers can declare dependencies as function parameters, which will be
// automatically resolved by the container. A provider for a type the core set
// already provides makes New fail.
//
// Example:
//
//	WithProviders(
//	    func() *s3.Client { return s3.NewFromConfig(cfg) },
//	)
func WithProviders(providers ...any) Option {
	return func(opts *options) {
		opts.providers = append(opts.providers, providers...)
	}
}

type options struct {
	ctx       context.Context
	providers []any
}
