package bundle

import (
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Option defines a function that configures an Environment.
type Option func(*Environment)

// WithFs sets a custom filesystem for the environment.
// This is primarily useful for testing with in-memory filesystems.
//
// Example:
//
//	env, err := bundle.NewEnvironment(cfg, ev, bundle.WithFs(afero.NewMemMapFs()))
func WithFs(fs afero.Fs) Option {
	return func(e *Environment) {
		e.fs = fs
	}
}

// WithLogger sets the logger for the environment. The default is a no-op
// logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Environment) {
		e.log = log
	}
}

// WithHashFunc sets a custom content digest function. The default is
// SHA-256.
//
// Note: changing the digest function invalidates existing cache entries and
// serialized records.
func WithHashFunc(hashFunc HashFunc) Option {
	return func(e *Environment) {
		e.hashFunc = hashFunc
	}
}

// WithResolver replaces the built-in search-path resolver.
func WithResolver(r Resolver) Option {
	return func(e *Environment) {
		e.resolver = r
	}
}

// WithBundleProcessors registers bundle-level processors for a content
// type. They run over the concatenated source, in registration order,
// after expansion.
func WithBundleProcessors(contentType string, processors ...Processor) Option {
	return func(e *Environment) {
		e.processors[contentType] = append(e.processors[contentType], processors...)
	}
}
