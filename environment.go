package bundle

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Config carries the process-wide settings that influence builds and cache
// keys. It is threaded explicitly into every key constructor; nothing in
// this package reads ambient global state.
type Config struct {
	// Root anchors root-relative paths in serialized records.
	Root string

	// SearchPaths are the directories, in priority order, consulted when
	// resolving a logical path. Relative entries are joined to Root.
	SearchPaths []string

	// Version is an environment version string; bumping it invalidates
	// every cache entry.
	Version string
}

// Environment owns the collaborators a build needs: the filesystem, the
// transformation pipeline, path resolution, and the raw file accessor.
// Resolving a path always yields a fresh Bundle, so every build observes
// the filesystem as it stands; memoized builds live behind Cached.
type Environment struct {
	fs         afero.Fs
	log        *zap.Logger
	hashFunc   HashFunc
	config     Config
	evaluator  Evaluator
	resolver   Resolver
	processors map[string][]Processor
	accessor   *FileAccessor
}

// NewEnvironment creates an environment around the given configuration and
// transformation pipeline. It uses the OS filesystem, a no-op logger, and a
// search-path resolver unless overridden with options.
func NewEnvironment(config Config, evaluator Evaluator, options ...Option) (*Environment, error) {
	if evaluator == nil {
		return nil, errors.New("evaluator is required")
	}

	env := &Environment{
		fs:         afero.NewOsFs(),
		log:        zap.NewNop(),
		hashFunc:   defaultHashFunc,
		config:     config,
		evaluator:  evaluator,
		processors: make(map[string][]Processor),
	}
	env.config.SearchPaths = append([]string(nil), config.SearchPaths...)
	if env.config.Root == "" {
		env.config.Root = "."
	}

	// Apply options
	for _, option := range options {
		option(env)
	}

	env.accessor = newFileAccessor(env.fs, env.hashFunc)
	if env.resolver == nil {
		env.resolver = &searchResolver{env: env}
	}

	return env, nil
}

// Accessor returns the environment's raw file accessor.
func (e *Environment) Accessor() *FileAccessor {
	return e.accessor
}

// Config returns a copy of the environment's configuration.
func (e *Environment) Config() Config {
	c := e.config
	c.SearchPaths = append([]string(nil), e.config.SearchPaths...)
	return c
}

// SetVersion replaces the environment version.
func (e *Environment) SetVersion(version string) error {
	e.config.Version = version
	return nil
}

// AppendSearchPath adds a directory to the end of the search path list.
func (e *Environment) AppendSearchPath(dir string) error {
	e.config.SearchPaths = append(e.config.SearchPaths, dir)
	return nil
}

// Resolve maps a logical or physical path to an Asset.
func (e *Environment) Resolve(path string) (Asset, error) {
	return e.resolver.Resolve(path)
}

// BuildOptions selects how a path is built. Options participate in cache
// keys, so two builds of the same path with different options never share
// an entry.
type BuildOptions struct {
	// Bundle controls whether required parts are concatenated into the
	// output. When false, only the file's own processed body is built.
	Bundle bool
}

// canonical returns the stable key form of the options.
func (o BuildOptions) canonical() string {
	return "bundle=" + strconv.FormatBool(o.Bundle)
}

// BuildRecord is the underlying, uncached build delegate: it resolves path,
// builds the bundle, and serializes it. A path that does not resolve yields
// (nil, nil); absence is an expected outcome, not an error.
func (e *Environment) BuildRecord(path string, opts BuildOptions) (*Record, error) {
	asset, err := e.Resolve(path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	b, ok := asset.(*Bundle)
	if !ok {
		return nil, fmt.Errorf("asset %s is not buildable", path)
	}

	e.log.Debug("building bundle",
		zap.String("path", path),
		zap.Bool("bundle", opts.Bundle))

	return b.record(opts.Bundle)
}

// dependencyDigest digests the current raw content digests of paths, in
// order. It is the aggregate the cache layer verifies before trusting a
// stored record. A missing file contributes an empty digest, mirroring how
// absent dependencies are snapshotted.
func (e *Environment) dependencyDigest(paths []string) (string, error) {
	h := e.hashFunc()
	for _, p := range paths {
		d, err := e.accessor.ContentDigest(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		h.Write([]byte(d))
	}
	return hexSum(h), nil
}

// absPath anchors a possibly root-relative path at the environment root.
func (e *Environment) absPath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(e.config.Root, path)
}

// relPath returns path relative to the environment root when it lies under
// it, otherwise the path unchanged.
func (e *Environment) relPath(path string) string {
	rel, err := filepath.Rel(e.config.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// searchResolver resolves logical paths against the configured search
// paths, falling back to root-relative and absolute physical paths.
type searchResolver struct {
	env *Environment
}

// Resolve implements Resolver.
func (r *searchResolver) Resolve(path string) (Asset, error) {
	e := r.env

	if !filepath.IsAbs(path) {
		for _, dir := range e.config.SearchPaths {
			cand := filepath.Join(e.absPath(dir), path)
			if isFile(e.fs, cand) {
				return newBundle(e, cand, path), nil
			}
		}
	}

	abs := e.absPath(path)
	if isFile(e.fs, abs) {
		return newBundle(e, abs, e.relPath(abs)), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
}

// isFile reports whether path exists and is a regular file.
func isFile(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	return err == nil && !info.IsDir()
}

// contentTypeOf maps a path to its content type tag.
func contentTypeOf(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".js", ".mjs":
		return "application/javascript"
	case ".css":
		return "text/css"
	case ".html", ".htm":
		return "text/html"
	case ".svg":
		return "image/svg+xml"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.Index(t, ";"); i >= 0 {
			t = strings.TrimSpace(t[:i])
		}
		return t
	}
	return "application/octet-stream"
}
