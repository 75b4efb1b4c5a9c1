package bundle

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// cacheFormatVersion is baked into every cache key. Bump it whenever the
// key tuple encoding or the record format changes.
const cacheFormatVersion = "1"

// Cache key namespaces for the two tiers.
const (
	digestNamespace = "asset-digest"
	hashNamespace   = "asset-hash"
)

// BuildFunc produces a bundle record for a path. A (nil, nil) return means
// the path cannot be built (for example, the source file vanished); it is
// an expected outcome, not an error.
type BuildFunc func(path string, opts BuildOptions) (*Record, error)

// Cached wraps an environment's builder with a two-tier, digest-keyed
// cache and memoizes raw filesystem queries per path.
//
// A Cached view is a frozen snapshot: the filesystem it wraps is assumed
// not to change for the life of the instance, which is what makes the
// memoization safe and the view cheap to share. Every
// configuration-mutating call fails with ErrImmutable.
type Cached struct {
	env   *Environment
	store Store
	build BuildFunc
	log   *zap.Logger

	mu      sync.Mutex
	stats   map[string]statEntry
	listing map[string]listingEntry
}

type statEntry struct {
	mtime time.Time
	err   error
}

type listingEntry struct {
	names []string
	err   error
}

// CachedOption configures a Cached view.
type CachedOption func(*Cached)

// WithBuildFunc replaces the underlying build delegate. The default is the
// environment's BuildRecord.
func WithBuildFunc(build BuildFunc) CachedOption {
	return func(c *Cached) {
		c.build = build
	}
}

// NewCached creates a cached view over env backed by store.
func NewCached(env *Environment, store Store, options ...CachedOption) *Cached {
	c := &Cached{
		env:     env,
		store:   store,
		build:   env.BuildRecord,
		log:     env.log,
		stats:   make(map[string]statEntry),
		listing: make(map[string]listingEntry),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// BuildHash builds path through the cache. The cheap first tier maps
// (path, options, current raw digest) to the last built digest; the second
// tier maps that digest to the full record. A candidate record is returned
// only after its aggregate dependency digest verifies against current file
// state; otherwise the underlying delegate rebuilds and both tiers are
// refreshed. The common "nothing changed" case costs one raw digest and
// two store reads, with no pipeline execution.
func (c *Cached) BuildHash(path string, opts BuildOptions) (*Record, error) {
	var digestKey string
	rawDigest, rdErr := c.rawDigest(path)
	if rdErr == nil {
		digestKey = c.digestKey(path, opts, rawDigest)
		if rec := c.lookup(digestKey, path, opts); rec != nil {
			return rec, nil
		}
	}

	rec, err := c.build(path, opts)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		c.log.Debug("build miss", zap.String("path", path))
		return nil, nil
	}

	if rdErr == nil {
		c.remember(digestKey, path, opts, rec)
	}
	return rec, nil
}

// lookup runs the two cheap tiers plus the staleness verification. A nil
// return means "rebuild"; staleness is frequent and non-exceptional.
func (c *Cached) lookup(digestKey, path string, opts BuildOptions) *Record {
	v, ok, err := c.store.Get(digestKey)
	if err != nil || !ok {
		return nil
	}
	builtDigest := string(v)

	data, ok, err := c.store.Get(c.hashKey(path, builtDigest, opts))
	if err != nil || !ok {
		return nil
	}
	rec, err := DecodeRecord(data)
	if err != nil {
		return nil
	}

	paths := rec.DependencyPaths()
	abs := make([]string, len(paths))
	for i, p := range paths {
		abs[i] = c.env.absPath(p)
	}
	current, err := c.env.dependencyDigest(abs)
	if err != nil || current != rec.DependencyDigest {
		c.log.Debug("cache stale", zap.String("path", path))
		return nil
	}

	c.log.Debug("cache hit", zap.String("path", path))
	return rec
}

// remember stores the fresh build under both tiers. Cache writes are best
// effort; a failed write costs a future rebuild, nothing more.
func (c *Cached) remember(digestKey, path string, opts BuildOptions, rec *Record) {
	if err := c.store.Set(digestKey, []byte(rec.Digest)); err != nil {
		c.log.Warn("storing digest key", zap.String("path", path), zap.Error(err))
		return
	}
	data, err := rec.Marshal()
	if err != nil {
		c.log.Warn("encoding record", zap.String("path", path), zap.Error(err))
		return
	}
	// Fetch, not Set: concurrent writers of the same built digest converge
	// on one stored value.
	_, err = c.store.Fetch(c.hashKey(path, rec.Digest, opts), func() ([]byte, error) {
		return data, nil
	})
	if err != nil {
		c.log.Warn("storing record", zap.String("path", path), zap.Error(err))
	}
}

// rawDigest resolves path and digests the backing file's current raw
// content.
func (c *Cached) rawDigest(path string) (string, error) {
	asset, err := c.env.Resolve(path)
	if err != nil {
		return "", err
	}
	return c.env.accessor.ContentDigest(asset.PhysicalPath())
}

func (c *Cached) digestKey(path string, opts BuildOptions, rawDigest string) string {
	cfg := c.env.config
	return fingerprint(digestNamespace,
		cacheFormatVersion,
		cfg.Version,
		path,
		opts.canonical(),
		rawDigest,
		strings.Join(cfg.SearchPaths, "\x00"),
	)
}

func (c *Cached) hashKey(path, builtDigest string, opts BuildOptions) string {
	cfg := c.env.config
	return fingerprint(hashNamespace,
		cacheFormatVersion,
		cfg.Version,
		path,
		builtDigest,
		opts.canonical(),
	)
}

// Stat returns the memoized modification time for path. The first access
// computes and stores; later accesses never re-touch the filesystem.
func (c *Cached) Stat(path string) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.stats[path]; ok {
		return e.mtime, e.err
	}
	mtime, err := c.env.accessor.Stat(path)
	c.stats[path] = statEntry{mtime: mtime, err: err}
	return mtime, err
}

// Entries returns the memoized, sorted directory listing for dir.
func (c *Cached) Entries(dir string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.listing[dir]; ok {
		return append([]string(nil), e.names...), e.err
	}
	names, err := c.env.accessor.Entries(dir)
	c.listing[dir] = listingEntry{names: names, err: err}
	return append([]string(nil), names...), err
}

// SetVersion always fails: a Cached view is a frozen snapshot.
func (c *Cached) SetVersion(string) error {
	return ErrImmutable
}

// AppendSearchPath always fails: a Cached view is a frozen snapshot.
func (c *Cached) AppendSearchPath(string) error {
	return ErrImmutable
}
