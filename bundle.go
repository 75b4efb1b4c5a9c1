package bundle

import (
	"bytes"
	"fmt"
	"time"

	"github.com/spf13/afero"
)

// Bundle is the concatenated, processed output of a root file plus all of
// its transitively required files. A Bundle lives for one build/serve cycle
// and is then discarded; durable state lives in Records and on-disk output
// files, never in the Bundle itself.
//
// Memoized fields (evaluation, parts, source, digest, length) are computed
// lazily and written once under a single-writer assumption. They are never
// invalidated within one instance's lifetime, even if the underlying files
// change later; Fresh answers whether a new build would differ.
type Bundle struct {
	env         *Environment
	path        string // physical path
	logical     string
	contentType string

	// evaluation snapshot, captured once at body-build time
	evalDone bool
	output   []byte
	required []string
	reqSelf  bool
	deps     []DependencyRecord

	// expansion
	partsDone bool
	parts     []Asset
	partRefs  []string // part physical paths from a decoded record

	// assembled output
	sourceDone bool
	source     []byte
	digest     string
	length     int
}

func newBundle(env *Environment, physical, logical string) *Bundle {
	return &Bundle{
		env:         env,
		path:        physical,
		logical:     logical,
		contentType: contentTypeOf(physical),
	}
}

// LogicalPath implements Asset.
func (b *Bundle) LogicalPath() string { return b.logical }

// PhysicalPath implements Asset.
func (b *Bundle) PhysicalPath() string { return b.path }

// ContentType implements Asset.
func (b *Bundle) ContentType() string { return b.contentType }

// evaluate runs the transformation pipeline over the bundle's own file and
// snapshots the dependency state. The raw bytes are read once; the digest
// memo is primed with them so no second read is needed.
func (b *Bundle) evaluate() error {
	if b.evalDone {
		return nil
	}

	raw, err := afero.ReadFile(b.env.fs, b.path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", b.path, err)
	}
	if _, err := b.env.accessor.ContentDigest(b.path, raw); err != nil {
		return fmt.Errorf("digesting %s: %w", b.path, err)
	}

	ev, err := b.env.evaluator.Evaluate(b.path, raw)
	if err != nil {
		return fmt.Errorf("evaluating %s: %w", b.path, err)
	}

	// Dependency snapshot, captured now at body-build time. The bundle's
	// own file is always tracked. A file missing at snapshot time is
	// recorded with a zero mtime and empty digest, meaning "depends on
	// this path being absent".
	depPaths := make([]string, 0, len(ev.DependencyPaths)+1)
	seen := make(map[string]bool, len(ev.DependencyPaths)+1)
	add := func(p string) {
		abs := b.env.absPath(p)
		if !seen[abs] {
			seen[abs] = true
			depPaths = append(depPaths, abs)
		}
	}
	add(b.path)
	for _, p := range ev.DependencyPaths {
		add(p)
	}

	deps := make([]DependencyRecord, 0, len(depPaths))
	for _, p := range depPaths {
		rec := DependencyRecord{Path: p}
		if mtime, err := b.env.accessor.Stat(p); err == nil {
			rec.Mtime = mtime
			if d, err := b.env.accessor.ContentDigest(p); err == nil {
				rec.Digest = d
			}
		}
		deps = append(deps, rec)
	}

	b.output = ev.Output
	b.required = append([]string(nil), ev.RequiredPaths...)
	b.reqSelf = ev.RequireSelf
	b.deps = deps
	b.evalDone = true
	return nil
}

// Body returns the bundle's own processed output, excluding any part's
// contribution. The returned slice is shared; callers must not mutate it.
func (b *Bundle) Body() ([]byte, error) {
	if err := b.evaluate(); err != nil {
		return nil, err
	}
	return b.output, nil
}

// DependencyRecords returns the snapshot of every raw file the pipeline
// touched while producing the body.
func (b *Bundle) DependencyRecords() ([]DependencyRecord, error) {
	if err := b.evaluate(); err != nil {
		return nil, err
	}
	return append([]DependencyRecord(nil), b.deps...), nil
}

// allDependencyRecords returns the dependency snapshot covering the whole
// bundle: every part contributes the raw files touched while its own body
// was produced, in part order, first occurrence winning. A decoded bundle
// already carries the aggregated set.
func (b *Bundle) allDependencyRecords() ([]DependencyRecord, error) {
	if b.partRefs != nil {
		return b.deps, nil
	}
	parts, err := b.Parts()
	if err != nil {
		return nil, err
	}

	var recs []DependencyRecord
	seen := make(map[string]bool)
	for _, p := range parts {
		pr, ok := p.(interface {
			DependencyRecords() ([]DependencyRecord, error)
		})
		if !ok {
			continue
		}
		rs, err := pr.DependencyRecords()
		if err != nil {
			return nil, err
		}
		for _, r := range rs {
			if !seen[r.Path] {
				seen[r.Path] = true
				recs = append(recs, r)
			}
		}
	}
	return recs, nil
}

// Mtime returns the maximum modification time across the bundle's
// dependency records. It is dependency time, not wall-clock time.
func (b *Bundle) Mtime() (time.Time, error) {
	recs, err := b.allDependencyRecords()
	if err != nil {
		return time.Time{}, err
	}
	var max time.Time
	for _, rec := range recs {
		if rec.Mtime.After(max) {
			max = rec.Mtime
		}
	}
	return max, nil
}

// Source returns the full concatenated output of all parts in order, after
// any bundle-level processors for the content type have run. Digest and
// length are computed alongside and memoized with it.
func (b *Bundle) Source() ([]byte, error) {
	if b.sourceDone {
		return b.source, nil
	}

	parts, err := b.Parts()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for _, p := range parts {
		body, err := p.Body()
		if err != nil {
			return nil, err
		}
		buf.Write(body)
	}

	out := buf.Bytes()
	for _, proc := range b.env.processors[b.contentType] {
		out, err = proc(b.path, out)
		if err != nil {
			return nil, fmt.Errorf("bundle processor for %s: %w", b.path, err)
		}
	}

	h := b.env.hashFunc()
	h.Write(out)

	b.source = out
	b.digest = hexSum(h)
	b.length = len(out)
	b.sourceDone = true
	return b.source, nil
}

// Digest returns the content digest of Source.
func (b *Bundle) Digest() (string, error) {
	if _, err := b.Source(); err != nil {
		return "", err
	}
	return b.digest, nil
}

// Length returns the byte length of Source.
func (b *Bundle) Length() (int, error) {
	if _, err := b.Source(); err != nil {
		return 0, err
	}
	return b.length, nil
}
