/*
Package bundle builds concatenated artifacts from graphs of source files and
caches the results so unchanged inputs are never reprocessed.

# Overview

A Bundle is the processed output of one root file plus everything that file
transitively requires. Requirements are declared by an external transformation
pipeline (the Evaluator); this package turns those declarations into an
ordered, deduplicated part list, concatenates the processed bodies, digests
the result, and persists it atomically. A second layer wraps the builder with
a two-tier, content-addressable cache so a "nothing changed" build costs one
raw digest and two store reads instead of a pipeline run.

# Core Architecture

The package has two cooperating halves:

  - The bundle builder: requirement expansion with cycle detection,
    body/source assembly, dependency snapshots, freshness checks, a durable
    JSON record format, and atomic (temp-then-rename) output files with
    optional gzip compression.
  - The cache layer: a digest-keyed first tier mapping (path, options,
    current raw digest) to the last built digest, and a hash-keyed second
    tier mapping that digest to the full build record. A cached record is
    reused only after its aggregate dependency digest is re-verified against
    the current filesystem.

External collaborators are consumed through small interfaces: the Evaluator
(transformation pipeline), the Resolver (logical to physical path mapping),
and the Store (persistent key-value storage). The package ships a search-path
Resolver, an in-memory Store, and a Badger-backed Store.

# Basic Usage

Creating an environment and building a bundle:

	env, err := bundle.NewEnvironment(bundle.Config{
	    Root:        "/srv/app",
	    SearchPaths: []string{"assets/js", "vendor/js"},
	    Version:     "1.0",
	}, evaluator)
	if err != nil {
	    log.Fatal(err)
	}

	asset, err := env.Resolve("application.js")
	if err != nil {
	    log.Fatal(err)
	}
	b := asset.(*bundle.Bundle)
	if err := b.WriteTo("public/application.js", bundle.WriteOptions{}); err != nil {
	    log.Fatal(err)
	}

Building through the cache:

	cached := bundle.NewCached(env, store)
	rec, err := cached.BuildHash("application.js", bundle.BuildOptions{Bundle: true})

A nil record with a nil error means the path did not resolve; staleness and
misses are invisible except as a transparent rebuild.

# Filesystems

All file access goes through afero.Fs. The default is the OS filesystem;
tests typically inject afero.NewMemMapFs() with WithFs.

# Immutability

A Cached view assumes the filesystem it wraps does not change for the life of
the instance. Raw stat and directory listings are memoized per path, and
every configuration-mutating call fails with ErrImmutable.
*/
package bundle
