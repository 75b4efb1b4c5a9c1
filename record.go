package bundle

import (
	"encoding/json"
	"fmt"
	"time"
)

// selfPart is the sentinel standing in for the bundle's own path in
// serialized part lists, so records stay valid when a tree is relocated.
const selfPart = "$self"

// Record is the durable snapshot of a built bundle. It carries everything
// needed to answer Source, Digest, Length, and Fresh without re-running
// the transformation pipeline, and it is the value stored by the cache
// layer. Paths are root-relative for relocatability.
type Record struct {
	Path             string             `json:"path"`
	ContentType      string             `json:"contentType"`
	Length           int                `json:"length"`
	Digest           string             `json:"digest"`
	Source           string             `json:"source"`
	Body             string             `json:"body"`
	Parts            []string           `json:"parts"`
	Dependencies     []RecordDependency `json:"dependencyRecords"`
	DependencyDigest string             `json:"dependencyDigest"`
}

// RecordDependency mirrors DependencyRecord on the wire: a root-relative
// path, an ISO-8601 mtime (absent when the file was missing at snapshot
// time), and the raw content digest.
type RecordDependency struct {
	Path   string `json:"path"`
	Mtime  string `json:"mtime,omitempty"`
	Digest string `json:"contentDigest,omitempty"`
}

// Encode serializes the fully built bundle.
func (b *Bundle) Encode() (*Record, error) {
	return b.record(true)
}

// record builds the serialized snapshot. When bundled is false only the
// file's own processed body is the output; the part list collapses to the
// self sentinel.
func (b *Bundle) record(bundled bool) (*Record, error) {
	body, err := b.Body()
	if err != nil {
		return nil, err
	}

	// A bundled record's dependency snapshot spans every part, so a change
	// to any constituent file invalidates it. A body-only record tracks
	// just the files its own pipeline touched.
	var deps []DependencyRecord
	if bundled {
		deps, err = b.allDependencyRecords()
	} else {
		deps, err = b.DependencyRecords()
	}
	if err != nil {
		return nil, err
	}

	rec := &Record{
		Path:        b.env.relPath(b.path),
		ContentType: b.contentType,
		Body:        string(body),
	}

	if bundled {
		source, err := b.Source()
		if err != nil {
			return nil, err
		}
		parts, err := b.Parts()
		if err != nil {
			return nil, err
		}
		rec.Parts = make([]string, 0, len(parts))
		for _, p := range parts {
			if p.PhysicalPath() == b.path {
				rec.Parts = append(rec.Parts, selfPart)
			} else {
				rec.Parts = append(rec.Parts, b.env.relPath(p.PhysicalPath()))
			}
		}
		rec.Source = string(source)
		rec.Digest = b.digest
		rec.Length = b.length
	} else {
		h := b.env.hashFunc()
		h.Write(body)
		rec.Parts = []string{selfPart}
		rec.Source = string(body)
		rec.Digest = hexSum(h)
		rec.Length = len(body)
	}

	// The aggregate dependency digest is the digest-of-digests in record
	// order; the cache layer recomputes the same construction over current
	// file state to verify staleness.
	agg := b.env.hashFunc()
	rec.Dependencies = make([]RecordDependency, 0, len(deps))
	for _, d := range deps {
		rd := RecordDependency{
			Path:   b.env.relPath(d.Path),
			Digest: d.Digest,
		}
		if !d.Mtime.IsZero() {
			rd.Mtime = d.Mtime.Format(time.RFC3339Nano)
		}
		rec.Dependencies = append(rec.Dependencies, rd)
		agg.Write([]byte(d.Digest))
	}
	rec.DependencyDigest = hexSum(agg)

	return rec, nil
}

// Marshal returns the record's JSON encoding.
func (r *Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRecord parses a JSON-encoded record.
func DecodeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return &rec, nil
}

// DependencyPaths returns the record's dependency paths as stored
// (root-relative), in order.
func (r *Record) DependencyPaths() []string {
	paths := make([]string, 0, len(r.Dependencies))
	for _, d := range r.Dependencies {
		paths = append(paths, d.Path)
	}
	return paths
}

// Bundle reconstructs an in-memory bundle from the record. The result
// answers Source, Digest, Length, Mtime, and Fresh without invoking the
// transformation pipeline; part references resolve lazily, with the self
// sentinel mapped back to the bundle itself.
func (r *Record) Bundle(env *Environment) (*Bundle, error) {
	physical := env.absPath(r.Path)
	b := newBundle(env, physical, r.Path)
	if r.ContentType != "" {
		b.contentType = r.ContentType
	}

	deps := make([]DependencyRecord, 0, len(r.Dependencies))
	for _, d := range r.Dependencies {
		rec := DependencyRecord{
			Path:   env.absPath(d.Path),
			Digest: d.Digest,
		}
		if d.Mtime != "" {
			t, err := time.Parse(time.RFC3339Nano, d.Mtime)
			if err != nil {
				return nil, fmt.Errorf("parsing mtime of %s: %w", d.Path, err)
			}
			rec.Mtime = t
		}
		deps = append(deps, rec)
	}

	refs := make([]string, 0, len(r.Parts))
	for _, p := range r.Parts {
		if p == selfPart {
			refs = append(refs, selfPart)
		} else {
			refs = append(refs, env.absPath(p))
		}
	}

	b.output = []byte(r.Body)
	b.deps = deps
	b.evalDone = true
	b.partRefs = refs
	b.source = []byte(r.Source)
	b.digest = r.Digest
	b.length = r.Length
	b.sourceDone = true
	return b, nil
}

// DecodeBundle parses a JSON-encoded record and reconstructs its bundle.
func DecodeBundle(env *Environment, data []byte) (*Bundle, error) {
	rec, err := DecodeRecord(data)
	if err != nil {
		return nil, err
	}
	return rec.Bundle(env)
}
