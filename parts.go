package bundle

import "fmt"

// Parts returns the ordered part list for the bundle: every required asset,
// flattened, deduplicated by physical path with the first occurrence
// winning, and the bundle itself exactly once. The list is computed once
// and cached for the bundle's lifetime.
func (b *Bundle) Parts() ([]Asset, error) {
	parts, err := b.expandWithin(make(map[string]bool), nil)
	if err != nil {
		return nil, err
	}
	return append([]Asset(nil), parts...), nil
}

// expandWithin expands the bundle inside an already-active expansion. The
// caller's guard set travels down the recursion so a requirement chain that
// loops back to any active bundle fails instead of recursing forever.
func (b *Bundle) expandWithin(active map[string]bool, chain []string) ([]Asset, error) {
	if b.partsDone {
		return b.parts, nil
	}
	parts, err := b.expand(active, chain)
	if err != nil {
		return nil, err
	}
	b.parts = parts
	b.partsDone = true
	return parts, nil
}

func (b *Bundle) expand(active map[string]bool, chain []string) ([]Asset, error) {
	if active[b.path] {
		return nil, &CircularDependencyError{
			Path:  b.path,
			Chain: append(append([]string(nil), chain...), b.path),
		}
	}
	active[b.path] = true
	defer delete(active, b.path)
	chain = append(append([]string(nil), chain...), b.path)

	if b.partRefs != nil {
		// Decoded bundle: restore parts from the stored path identifiers
		// without re-running the pipeline.
		return b.resolveRefs()
	}

	if err := b.evaluate(); err != nil {
		return nil, err
	}

	// An inline require-self without an explicit self entry puts the body
	// ahead of the listed requirements. First occurrence is authoritative;
	// later self-references are no-ops.
	required := b.required
	if b.reqSelf && !requiresSelf(required, b) {
		required = append([]string{b.path}, required...)
	}

	var parts []Asset
	seen := make(map[string]bool)
	selfAdded := false

	appendPart := func(a Asset) {
		if !seen[a.PhysicalPath()] {
			seen[a.PhysicalPath()] = true
			parts = append(parts, a)
		}
	}

	for _, req := range required {
		if req == b.path || req == b.logical {
			selfAdded = true
			appendPart(b)
			continue
		}

		asset, err := b.env.Resolve(req)
		if err != nil {
			return nil, fmt.Errorf("resolving requirement %s of %s: %w", req, b.path, err)
		}
		if asset.PhysicalPath() == b.path {
			selfAdded = true
			appendPart(b)
			continue
		}

		// A required bundle's parts flatten into this one.
		var subParts []Asset
		if sb, ok := asset.(*Bundle); ok {
			subParts, err = sb.expandWithin(active, chain)
		} else {
			subParts, err = asset.Parts()
		}
		if err != nil {
			return nil, err
		}
		for _, p := range subParts {
			appendPart(p)
		}
	}

	if !selfAdded {
		appendPart(b)
	}
	return parts, nil
}

// resolveRefs rebuilds the part list of a decoded bundle from stored path
// identifiers, mapping the self sentinel back to the bundle itself.
func (b *Bundle) resolveRefs() ([]Asset, error) {
	parts := make([]Asset, 0, len(b.partRefs))
	for _, ref := range b.partRefs {
		if ref == selfPart || ref == b.path {
			parts = append(parts, b)
			continue
		}
		asset, err := b.env.Resolve(ref)
		if err != nil {
			return nil, fmt.Errorf("resolving part %s of %s: %w", ref, b.path, err)
		}
		parts = append(parts, asset)
	}
	return parts, nil
}

// requiresSelf reports whether the requirement list already names the
// bundle itself.
func requiresSelf(required []string, b *Bundle) bool {
	for _, r := range required {
		if r == b.path || r == b.logical {
			return true
		}
	}
	return false
}
