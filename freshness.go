package bundle

// Fresh reports whether a new build of this bundle would match the captured
// dependency snapshot. Each record is checked against the current
// filesystem: an unchanged mtime is fresh; a changed mtime with an
// unchanged content digest is still fresh; anything else is stale.
//
// Fresh is evaluated against the live filesystem on every call; its result
// is never memoized and it never updates the bundle's captured snapshot.
// Cache invalidation decisions stay with the caller.
func (b *Bundle) Fresh() bool {
	recs, err := b.allDependencyRecords()
	if err != nil {
		return false
	}
	for _, rec := range recs {
		if !b.recordFresh(rec) {
			return false
		}
	}
	return true
}

func (b *Bundle) recordFresh(rec DependencyRecord) bool {
	mtime, err := b.env.accessor.Stat(rec.Path)
	if err != nil {
		// The file is gone; fresh only if it was already absent when the
		// snapshot was taken.
		return rec.Mtime.IsZero() && rec.Digest == ""
	}
	if rec.Mtime.IsZero() {
		// Depended on absence, and the file now exists.
		return false
	}
	if mtime.Equal(rec.Mtime) {
		return true
	}
	digest, err := b.env.accessor.ContentDigest(rec.Path)
	if err != nil {
		return false
	}
	return digest == rec.Digest
}
