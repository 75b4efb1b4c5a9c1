package bundle

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
)

// WriteOptions configures bundle output files.
type WriteOptions struct {
	// Compress forces gzip output. Compression is also selected
	// automatically when the target name carries a ".gz" suffix.
	Compress bool
}

// WriteTo persists the bundle's source to target. The bytes go to a temp
// file at target+"+" first and become visible only through the final
// rename, so concurrent readers of target observe the fully-old or
// fully-new file, never a partial write. The target's mtime is set to the
// bundle's dependency-derived mtime, not the write time. A lingering temp
// file is removed on every exit path.
func (b *Bundle) WriteTo(target string, opts WriteOptions) error {
	source, err := b.Source()
	if err != nil {
		return err
	}
	mtime, err := b.Mtime()
	if err != nil {
		return err
	}

	fs := b.env.fs
	target = b.env.absPath(target)
	if dir := filepath.Dir(target); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	tmp := target + "+"
	defer func() {
		// No-op after a successful rename; cleans up after failures and
		// after temp files orphaned by an earlier crash.
		if ok, _ := afero.Exists(fs, tmp); ok {
			_ = fs.Remove(tmp)
		}
	}()

	f, err := fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}

	if opts.Compress || strings.HasSuffix(target, ".gz") {
		gz := gzip.NewWriter(f)
		if _, err = gz.Write(source); err == nil {
			err = gz.Close()
		}
	} else {
		_, err = f.Write(source)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}

	// The rename is the only operation that makes new content visible at
	// the target path.
	if err := fs.Rename(tmp, target); err != nil {
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}

	if !mtime.IsZero() {
		if err := fs.Chtimes(target, mtime, mtime); err != nil {
			return fmt.Errorf("stamping mtime on %s: %w", target, err)
		}
	}
	return nil
}
