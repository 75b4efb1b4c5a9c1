package bundle

import (
	"bytes"
	"sort"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
)

// digestCacheSize bounds the per-process digest memo.
const digestCacheSize = 4096

// FileAccessor answers the raw filesystem questions the builder and cache
// layer ask: modification times, directory listings, and content digests.
// Digests are memoized per (path, mtime) for the life of the process, so a
// file whose mtime changed is always re-digested while an untouched file is
// digested at most once.
type FileAccessor struct {
	fs       afero.Fs
	hashFunc HashFunc
	digests  *lru.Cache[string, string]
}

func newFileAccessor(fs afero.Fs, hashFunc HashFunc) *FileAccessor {
	digests, _ := lru.New[string, string](digestCacheSize)
	return &FileAccessor{
		fs:       fs,
		hashFunc: hashFunc,
		digests:  digests,
	}
}

// Stat returns the modification time of path.
func (a *FileAccessor) Stat(path string) (time.Time, error) {
	info, err := a.fs.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Entries returns the sorted names of the entries in dir.
func (a *FileAccessor) Entries(dir string) ([]string, error) {
	infos, err := afero.ReadDir(a.fs, dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ContentDigest returns the digest of path's raw bytes. Pre-read bytes may
// be passed to prime the memo and avoid a second disk read; the caller is
// trusted that they are the file's current content.
func (a *FileAccessor) ContentDigest(path string, data ...[]byte) (string, error) {
	mtime, err := a.Stat(path)
	if err != nil {
		return "", err
	}
	key := path + "\x00" + strconv.FormatInt(mtime.UnixNano(), 10)
	if d, ok := a.digests.Get(key); ok {
		return d, nil
	}

	h := a.hashFunc()
	if len(data) > 0 && data[0] != nil {
		if err := hashReader(bytes.NewReader(data[0]), h); err != nil {
			return "", err
		}
	} else {
		f, err := a.fs.Open(path)
		if err != nil {
			return "", err
		}
		err = hashReader(f, h)
		_ = f.Close()
		if err != nil {
			return "", err
		}
	}

	d := hexSum(h)
	a.digests.Add(key, d)
	return d, nil
}
