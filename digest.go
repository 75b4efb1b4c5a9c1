package bundle

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"io"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// HashFunc defines a function that creates a new hash.Hash instance.
type HashFunc func() hash.Hash

// defaultHashFunc returns the default content digest function. SHA-256 is
// the default because digests are part of a durable wire format; override
// with WithHashFunc.
func defaultHashFunc() hash.Hash {
	return sha256.New()
}

// Default size for the buffer used when hashing file content
const defaultBufferSize = 32 * 1024 // 32KB

// bufferPool is a pool of byte slices used for file I/O during hashing
var bufferPool = sync.Pool{
	New: func() interface{} {
		buffer := make([]byte, defaultBufferSize)
		return &buffer
	},
}

// hashReader hashes the content from a reader using the provided hash.
func hashReader(content io.Reader, h hash.Hash) error {
	bufPtr := bufferPool.Get().(*[]byte)
	buffer := *bufPtr
	defer bufferPool.Put(bufPtr)

	_, err := io.CopyBuffer(h, content, buffer)
	return err
}

// hexSum finishes a hash and returns its hex encoding.
func hexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// fingerprint computes a store key from a namespace and an ordered field
// tuple. Fields are length-prefixed so adjacent fields cannot collide.
// xxHash is used here because store keys only need distribution, not
// collision resistance.
func fingerprint(namespace string, fields ...string) string {
	h := xxhash.New()
	var n [8]byte
	for _, f := range fields {
		binary.LittleEndian.PutUint64(n[:], uint64(len(f)))
		h.Write(n[:])
		h.Write([]byte(f))
	}
	return namespace + ":" + strconv.FormatUint(h.Sum64(), 16)
}
