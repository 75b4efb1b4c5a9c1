package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestFileAccessorContentDigest(t *testing.T) {
	memFs := afero.NewMemMapFs()
	createTestFile(t, memFs, "/proj/a.txt", []byte("hello"))
	a := newFileAccessor(memFs, defaultHashFunc)

	d, err := a.ContentDigest("/proj/a.txt")
	if err != nil {
		t.Fatalf("Failed to digest: %v", err)
	}
	sum := sha256.Sum256([]byte("hello"))
	if d != hex.EncodeToString(sum[:]) {
		t.Errorf("Wrong digest: %s", d)
	}
}

func TestFileAccessorDigestMemoizedPerMtime(t *testing.T) {
	memFs := afero.NewMemMapFs()
	createTestFile(t, memFs, "/proj/a.txt", []byte("hello"))
	a := newFileAccessor(memFs, defaultHashFunc)

	first, err := a.ContentDigest("/proj/a.txt")
	if err != nil {
		t.Fatalf("Failed to digest: %v", err)
	}

	// Same mtime, so the memo answers even though the bytes changed out
	// from under it. MemMapFs FileInfo is a live view, so capture the
	// mtime value before the rewrite.
	info, _ := memFs.Stat("/proj/a.txt")
	origMtime := info.ModTime()
	createTestFile(t, memFs, "/proj/a.txt", []byte("sneaky"))
	touchFile(t, memFs, "/proj/a.txt", origMtime)
	cached, err := a.ContentDigest("/proj/a.txt")
	if err != nil {
		t.Fatalf("Failed to digest: %v", err)
	}
	if cached != first {
		t.Errorf("Expected memoized digest for an unchanged mtime")
	}

	// A new mtime forces a re-read.
	touchFile(t, memFs, "/proj/a.txt", origMtime.Add(time.Hour))
	fresh, err := a.ContentDigest("/proj/a.txt")
	if err != nil {
		t.Fatalf("Failed to digest: %v", err)
	}
	sum := sha256.Sum256([]byte("sneaky"))
	if fresh != hex.EncodeToString(sum[:]) {
		t.Errorf("Expected re-digest after mtime change, got %s", fresh)
	}
}

func TestFileAccessorDigestPriming(t *testing.T) {
	memFs := afero.NewMemMapFs()
	createTestFile(t, memFs, "/proj/a.txt", []byte("primed"))
	a := newFileAccessor(memFs, defaultHashFunc)

	d, err := a.ContentDigest("/proj/a.txt", []byte("primed"))
	if err != nil {
		t.Fatalf("Failed to digest: %v", err)
	}
	sum := sha256.Sum256([]byte("primed"))
	if d != hex.EncodeToString(sum[:]) {
		t.Errorf("Wrong primed digest: %s", d)
	}

	// The primed value serves later calls without a read.
	again, err := a.ContentDigest("/proj/a.txt")
	if err != nil {
		t.Fatalf("Failed to digest: %v", err)
	}
	if again != d {
		t.Errorf("Primed digest not memoized: %s", again)
	}
}

func TestFileAccessorDigestMissingFile(t *testing.T) {
	a := newFileAccessor(afero.NewMemMapFs(), defaultHashFunc)
	if _, err := a.ContentDigest("/proj/nope.txt"); err == nil {
		t.Error("Expected an error digesting a missing file")
	}
}

func TestFileAccessorEntries(t *testing.T) {
	memFs := afero.NewMemMapFs()
	createTestFile(t, memFs, "/proj/b.txt", []byte("b"))
	createTestFile(t, memFs, "/proj/a.txt", []byte("a"))
	createTestFile(t, memFs, "/proj/c.txt", []byte("c"))
	a := newFileAccessor(memFs, defaultHashFunc)

	names, err := a.Entries("/proj")
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	assertStringsEqual(t, names, []string{"a.txt", "b.txt", "c.txt"}, "sorted entries")
}

func TestFingerprintDistinguishesFieldBoundaries(t *testing.T) {
	// Length-prefixed encoding keeps ("ab","c") and ("a","bc") apart.
	if fingerprint("ns", "ab", "c") == fingerprint("ns", "a", "bc") {
		t.Error("Fingerprint must encode field boundaries")
	}
	if fingerprint("ns", "a") == fingerprint("other", "a") {
		t.Error("Fingerprint must include the namespace")
	}
	if fingerprint("ns", "a", "b") != fingerprint("ns", "a", "b") {
		t.Error("Fingerprint must be deterministic")
	}
}
