package bundle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"
)

func TestBundleBodyIsOwnOutputOnly(t *testing.T) {
	ev := &fakeEvaluator{
		requires: map[string][]string{
			"/proj/js/app.js": {"b.js"},
		},
	}
	env, memFs := newTestEnv(t, ev)
	createTestFile(t, memFs, "/proj/js/app.js", []byte("app\n"))
	createTestFile(t, memFs, "/proj/js/b.js", []byte("b\n"))

	b := resolveBundle(t, env, "app.js")
	body, err := b.Body()
	if err != nil {
		t.Fatalf("Failed to build body: %v", err)
	}
	if string(body) != "app\n" {
		t.Errorf("Wrong body: %q", body)
	}
}

func TestBundleSourceDeterministic(t *testing.T) {
	build := func() ([]byte, string) {
		ev := &fakeEvaluator{
			requires: map[string][]string{
				"/proj/js/app.js": {"b.js", "c.js"},
			},
		}
		env, memFs := newTestEnv(t, ev)
		createTestFile(t, memFs, "/proj/js/app.js", []byte("app\n"))
		createTestFile(t, memFs, "/proj/js/b.js", []byte("b\n"))
		createTestFile(t, memFs, "/proj/js/c.js", []byte("c\n"))

		b := resolveBundle(t, env, "app.js")
		source, err := b.Source()
		if err != nil {
			t.Fatalf("Failed to build source: %v", err)
		}
		digest, err := b.Digest()
		if err != nil {
			t.Fatalf("Failed to digest: %v", err)
		}
		return source, digest
	}

	s1, d1 := build()
	s2, d2 := build()
	if !bytes.Equal(s1, s2) {
		t.Errorf("Source differs across identical builds: %q vs %q", s1, s2)
	}
	if d1 != d2 {
		t.Errorf("Digest differs across identical builds: %s vs %s", d1, d2)
	}
}

func TestBundleDigestAndLength(t *testing.T) {
	ev := &fakeEvaluator{
		requires: map[string][]string{
			"/proj/js/app.js": {"b.js"},
		},
	}
	env, memFs := newTestEnv(t, ev)
	createTestFile(t, memFs, "/proj/js/app.js", []byte("app\n"))
	createTestFile(t, memFs, "/proj/js/b.js", []byte("b\n"))

	b := resolveBundle(t, env, "app.js")
	source := bundleSource(t, b)

	sum := sha256.Sum256([]byte(source))
	digest, err := b.Digest()
	if err != nil {
		t.Fatalf("Failed to digest: %v", err)
	}
	if digest != hex.EncodeToString(sum[:]) {
		t.Errorf("Digest is not the hash of source: %s", digest)
	}
	length, err := b.Length()
	if err != nil {
		t.Fatalf("Failed to measure length: %v", err)
	}
	if length != len(source) {
		t.Errorf("Wrong length: got %d, want %d", length, len(source))
	}
}

func TestBundleMtimeIsMaxDependencyMtime(t *testing.T) {
	ev := &fakeEvaluator{
		requires: map[string][]string{
			"/proj/js/app.js": {"b.js", "c.js"},
		},
	}
	env, memFs := newTestEnv(t, ev)
	createTestFile(t, memFs, "/proj/js/app.js", []byte("app\n"))
	createTestFile(t, memFs, "/proj/js/b.js", []byte("b\n"))
	createTestFile(t, memFs, "/proj/js/c.js", []byte("c\n"))

	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	t3 := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	touchFile(t, memFs, "/proj/js/app.js", t1)
	touchFile(t, memFs, "/proj/js/c.js", t2)
	touchFile(t, memFs, "/proj/js/b.js", t3)

	b := resolveBundle(t, env, "app.js")
	mtime, err := b.Mtime()
	if err != nil {
		t.Fatalf("Failed to compute mtime: %v", err)
	}
	if !mtime.Equal(t3) {
		t.Errorf("Wrong mtime: got %v, want %v", mtime, t3)
	}
}

func TestBundleProcessorsRunOnConcatenatedSource(t *testing.T) {
	ev := &fakeEvaluator{
		requires: map[string][]string{
			"/proj/js/app.js": {"b.js"},
		},
	}
	upper := func(path string, data []byte) ([]byte, error) {
		return bytes.ToUpper(data), nil
	}
	env, memFs := newTestEnv(t, ev,
		WithBundleProcessors("application/javascript", upper))
	createTestFile(t, memFs, "/proj/js/app.js", []byte("app\n"))
	createTestFile(t, memFs, "/proj/js/b.js", []byte("b\n"))

	b := resolveBundle(t, env, "app.js")
	if got := bundleSource(t, b); got != "B\nAPP\n" {
		t.Errorf("Wrong processed source: %q", got)
	}

	// The processor runs on the joined output, not per body.
	body, err := b.Body()
	if err != nil {
		t.Fatalf("Failed to build body: %v", err)
	}
	if string(body) != "app\n" {
		t.Errorf("Body must stay unprocessed: %q", body)
	}
}

func TestBundleDependencyRecordsIncludeDependOn(t *testing.T) {
	ev := &fakeEvaluator{
		dependsOn: map[string][]string{
			"/proj/js/app.js": {"js/data.json"},
		},
	}
	env, memFs := newTestEnv(t, ev)
	createTestFile(t, memFs, "/proj/js/app.js", []byte("app\n"))
	createTestFile(t, memFs, "/proj/js/data.json", []byte("{}"))

	b := resolveBundle(t, env, "app.js")
	recs, err := b.DependencyRecords()
	if err != nil {
		t.Fatalf("Failed to snapshot dependencies: %v", err)
	}
	paths := make([]string, 0, len(recs))
	for _, rec := range recs {
		paths = append(paths, rec.Path)
		if rec.Digest == "" || rec.Mtime.IsZero() {
			t.Errorf("Record for %s missing digest or mtime", rec.Path)
		}
	}
	assertStringsEqual(t, paths,
		[]string{"/proj/js/app.js", "/proj/js/data.json"},
		"dependency paths")
}

func TestBundleDependencyRecordsMissingFile(t *testing.T) {
	ev := &fakeEvaluator{
		dependsOn: map[string][]string{
			"/proj/js/app.js": {"js/ghost.json"},
		},
	}
	env, memFs := newTestEnv(t, ev)
	createTestFile(t, memFs, "/proj/js/app.js", []byte("app\n"))

	b := resolveBundle(t, env, "app.js")
	recs, err := b.DependencyRecords()
	if err != nil {
		t.Fatalf("Failed to snapshot dependencies: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	ghost := recs[1]
	if !ghost.Mtime.IsZero() || ghost.Digest != "" {
		t.Errorf("Missing file must snapshot as absent, got %+v", ghost)
	}
}
