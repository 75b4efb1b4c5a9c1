package bundle

import (
	"testing"
	"time"

	"github.com/spf13/afero"
)

// fakeEvaluator is a map-driven pipeline for tests. Requirements, self
// placement, and extra dependencies are declared per physical path; output
// defaults to the raw bytes unless a transform is set. Every Evaluate call
// is counted so tests can assert how often the pipeline ran.
type fakeEvaluator struct {
	calls     int
	requires  map[string][]string
	self      map[string]bool
	dependsOn map[string][]string
	transform func(path string, data []byte) []byte
}

func (f *fakeEvaluator) Evaluate(path string, data []byte) (Evaluation, error) {
	f.calls++
	out := data
	if f.transform != nil {
		out = f.transform(path, data)
	}
	return Evaluation{
		Output:          out,
		DependencyPaths: f.dependsOn[path],
		RequiredPaths:   f.requires[path],
		RequireSelf:     f.self[path],
	}, nil
}

func newTestEnv(t *testing.T, ev Evaluator, options ...Option) (*Environment, afero.Fs) {
	t.Helper()
	memFs := afero.NewMemMapFs()
	options = append([]Option{WithFs(memFs)}, options...)
	env, err := NewEnvironment(Config{
		Root:        "/proj",
		SearchPaths: []string{"js"},
		Version:     "1",
	}, ev, options...)
	if err != nil {
		t.Fatalf("Failed to create environment: %v", err)
	}
	return env, memFs
}

func createTestFile(t *testing.T, fs afero.Fs, path string, content []byte) {
	t.Helper()
	if err := afero.WriteFile(fs, path, content, 0644); err != nil {
		t.Fatalf("Failed to create test file %s: %v", path, err)
	}
}

func touchFile(t *testing.T, fs afero.Fs, path string, mtime time.Time) {
	t.Helper()
	if err := fs.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("Failed to set mtime on %s: %v", path, err)
	}
}

func resolveBundle(t *testing.T, env *Environment, path string) *Bundle {
	t.Helper()
	asset, err := env.Resolve(path)
	if err != nil {
		t.Fatalf("Failed to resolve %s: %v", path, err)
	}
	b, ok := asset.(*Bundle)
	if !ok {
		t.Fatalf("Expected %s to resolve to a *Bundle, got %T", path, asset)
	}
	return b
}

func bundleSource(t *testing.T, b *Bundle) string {
	t.Helper()
	source, err := b.Source()
	if err != nil {
		t.Fatalf("Failed to build source of %s: %v", b.PhysicalPath(), err)
	}
	return string(source)
}

func partPaths(t *testing.T, b *Bundle) []string {
	t.Helper()
	parts, err := b.Parts()
	if err != nil {
		t.Fatalf("Failed to expand %s: %v", b.PhysicalPath(), err)
	}
	paths := make([]string, 0, len(parts))
	for _, p := range parts {
		paths = append(paths, p.PhysicalPath())
	}
	return paths
}

func assertStringsEqual(t *testing.T, got, want []string, what string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Wrong %s: got %v, want %v", what, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Wrong %s: got %v, want %v", what, got, want)
		}
	}
}
