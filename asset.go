package bundle

import "time"

// Asset is anything that can contribute a processed body to a bundle.
// It is identified by a logical path (how requirements name it) and a
// physical path (where its raw bytes live).
type Asset interface {
	// LogicalPath returns the path requirements use to name this asset.
	LogicalPath() string

	// PhysicalPath returns the concrete file backing this asset.
	// Part lists are deduplicated by physical path.
	PhysicalPath() string

	// ContentType returns the asset's content type tag, used to select
	// bundle-level processors.
	ContentType() string

	// Body returns the asset's own processed output, excluding any
	// required part's contribution.
	Body() ([]byte, error)

	// Parts returns the asset's constituent parts in expansion order,
	// including the asset itself exactly once.
	Parts() ([]Asset, error)
}

// Evaluation is the result of running the transformation pipeline over one
// file's raw bytes.
type Evaluation struct {
	// Output is the processed output for the file.
	Output []byte

	// DependencyPaths lists every raw file the pipeline touched while
	// producing Output. The evaluated file itself is always tracked,
	// whether or not it appears here.
	DependencyPaths []string

	// RequiredPaths is the ordered list of logical paths the file declared
	// as requirements.
	RequiredPaths []string

	// RequireSelf reports that the file asked for its own body to be
	// included inline, ahead of the listed requirements, rather than
	// appended after them.
	RequireSelf bool
}

// Evaluator runs the transformation pipeline. Implementations are supplied
// by the caller; this package never interprets directive syntax itself.
type Evaluator interface {
	Evaluate(path string, data []byte) (Evaluation, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(path string, data []byte) (Evaluation, error)

// Evaluate implements Evaluator.
func (f EvaluatorFunc) Evaluate(path string, data []byte) (Evaluation, error) {
	return f(path, data)
}

// Resolver maps a logical or physical path to an Asset.
type Resolver interface {
	Resolve(path string) (Asset, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(path string) (Asset, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(path string) (Asset, error) {
	return f(path)
}

// Processor transforms concatenated bundle output. Processors run after
// concatenation, selected by content type, in the order they were
// registered.
type Processor func(path string, data []byte) ([]byte, error)

// DependencyRecord is a snapshot of one raw file consulted while producing
// a bundle's body. A zero Mtime and empty Digest mean the file was absent
// when the snapshot was taken.
type DependencyRecord struct {
	Path   string
	Mtime  time.Time
	Digest string
}
