package stage

// Kind is the filesystem object kind an artifact resolves to.
type Kind string

const (
	KindFile Kind = "file"
	KindDir  Kind = "dir"
)

// ArtifactRef locates one artifact produced by a stage and consumed by a
// later one. Paths are absolute, computed once from the output root when the
// registry is built, and never renegotiated afterwards — refs are
// coordinates, not data.
type ArtifactRef struct {
	Name    string
	Path    string
	Kind    Kind
	MinSize int64 // minimum byte size for files; 0 means any non-empty
}
