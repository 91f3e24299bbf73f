// Package stage defines the static pipeline stage descriptors: which
// external command each stage runs, under which runtime context, and which
// artifacts it consumes and produces.
package stage

// Command is one fully-rendered external invocation. A stage may run several
// commands in order under the same runtime context; outputs are validated
// once after the last command.
type Command struct {
	Exe  string
	Args []string
	// Stdout, when non-empty, is the artifact path the command's standard
	// output is redirected into (shell `>` equivalent for tools that write
	// their result to stdout).
	Stdout string
}

// Check is a structural predicate over a stage's declared outputs, evaluated
// by the artifact validator after the stage's commands exit zero. Fn returns
// nil when the output is structurally sane.
type Check struct {
	Artifact string
	Fn       func() error
}

// Descriptor is the immutable definition of one pipeline stage.
type Descriptor struct {
	Name     string
	Ordinal  int
	Context  string
	Commands []Command
	Inputs   []ArtifactRef
	Outputs  []ArtifactRef
	Checks   []Check
}
