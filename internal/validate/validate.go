// Package validate inspects a stage's declared output artifacts before the
// stage is marked complete: existence, non-emptiness, and stage-specific
// structural checks. Read-only; never mutates artifacts.
package validate

import (
	"fmt"
	"os"
	"strings"

	"github.com/ZhaohnNwafu/Autom6A/internal/stage"
)

// FailureKind classifies one validation failure.
type FailureKind string

const (
	MissingArtifact FailureKind = "missing-artifact"
	EmptyArtifact   FailureKind = "empty-artifact"
	FormatError     FailureKind = "format-error"
)

// Failure is one problem with one declared output artifact.
type Failure struct {
	Kind     FailureKind
	Artifact string
	Detail   string
}

func (f Failure) String() string {
	if f.Detail == "" {
		return fmt.Sprintf("%s: %s", f.Kind, f.Artifact)
	}
	return fmt.Sprintf("%s: %s (%s)", f.Kind, f.Artifact, f.Detail)
}

// Outcome is the result of validating a stage's outputs.
type Outcome struct {
	Failures []Failure
}

// OK reports whether every declared output passed.
func (o Outcome) OK() bool { return len(o.Failures) == 0 }

func (o Outcome) String() string {
	if o.OK() {
		return "ok"
	}
	parts := make([]string, len(o.Failures))
	for i, f := range o.Failures {
		parts[i] = f.String()
	}
	return strings.Join(parts, "; ")
}

// Stage checks every declared output of desc. Structural checks only run
// for artifacts that exist and are non-empty — a missing file already
// explains itself.
func Stage(desc stage.Descriptor) Outcome {
	var out Outcome
	unhealthy := map[string]bool{}

	for _, ref := range desc.Outputs {
		if f, ok := checkRef(ref); !ok {
			out.Failures = append(out.Failures, f)
			unhealthy[ref.Name] = true
		}
	}

	for _, chk := range desc.Checks {
		if unhealthy[chk.Artifact] {
			continue
		}
		if err := chk.Fn(); err != nil {
			out.Failures = append(out.Failures, Failure{
				Kind:     FormatError,
				Artifact: chk.Artifact,
				Detail:   err.Error(),
			})
		}
	}
	return out
}

func checkRef(ref stage.ArtifactRef) (Failure, bool) {
	info, err := os.Stat(ref.Path)
	if err != nil {
		return Failure{Kind: MissingArtifact, Artifact: ref.Name, Detail: ref.Path}, false
	}

	switch ref.Kind {
	case stage.KindDir:
		if !info.IsDir() {
			return Failure{Kind: FormatError, Artifact: ref.Name, Detail: "expected a directory"}, false
		}
		entries, err := os.ReadDir(ref.Path)
		if err != nil {
			return Failure{Kind: FormatError, Artifact: ref.Name, Detail: err.Error()}, false
		}
		if len(entries) == 0 {
			return Failure{Kind: EmptyArtifact, Artifact: ref.Name, Detail: ref.Path}, false
		}
	default:
		if info.IsDir() {
			return Failure{Kind: FormatError, Artifact: ref.Name, Detail: "expected a file"}, false
		}
		min := ref.MinSize
		if min <= 0 {
			min = 1
		}
		if info.Size() < min {
			return Failure{Kind: EmptyArtifact, Artifact: ref.Name,
				Detail: fmt.Sprintf("%d bytes, want at least %d", info.Size(), min)}, false
		}
	}
	return Failure{}, true
}
