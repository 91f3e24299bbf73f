// Package runtime maps stages to the isolated execution environments they
// must run under and produces ready-to-exec invocation plans.
package runtime

import (
	"fmt"
	"os"
	"strings"

	"github.com/ZhaohnNwafu/Autom6A/internal/config"
)

// Context is one isolated runtime environment (distinct dependency set).
// The two environments of the m6A workflow carry incompatible Python stacks
// and are declared mutually exclusive: a process must never run with both
// merged into its environment.
type Context struct {
	ID            string
	PathDirs      []string
	Env           map[string]string
	ConflictsWith []string
}

// ExecutionPlan is a ready-to-exec invocation environment for one context.
type ExecutionPlan struct {
	ContextID string
	Env       []string // complete child environment, KEY=VALUE
	Dir       string   // working directory
}

// NotFoundError reports an unknown context identifier. Always a
// configuration defect, never retried.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("runtime context %q is not defined", e.ID)
}

// ConflictError reports a request to activate a context declared mutually
// exclusive with the one currently active.
type ConflictError struct {
	ID     string
	Active string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("runtime context %q conflicts with active context %q", e.ID, e.Active)
}

// Resolver looks up contexts and tracks which one is active in this process.
// A single pipeline run is driven by one control thread, so activation is a
// plain field, not shared state.
type Resolver struct {
	contexts map[string]Context
	dir      string
	active   string
}

// NewResolver builds a resolver from configured context definitions. The
// working directory applies to every plan it produces.
func NewResolver(defs []config.ContextConfig, dir string) (*Resolver, error) {
	contexts := make(map[string]Context, len(defs))
	for _, d := range defs {
		if _, dup := contexts[d.ID]; dup {
			return nil, fmt.Errorf("duplicate runtime context %q", d.ID)
		}
		contexts[d.ID] = Context{
			ID:            d.ID,
			PathDirs:      d.PathDirs,
			Env:           d.Env,
			ConflictsWith: d.ConflictsWith,
		}
	}
	return &Resolver{contexts: contexts, dir: dir}, nil
}

// Resolve returns the execution plan for a context. It fails with
// *NotFoundError for an unknown identifier and *ConflictError when the
// requested context is mutually exclusive with the one currently active.
func (r *Resolver) Resolve(id string) (ExecutionPlan, error) {
	c, ok := r.contexts[id]
	if !ok {
		return ExecutionPlan{}, &NotFoundError{ID: id}
	}
	if r.active != "" && r.active != id && r.conflicts(c, r.active) {
		return ExecutionPlan{}, &ConflictError{ID: id, Active: r.active}
	}
	return ExecutionPlan{
		ContextID: id,
		Env:       buildEnv(c),
		Dir:       r.dir,
	}, nil
}

// Activate marks the context active and returns a restore function that
// reinstates the previous context. Callers must invoke restore on every exit
// path so a failed stage never leaves its context dangling.
func (r *Resolver) Activate(id string) (func(), error) {
	c, ok := r.contexts[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	if r.active != "" && r.active != id && r.conflicts(c, r.active) {
		return nil, &ConflictError{ID: id, Active: r.active}
	}
	prev := r.active
	r.active = id
	return func() { r.active = prev }, nil
}

// Active returns the identifier of the currently active context, if any.
func (r *Resolver) Active() string {
	return r.active
}

// conflicts reports whether c and the context named other declare each other
// mutually exclusive (in either direction).
func (r *Resolver) conflicts(c Context, other string) bool {
	for _, id := range c.ConflictsWith {
		if id == other {
			return true
		}
	}
	if o, ok := r.contexts[other]; ok {
		for _, id := range o.ConflictsWith {
			if id == c.ID {
				return true
			}
		}
	}
	return false
}

// buildEnv merges the parent environment with the context's overrides and
// prepends the context's directories to PATH.
func buildEnv(c Context) []string {
	overrides := make(map[string]string, len(c.Env)+1)
	for k, v := range c.Env {
		overrides[k] = v
	}

	parentPath := os.Getenv("PATH")
	if v, ok := overrides["PATH"]; ok {
		parentPath = v
	}
	if len(c.PathDirs) > 0 {
		overrides["PATH"] = strings.Join(c.PathDirs, string(os.PathListSeparator)) +
			string(os.PathListSeparator) + parentPath
	}

	env := make([]string, 0, len(os.Environ())+len(overrides))
	for _, kv := range os.Environ() {
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			env = append(env, kv)
			continue
		}
		if _, ok := overrides[kv[:eq]]; ok {
			continue
		}
		env = append(env, kv)
	}
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}
