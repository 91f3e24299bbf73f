package runtime

import (
	"errors"
	"strings"
	"testing"

	"github.com/ZhaohnNwafu/Autom6A/internal/config"
)

func testResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver([]config.ContextConfig{
		{ID: "nanopore", PathDirs: []string{"/envs/nanopore/bin"}, ConflictsWith: []string{"m6anet"}},
		{ID: "m6anet", PathDirs: []string{"/envs/m6anet/bin"}, Env: map[string]string{"PYTHONNOUSERSITE": "1"}},
	}, "/work")
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestResolveUnknownContext(t *testing.T) {
	r := testResolver(t)
	_, err := r.Resolve("conda-base")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected *NotFoundError, got %v", err)
	}
	if nf.ID != "conda-base" {
		t.Errorf("error names %q", nf.ID)
	}
}

func TestResolvePlan(t *testing.T) {
	r := testResolver(t)
	plan, err := r.Resolve("m6anet")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if plan.Dir != "/work" {
		t.Errorf("plan dir = %q", plan.Dir)
	}

	var path, noUserSite string
	for _, kv := range plan.Env {
		if strings.HasPrefix(kv, "PATH=") {
			path = kv
		}
		if strings.HasPrefix(kv, "PYTHONNOUSERSITE=") {
			noUserSite = kv
		}
	}
	if !strings.HasPrefix(path, "PATH=/envs/m6anet/bin") {
		t.Errorf("context path dirs not prepended: %q", path)
	}
	if noUserSite != "PYTHONNOUSERSITE=1" {
		t.Errorf("env override missing: %q", noUserSite)
	}
}

func TestConflictingContexts(t *testing.T) {
	r := testResolver(t)

	restore, err := r.Activate("nanopore")
	if err != nil {
		t.Fatal(err)
	}

	// Conflict declared on nanopore's side only; must hold in both directions.
	if _, err := r.Resolve("m6anet"); err == nil {
		t.Error("expected conflict resolving m6anet while nanopore active")
	}
	var conflict *ConflictError
	_, err = r.Activate("m6anet")
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *ConflictError, got %v", err)
	}
	if conflict.Active != "nanopore" {
		t.Errorf("conflict names active %q", conflict.Active)
	}

	// Reactivating the same context is not a conflict.
	restore2, err := r.Activate("nanopore")
	if err != nil {
		t.Errorf("re-activating active context: %v", err)
	}
	restore2()

	restore()
	if r.Active() != "" {
		t.Errorf("restore should clear active context, got %q", r.Active())
	}
	if _, err := r.Resolve("m6anet"); err != nil {
		t.Errorf("m6anet should resolve after restore: %v", err)
	}
}

func TestActivateRestoresPrevious(t *testing.T) {
	r, err := NewResolver([]config.ContextConfig{
		{ID: "a"}, {ID: "b"},
	}, "")
	if err != nil {
		t.Fatal(err)
	}

	restoreA, _ := r.Activate("a")
	restoreB, _ := r.Activate("b")
	if r.Active() != "b" {
		t.Fatalf("active = %q", r.Active())
	}
	restoreB()
	if r.Active() != "a" {
		t.Errorf("restore should reinstate previous context, got %q", r.Active())
	}
	restoreA()
}

func TestDuplicateContextID(t *testing.T) {
	_, err := NewResolver([]config.ContextConfig{{ID: "x"}, {ID: "x"}}, "")
	if err == nil {
		t.Error("expected duplicate id error")
	}
}
