package target

import (
	"errors"
	"sync"
	"testing"

	"github.com/danmuck/edgetrack/internal/testutil/testlog"
)

func TestGetOrCreateReturnsSameInstance(t *testing.T) {
	testlog.Start(t)
	r, _ := newTestRegistry(t)
	a := mustRoot(t, r, "R")
	b := mustRoot(t, r, "R")
	if a != b {
		t.Fatalf("expected identical instance")
	}
	c1 := mustChild(t, a, "R/child")
	c2, err := r.GetOrCreate("R/child", a)
	if err != nil || c1 != c2 {
		t.Fatalf("child lookup mismatch err=%v", err)
	}
	if got, ok := r.Lookup("R/child"); !ok || got != c1 {
		t.Fatalf("lookup mismatch")
	}
	if r.Len() != 2 {
		t.Fatalf("unexpected len=%d", r.Len())
	}
}

func TestGetOrCreateConcurrentAtMostOnce(t *testing.T) {
	testlog.Start(t)
	r, _ := newTestRegistry(t)
	root := mustRoot(t, r, "R")

	const n = 64
	results := make([]*Target, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			c, err := root.ChildTransmissionTarget("R/child")
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			results[i] = c
		}(i)
	}
	close(start)
	wg.Wait()
	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("goroutine %d got a different instance", i)
		}
	}
	if got := len(root.Children()); got != 1 {
		t.Fatalf("expected one child, got %d", got)
	}
}

func TestGetOrCreateInvalidInput(t *testing.T) {
	testlog.Start(t)
	r, _ := newTestRegistry(t)
	other, _ := newTestRegistry(t)

	if _, err := r.GetOrCreate(" ", nil); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	foreign := mustRoot(t, other, "F")
	if _, err := r.GetOrCreate("x", foreign); !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("expected ErrInvalidHierarchy for foreign parent, got %v", err)
	}

	a := mustRoot(t, r, "A")
	b := mustRoot(t, r, "B")
	mustChild(t, a, "A/child")
	if _, err := b.ChildTransmissionTarget("A/child"); !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("expected ErrInvalidHierarchy for reparent, got %v", err)
	}
	if _, err := r.GetOrCreate("A/child", nil); !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("expected ErrInvalidHierarchy for child requested as root, got %v", err)
	}
	if _, err := a.ChildTransmissionTarget("B"); !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("expected ErrInvalidHierarchy for root requested as child, got %v", err)
	}
	if _, err := a.ChildTransmissionTarget("A"); !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("expected ErrInvalidHierarchy for self parent, got %v", err)
	}
	if r.Len() != 3 {
		t.Fatalf("failed calls must not register targets, len=%d", r.Len())
	}
}

func TestRemoveForbiddenWithChildren(t *testing.T) {
	testlog.Start(t)
	r, _ := newTestRegistry(t)
	root := mustRoot(t, r, "R")
	child := mustChild(t, root, "R/child")

	if err := r.Remove("R"); !errors.Is(err, ErrHasChildren) {
		t.Fatalf("expected ErrHasChildren, got %v", err)
	}
	if err := r.Remove("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := r.Remove("R/child"); err != nil {
		t.Fatalf("remove leaf: %v", err)
	}
	if !child.Removed() || child.IsEnabled() {
		t.Fatalf("removed target must report removed and disabled")
	}
	if _, err := child.TrackEvent("x", nil); !errors.Is(err, ErrRemoved) {
		t.Fatalf("expected ErrRemoved, got %v", err)
	}
	if err := child.SetEnabled(true); !errors.Is(err, ErrRemoved) {
		t.Fatalf("expected ErrRemoved from SetEnabled, got %v", err)
	}
	if err := child.RemoveProperty("env"); !errors.Is(err, ErrRemoved) {
		t.Fatalf("expected ErrRemoved from RemoveProperty, got %v", err)
	}
	if _, err := r.GetOrCreate("x", child); !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("expected ErrInvalidHierarchy under removed parent, got %v", err)
	}
	if len(root.Children()) != 0 {
		t.Fatalf("removed child still attached")
	}
	if err := r.Remove("R"); err != nil {
		t.Fatalf("remove root after children: %v", err)
	}

	// re-creation yields a new live target
	again := mustRoot(t, r, "R")
	if again == root || again.Removed() {
		t.Fatalf("expected a fresh target")
	}
	againChild := mustChild(t, again, "R/child")

	// a stale parent handle is rejected whether or not the child token exists
	if _, err := r.GetOrCreate("R/child", root); !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("expected ErrInvalidHierarchy for stale parent of existing token, got %v", err)
	}
	if _, err := root.ChildTransmissionTarget("R/other"); !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("expected ErrInvalidHierarchy for stale parent of new token, got %v", err)
	}
	if got, err := again.ChildTransmissionTarget("R/child"); err != nil || got != againChild {
		t.Fatalf("live parent lookup failed: err=%v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("unexpected len=%d", r.Len())
	}
}

func TestSnapshotOrdersParentsFirst(t *testing.T) {
	testlog.Start(t)
	r, _ := newTestRegistry(t)
	z := mustRoot(t, r, "z")
	a := mustRoot(t, r, "a")
	zc := mustChild(t, z, "z/c")
	mustChild(t, zc, "z/c/leaf")
	mustChild(t, a, "a/b")
	_ = z.SetEnabled(false)
	_ = zc.SetProperty("env", "dev")

	snap := r.Snapshot()
	var tokens []string
	for _, info := range snap {
		tokens = append(tokens, info.Token)
	}
	want := []string{"a", "z", "a/b", "z/c", "z/c/leaf"}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("snapshot order got=%v want=%v", tokens, want)
		}
	}
	zcInfo := snap[3]
	if zcInfo.Parent != "z" || !zcInfo.Enabled || zcInfo.EffectiveEnabled || zcInfo.Properties["env"] != "dev" {
		t.Fatalf("unexpected info: %+v", zcInfo)
	}
	if len(snap[1].Children) != 1 || snap[1].Children[0] != "z/c" {
		t.Fatalf("unexpected children: %+v", snap[1].Children)
	}
	if roots := r.Roots(); len(roots) != 2 || roots[0].Token() != "a" {
		t.Fatalf("unexpected roots: %v", roots)
	}
	if p, ok := zc.Parent(); !ok || p != z {
		t.Fatalf("parent lookup failed")
	}
	if _, ok := z.Parent(); ok {
		t.Fatalf("root must have no parent")
	}
}
