package silo

import "testing"

type Position struct{ X, Y float64 }
type Velocity struct{ X, Y float64 }
type Health struct{ Current, Max int }
type TagDead struct{}

func TestEntityCreationAndLiveness(t *testing.T) {
	tests := []struct {
		name       string
		components []Component
	}{
		{"no components", nil},
		{"single component", []Component{Position{X: 1, Y: 2}}},
		{"multiple components", []Component{Position{}, Velocity{X: 3}}},
		{"tag only", []Component{TagDead{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Factory.NewWorld()
			e, err := w.AddEntity(tt.components...)
			if err != nil {
				t.Fatalf("AddEntity() error = %v", err)
			}
			if !w.EntityAlive(e) {
				t.Fatalf("entity %v not alive after creation", e)
			}
		})
	}
}

func TestEntityRecycling(t *testing.T) {
	// S1 — recycling: destroying and recreating must reuse the index with a
	// bumped generation, and the stale ID must no longer be alive.
	w := Factory.NewWorld()
	pos := RegisterComponent[Position](w)

	e1, _ := w.AddEntity(Position{X: 1})
	_ = pos
	w.DestroyEntity(e1)
	if w.EntityAlive(e1) {
		t.Fatalf("e1 still alive after DestroyEntity")
	}

	e2, _ := w.AddEntity(Position{X: 2})
	if EntityIndex(e1) != EntityIndex(e2) {
		t.Fatalf("expected recycled index, got e1=%d e2=%d", EntityIndex(e1), EntityIndex(e2))
	}
	if EntityGeneration(e2) == EntityGeneration(e1) {
		t.Fatalf("expected bumped generation on recycle, e1=%d e2=%d", EntityGeneration(e1), EntityGeneration(e2))
	}
	if w.EntityAlive(e1) {
		t.Fatalf("stale e1 must not be reported alive after recycle")
	}
	if !w.EntityAlive(e2) {
		t.Fatalf("e2 should be alive")
	}
}

func TestArchetypeOrderIndependence(t *testing.T) {
	// S2 — two entities built with the same component set added in a
	// different argument order land in the same archetype.
	w := Factory.NewWorld()
	e1, _ := w.AddEntity(Position{X: 1}, Velocity{X: 2})
	e2, _ := w.AddEntity(Velocity{X: 3}, Position{X: 4})

	r1 := w.recordFor(e1)
	r2 := w.recordFor(e2)
	if r1.archetype != r2.archetype {
		t.Fatalf("expected same archetype regardless of construction order")
	}
}

func TestSwapRemovePreservesData(t *testing.T) {
	// S3 — destroying a non-last row in an archetype must swap-move the
	// last row's data into the freed slot without corrupting it.
	w := Factory.NewWorld()
	pos := RegisterComponent[Position](w)

	e1, _ := w.AddEntity(Position{X: 1})
	e2, _ := w.AddEntity(Position{X: 2})
	e3, _ := w.AddEntity(Position{X: 3})

	w.DestroyEntity(e1)

	if w.EntityAlive(e1) {
		t.Fatalf("e1 should be dead")
	}
	if !w.EntityAlive(e2) || !w.EntityAlive(e3) {
		t.Fatalf("e2/e3 should survive e1's destruction")
	}

	p2 := GetComponent(w, e2, pos)
	p3 := GetComponent(w, e3, pos)
	if p2 == nil || p2.X != 2 {
		t.Fatalf("e2's Position corrupted after swap-remove: %+v", p2)
	}
	if p3 == nil || p3.X != 3 {
		t.Fatalf("e3's Position corrupted after swap-remove: %+v", p3)
	}
}

func TestAddRemoveComponentTransitions(t *testing.T) {
	w := Factory.NewWorld()
	pos := RegisterComponent[Position](w)
	vel := RegisterComponent[Velocity](w)

	e, _ := w.AddEntity(Position{X: 1, Y: 1})
	if HasComponent(w, e, vel) {
		t.Fatalf("entity should not have Velocity yet")
	}

	AddComponent(w, e, vel, Velocity{X: 5})
	if !HasComponent(w, e, vel) {
		t.Fatalf("expected Velocity after AddComponent")
	}
	v := GetComponent(w, e, vel)
	if v == nil || v.X != 5 {
		t.Fatalf("unexpected velocity value: %+v", v)
	}
	p := GetComponent(w, e, pos)
	if p == nil || p.X != 1 {
		t.Fatalf("position lost across archetype transition: %+v", p)
	}

	RemoveComponent(w, e, pos)
	if HasComponent(w, e, pos) {
		t.Fatalf("expected Position removed")
	}
	if !HasComponent(w, e, vel) {
		t.Fatalf("velocity should survive removing position")
	}
}

func TestDisableComponentMasksQueryNotData(t *testing.T) {
	w := Factory.NewWorld()
	pos := RegisterComponent[Position](w)

	e, _ := w.AddEntity(Position{X: 9})
	w.DisableComponent(e, pos.ID())

	q := w.Query(Comp(pos))
	if q.Count() != 0 {
		t.Fatalf("disabled component should be masked from query, got count %d", q.Count())
	}

	// data itself is untouched
	p := GetComponent(w, e, pos)
	if p == nil || p.X != 9 {
		t.Fatalf("disabling must not remove the component's data: %+v", p)
	}

	w.EnableComponent(e, pos.ID())
	if w.Query(Comp(pos)).Count() != 1 {
		t.Fatalf("re-enabled component should match again")
	}
}
