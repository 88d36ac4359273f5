package silo

import "testing"

func TestObserverOnAddOnRemove(t *testing.T) {
	w := Factory.NewWorld()
	pos := RegisterComponent[Position](w)
	vel := RegisterComponent[Velocity](w)

	var added, removed []EntityID
	Observe(w, OnAddObserver(pos.ID()), func(w *World, e EntityID) {
		added = append(added, e)
	})
	Observe(w, OnRemoveObserver(pos.ID()), func(w *World, e EntityID) {
		removed = append(removed, e)
	})

	e, _ := w.AddEntity(Position{}, Velocity{})
	if len(added) != 1 || added[0] != e {
		t.Fatalf("expected OnAdd(Position) to fire once for e, got %v", added)
	}

	AddComponent(w, e, vel, Velocity{X: 1}) // already has Velocity; no Position transition
	if len(added) != 1 {
		t.Fatalf("OnAdd(Position) must not re-fire on an unrelated component overwrite, got %v", added)
	}

	RemoveComponent(w, e, pos)
	if len(removed) != 1 || removed[0] != e {
		t.Fatalf("expected OnRemove(Position) to fire once for e, got %v", removed)
	}
}

func TestObserverUnobserve(t *testing.T) {
	w := Factory.NewWorld()
	pos := RegisterComponent[Position](w)

	fired := 0
	id := Observe(w, OnAddObserver(pos.ID()), func(w *World, e EntityID) {
		fired++
	})
	w.AddEntity(Position{})
	if fired != 1 {
		t.Fatalf("expected 1 firing, got %d", fired)
	}

	Unobserve(w, id)
	w.AddEntity(Position{})
	if fired != 1 {
		t.Fatalf("expected no further firing after Unobserve, got %d", fired)
	}
}

func TestObserverCallbackMutationDefersSafely(t *testing.T) {
	// An observer reacting to one component's add by adding another
	// component must not cause a reentrant archetype move mid-transition;
	// the second add should land only once the outer transition settles.
	w := Factory.NewWorld()
	pos := RegisterComponent[Position](w)
	vel := RegisterComponent[Velocity](w)

	Observe(w, OnAddObserver(pos.ID()), func(w *World, e EntityID) {
		AddComponent(w, e, vel, Velocity{X: 7})
	})

	e, _ := w.AddEntity(Position{})
	if HasComponent(w, e, vel) {
		t.Fatalf("observer-triggered add must defer, not apply synchronously mid-transition")
	}
	w.Flush()
	if !HasComponent(w, e, vel) {
		t.Fatalf("expected observer-triggered add to land after flush")
	}
	v := GetComponent(w, e, vel)
	if v == nil || v.X != 7 {
		t.Fatalf("unexpected velocity value after deferred observer add: %+v", v)
	}
}
