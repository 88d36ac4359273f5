package silo

import "testing"

func TestCascadeDestroy(t *testing.T) {
	// S7 — cascade: destroying the grandparent must (after flush) also
	// destroy parent and child, recursively.
	w := Factory.NewWorld()
	childOf := RegisterComponent[ChildOf](w)
	SetCascade(w, childOf.ID())

	grandparent, _ := w.AddEntity()
	parent, _ := w.AddEntity()
	child, _ := w.AddEntity()

	AddPair(w, parent, RelType(childOf.ID()), TgtEntity(grandparent))
	AddPair(w, child, RelType(childOf.ID()), TgtEntity(parent))

	w.DestroyEntity(grandparent)
	w.Flush()

	if w.EntityAlive(grandparent) || w.EntityAlive(parent) || w.EntityAlive(child) {
		t.Fatalf("expected grandparent, parent and child all dead after cascade flush")
	}
}

func TestCascadeDoesNotDestroyUnrelated(t *testing.T) {
	w := Factory.NewWorld()
	childOf := RegisterComponent[ChildOf](w)
	SetCascade(w, childOf.ID())

	root, _ := w.AddEntity()
	dependent, _ := w.AddEntity()
	unrelated, _ := w.AddEntity()
	AddPair(w, dependent, RelType(childOf.ID()), TgtEntity(root))

	w.DestroyEntity(root)
	w.Flush()

	if w.EntityAlive(root) || w.EntityAlive(dependent) {
		t.Fatalf("expected root and dependent dead")
	}
	if !w.EntityAlive(unrelated) {
		t.Fatalf("unrelated entity must survive an unrelated cascade")
	}
}
