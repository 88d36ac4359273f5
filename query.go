package silo

import (
	iter_util "github.com/TheBitDrifter/util/iter"
)

// Query is a reusable term list (§4.4/§4.5). Building one only stores the
// terms; each run resolves them and then costs a cache lookup, plus an
// archetype rescan when the archetype generation has moved.
type Query struct {
	world *World
	args  []TermArg
}

// NewQuery wraps args into a reusable Query against w; resolution happens
// on each Iter call.
func NewQuery(w *World, args ...TermArg) *Query {
	return &Query{world: w, args: args}
}

// Query builds (but does not yet run) a query over terms (§6).
func (w *World) Query(terms ...TermArg) *Query {
	return NewQuery(w, terms...)
}

// Iterator walks the rows of one resolved Query, row by row within an
// archetype and archetype by archetype (or depth-bucket by depth-bucket,
// when the query carries a cascade relation).
type Iterator struct {
	world *World
	cq    *cachedQuery

	groups   [][]*Archetype // either {cq.archetypes} or cq.depthGroups
	groupIdx int

	archetype *Archetype
	row       int

	bindings [MaxQueryBindings]EntityID

	started bool
	done    bool

	// includeDisabled turns off the per-row disabled-component mask.
	includeDisabled bool
}

// Iter resolves q (consulting the cache) and returns a fresh Iterator.
// Entering iteration flushes any pending deferred ops at depth 0 and bumps
// the world's iteration-depth gate (§4.7), so structural mutation during
// iteration is deferred rather than applied in place.
func (q *Query) Iter() *Iterator {
	ctx := resolve(q.world, q.args, false)
	cq := q.world.lookupOrBuild(ctx)

	it := &Iterator{world: q.world, cq: cq, row: -1}
	if len(cq.depthGroups) > 0 {
		it.groups = append([][]*Archetype(nil), cq.depthGroups...)
	} else {
		it.groups = [][]*Archetype{cq.archetypes}
	}
	for i := range it.bindings {
		it.bindings[i] = ReservedEntity
	}
	q.world.enterIteration()
	return it
}

// IterIncludeDisabled behaves like Iter but does not mask entities whose
// matched component is currently disabled on them (§4.5 Include_Disabled).
func (q *Query) IterIncludeDisabled() *Iterator {
	ctx := resolve(q.world, q.args, true)
	cq := q.world.lookupOrBuild(ctx)

	it := &Iterator{world: q.world, cq: cq, row: -1, includeDisabled: true}
	if len(cq.depthGroups) > 0 {
		it.groups = append([][]*Archetype(nil), cq.depthGroups...)
	} else {
		it.groups = [][]*Archetype{cq.archetypes}
	}
	for i := range it.bindings {
		it.bindings[i] = ReservedEntity
	}
	q.world.enterIteration()
	return it
}

// Next advances the iterator to the next matching row, returning false
// (and releasing the iteration-depth gate) once exhausted.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	for {
		if it.archetype != nil && it.row+1 < len(it.archetype.entities) {
			it.row++
			if it.rowDisabled() {
				continue
			}
			it.bindCaptures()
			return true
		}
		if !it.advanceArchetype() {
			it.finish()
			return false
		}
		it.row = -1
	}
}

// advanceArchetype moves to the next non-empty archetype within the
// current depth group, then to the next non-empty group. Returns false
// once every group is exhausted.
func (it *Iterator) advanceArchetype() bool {
	for it.groupIdx < len(it.groups) {
		group := it.groups[it.groupIdx]
		for len(group) > 0 {
			a := group[0]
			group = group[1:]
			it.groups[it.groupIdx] = group
			if len(a.entities) > 0 {
				it.archetype = a
				return true
			}
		}
		it.groupIdx++
	}
	return false
}

// rowDisabled reports whether the current row's entity has masked one of
// the query's required components (plain or exact pair), per §4.5's
// Include_Disabled rule; always false for an IterIncludeDisabled iterator.
// Disabled components are per-entity, so this check happens here rather
// than at the archetype level (matcher.go).
func (it *Iterator) rowDisabled() bool {
	if it.includeDisabled || it.cq == nil || len(it.cq.requiredCIDs) == 0 {
		return false
	}
	e := it.archetype.entities[it.row]
	set, ok := it.world.disabled[EntityIndex(e)]
	if !ok {
		return false
	}
	for _, cid := range it.cq.requiredCIDs {
		if _, disabled := set[cid]; disabled {
			return true
		}
	}
	return false
}

// bindCaptures fills the Var capture slots for the current row from the
// matched pair targets (§4.4/§6 var bindings).
func (it *Iterator) bindCaptures() {
	if len(it.cq.captures) == 0 {
		return
	}
	for _, cap := range it.cq.captures {
		if cap.varSlot >= MaxQueryBindings {
			continue
		}
		pid, found := it.archetype.findPairWithRelation(uint32(cap.relation))
		if !found {
			continue
		}
		target, ok := it.world.index.liveEntityAt(uint64(PairTarget(pid)))
		if ok {
			it.bindings[cap.varSlot] = target
		}
	}
}

// Binding returns the entity captured into slot, or ReservedEntity if
// nothing was captured there for the current row.
func (it *Iterator) Binding(slot uint8) EntityID {
	if slot >= MaxQueryBindings {
		return ReservedEntity
	}
	return it.bindings[slot]
}

// Entity returns the entity at the iterator's current row.
func (it *Iterator) Entity() EntityID {
	return it.archetype.entities[it.row]
}

// Archetype returns the archetype backing the current row, for callers
// using ComponentType.Get directly.
func (it *Iterator) Archetype() *Archetype {
	return it.archetype
}

// Row returns the current row index within Archetype().
func (it *Iterator) Row() int {
	return it.row
}

// Stop ends iteration early, still releasing the iteration-depth gate.
// Safe to call multiple times.
func (it *Iterator) Stop() {
	if !it.done {
		it.finish()
	}
}

func (it *Iterator) finish() {
	it.done = true
	it.archetype = nil
	it.world.exitIteration()
}

// Count resolves q and returns the number of matching rows by running a
// full iteration, so the iteration gate is released before it returns.
func (q *Query) Count() int {
	it := q.Iter()
	n := 0
	for it.Next() {
		n++
	}
	return n
}

// Each resolves q and invokes fn once per matching row, bracketing the
// callback loop with the iteration-depth gate: fn may freely call
// DestroyEntity or Add/RemoveComponent, and those mutations land as
// deferred ops applied only once Each's loop exits.
func (q *Query) Each(fn func(it *Iterator)) {
	it := q.Iter()
	for it.Next() {
		fn(it)
	}
}

// CollectEntities drains every matching row's entity into a slice, built
// on top of util/iter's generic Collect helper over an iter.Seq[EntityID]
// adapter.
func (q *Query) CollectEntities() []EntityID {
	it := q.Iter()
	seq := func(yield func(EntityID) bool) {
		for it.Next() {
			if !yield(it.Entity()) {
				it.Stop()
				return
			}
		}
	}
	return iter_util.Collect(seq)
}
