package silo

// Relation traits are attached by adding a marker component to a
// type-entity — a lazily created shadow entity bound to a relation's type
// handle (§4.8). Two traits are specified: Exclusive and Cascade.
type exclusiveMarker struct{}
type cascadeMarker struct{}

type traitsEngine struct {
	world        *World
	exclusiveTag ComponentType[exclusiveMarker]
	cascadeTag   ComponentType[cascadeMarker]

	// cascadeBudget bounds the number of cascade-triggered destroys
	// enqueued within a single top-level destroy/flush pass, per the
	// "stop recursion, leave unresolved deletions" fatal-table entry for
	// cyclic Cascade (§4.10).
	cascadeBudget int
}

func newTraitsEngine(w *World) *traitsEngine {
	t := &traitsEngine{world: w}
	t.exclusiveTag = RegisterComponent[exclusiveMarker](w)
	t.cascadeTag = RegisterComponent[cascadeMarker](w)
	return t
}

// SetExclusive marks relationType Exclusive on w: any add of a pair
// (relationType, T') to an entity first removes every other pair
// (relationType, *) it already carries (§4.8, §6
// `add_component(world, RelationType, TraitKind)`).
func SetExclusive(w *World, relationType ComponentID) {
	w.traits.SetExclusive(relationType)
}

// SetCascade marks relationType Cascade on w: destroying an entity t
// enqueues destroys for every entity carrying pair (relationType, t).
func SetCascade(w *World, relationType ComponentID) {
	w.traits.SetCascade(relationType)
}

// typeEntityFor returns (creating if needed) the shadow entity anchoring
// traits for relationType.
func (t *traitsEngine) typeEntityFor(relationType ComponentID) EntityID {
	if e, ok := t.world.typeEntities[relationType]; ok {
		return e
	}
	e, _ := t.world.AddEntity()
	t.world.typeEntities[relationType] = e
	return e
}

// SetExclusive marks relationType Exclusive: any add of a pair (R, T') on
// an entity first removes every other pair (R, *) it already carries.
func (t *traitsEngine) SetExclusive(relationType ComponentID) {
	te := t.typeEntityFor(relationType)
	AddComponent(t.world, te, t.exclusiveTag, exclusiveMarker{})
}

// SetCascade marks relationType Cascade: destroying t enqueues destroys
// for every entity e carrying pair (R, t).
func (t *traitsEngine) SetCascade(relationType ComponentID) {
	te := t.typeEntityFor(relationType)
	AddComponent(t.world, te, t.cascadeTag, cascadeMarker{})
}

func (t *traitsEngine) hasExclusive(relationType ComponentID) bool {
	te, ok := t.world.typeEntities[relationType]
	if !ok {
		return false
	}
	return HasComponent(t.world, te, t.exclusiveTag)
}

func (t *traitsEngine) hasCascade(relationType ComponentID) bool {
	te, ok := t.world.typeEntities[relationType]
	if !ok {
		return false
	}
	return HasComponent(t.world, te, t.cascadeTag)
}

// removeOtherPairs strips every pair (relation, *) from e except keepID,
// applied immediately (even inside flush) as part of the same add op
// (§4.8).
func (t *traitsEngine) removeOtherPairs(e EntityID, relation uint32, keepID ComponentID) {
	rec := t.world.recordFor(e)
	if rec == nil {
		return
	}
	for _, pid := range rec.archetype.allPairsWithRelation(relation) {
		if pid != keepID {
			t.world.applyRemoveComponent(e, pid)
		}
	}
}

// onDestroy implements the Cascade trait (§4.8): collect every entity
// carrying a Cascade-tagged pair (R, target) and enqueue destroys for
// each. Recursion happens naturally because those destroys, once drained,
// call onDestroy again for their own targets.
func (t *traitsEngine) onDestroy(target EntityID) {
	targetIdx := uint32(EntityIndex(target))
	for _, a := range t.world.archetypes {
		for _, cid := range a.signature {
			if !IsPair(cid) || PairTarget(cid) != targetIdx {
				continue
			}
			relation := PairRelation(cid)
			if !t.hasCascade(ComponentID(relation)) {
				continue
			}
			for _, dependent := range a.entities {
				if !t.world.EntityAlive(dependent) {
					continue
				}
				if t.cascadeBudget <= 0 {
					debugf("silo: cascade budget exhausted destroying entity %d, leaving remaining dependents unresolved", target)
					return
				}
				t.cascadeBudget--
				t.world.deferred.enqueueDestroy(dependent)
			}
		}
	}
}
