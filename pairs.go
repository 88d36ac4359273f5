package silo

import (
	"reflect"
	"unsafe"
)

// Rel identifies the relation side of a pair: either a registered
// component type or a specific entity (§4.4 Pair target kinds, applied
// symmetrically to the relation per §6 "four variants").
type Rel struct {
	isEntity bool
	typeID   ComponentID
	entity   EntityID
}

// RelType builds a type-valued relation from a ComponentID.
func RelType(id ComponentID) Rel { return Rel{typeID: id} }

// RelEntity builds an entity-valued relation. Entity relations never carry
// trait markers or pair data (§4.3, §4.9 Open Question 3).
func RelEntity(e EntityID) Rel { return Rel{isEntity: true, entity: e} }

func (r Rel) value() uint32 {
	if r.isEntity {
		return uint32(EntityIndex(r.entity))
	}
	return uint32(r.typeID)
}

// Tgt identifies the target side of a pair: a registered component type or
// a specific entity (§4.3: "Target may be a component-kind ordinal or an
// entity index").
type Tgt struct {
	isEntity bool
	typeID   ComponentID
	entity   EntityID
}

// TgtType builds a type-valued target.
func TgtType(id ComponentID) Tgt { return Tgt{typeID: id} }

// TgtEntity builds an entity-valued target.
func TgtEntity(e EntityID) Tgt { return Tgt{isEntity: true, entity: e} }

func (t Tgt) value() uint32 {
	if t.isEntity {
		return uint32(EntityIndex(t.entity))
	}
	return uint32(t.typeID)
}

// PairArg is a component-list element recognized by AddEntity, carrying a
// pair to attach at construction time instead of a plain component value.
// Build one with Pair or PairWithData rather than constructing it directly.
// The Exclusive trait is not applied among PairArgs in the same AddEntity
// call (there is no prior pair to replace); passing two PairArgs for the
// same Exclusive relation leaves both attached.
type PairArg struct {
	rel        Rel
	tgt        Tgt
	hasData    bool
	data       []byte
	typeHandle reflect.Type
}

// Pair builds a tag-pair argument for AddEntity's variadic component list,
// e.g. AddEntity(Position{}, Pair(RelType(childOf.ID()), TgtEntity(parent))).
func Pair(r Rel, t Tgt) Component {
	return PairArg{rel: r, tgt: t}
}

// PairWithData builds a data-carrying pair argument for AddEntity's
// variadic component list. With an entity-valued relation it builds a tag
// pair and value is dropped.
func PairWithData[T any](r Rel, t Tgt, value T) Component {
	if r.isEntity {
		return PairArg{rel: r, tgt: t}
	}
	return PairArg{rel: r, tgt: t, hasData: true, data: valueBytes(value), typeHandle: reflect.TypeOf(value)}
}

// AddPair attaches the tag pair (r, t) to e, applying the Exclusive trait
// immediately (even mid-flush, per §4.8) before the structural add.
func AddPair(w *World, e EntityID, r Rel, t Tgt) {
	pid := MakePairID(r.value(), t.value())
	var relInfo *componentInfo
	if !r.isEntity {
		relInfo = w.registry.info(r.typeID)
	}
	w.registry.infoForPair(pid, relInfo)
	w.applyExclusive(e, r, pid)
	w.addComponentRaw(e, pid, nil)
}

// AddPairComponent attaches pair (r, t) to e carrying value as its data.
// Per the hard rule in §4.3/§9 Open Question 3, an entity-valued relation
// never carries data: for one, the pair is attached as a tag exactly as
// AddPair does and value is dropped.
func AddPairComponent[T any](w *World, e EntityID, r Rel, t Tgt, value T) {
	if r.isEntity {
		AddPair(w, e, r, t)
		return
	}
	pid := MakePairID(r.value(), t.value())
	if _, exists := w.registry.infoByID[pid]; !exists {
		var zero T
		w.registry.infoByID[pid] = &componentInfo{
			id:         pid,
			typeHandle: reflect.TypeOf(zero),
			size:       unsafe.Sizeof(value),
			maskSlot:   -1,
		}
	}
	w.applyExclusive(e, r, pid)
	w.addComponentRaw(e, pid, valueBytes(value))
}

func (w *World) applyExclusive(e EntityID, r Rel, newPairID ComponentID) {
	if r.isEntity {
		return
	}
	if !w.traits.hasExclusive(r.typeID) {
		return
	}
	w.traits.removeOtherPairs(e, uint32(r.typeID), newPairID)
}

// HasPair reports whether e carries the exact pair (r, t).
func HasPair(w *World, e EntityID, r Rel, t Tgt) bool {
	pid := MakePairID(r.value(), t.value())
	rec := w.recordFor(e)
	if rec == nil {
		return false
	}
	return rec.archetype.findComponent(pid) >= 0
}

// RemovePair removes the exact pair (r, t) from e; a no-op if absent.
func RemovePair(w *World, e EntityID, r Rel, t Tgt) {
	pid := MakePairID(r.value(), t.value())
	w.removeComponentRaw(e, pid)
}

// GetPairComponent returns a pointer to a data-carrying pair's value, or
// nil on a dead entity or a missing/tag pair.
func GetPairComponent[T any](w *World, e EntityID, r Rel, t Tgt) *T {
	pid := MakePairID(r.value(), t.value())
	rec := w.recordFor(e)
	if rec == nil {
		return nil
	}
	col := rec.archetype.columnFor(pid)
	if col == nil {
		return nil
	}
	row := int(rec.row)
	return (*T)(unsafe.Pointer(&col.data[row*col.elemSize]))
}

// GetRelationTargets returns every live entity e relates to via relation r,
// decoding each matching pair's 16-bit target field back to a live
// EntityID via the entity index (§6).
func GetRelationTargets(w *World, e EntityID, r Rel) []EntityID {
	rec := w.recordFor(e)
	if rec == nil {
		return nil
	}
	pairs := rec.archetype.allPairsWithRelation(r.value())
	out := make([]EntityID, 0, len(pairs))
	for _, pid := range pairs {
		idx := uint64(PairTarget(pid))
		if target, ok := w.index.liveEntityAt(idx); ok {
			out = append(out, target)
		}
	}
	return out
}
