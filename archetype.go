package silo

import (
	"hash/fnv"
	"sort"

	"github.com/TheBitDrifter/mask"
)

// ArchetypeID is the FNV-1a hash of an archetype's sorted signature (§3).
type ArchetypeID uint32

const columnNone int32 = -1

// edge caches one "add C" or "remove C" transition target plus the
// precomputed per-column copy map, so repeat transitions are an
// O(target_columns) memcpy instead of a fresh signature diff (§4.2).
type edge struct {
	target *Archetype
	// columnMap[i] is, for the i-th column of target, the source column
	// index to copy from, or columnNone to zero-initialize (new column).
	columnMap []int32
}

// Archetype owns the signature, column-major storage and transition edges
// for every entity sharing one exact component set (§3).
type Archetype struct {
	id        ArchetypeID
	signature []ComponentID // strictly sorted, no duplicates

	columns []Column
	// columnIndices[i] maps signature[i] -> index into columns, or
	// columnNone for a tag (size-0) component.
	columnIndices []int32

	entities []EntityID

	addEdges    map[ComponentID]*edge
	removeEdges map[ComponentID]*edge

	// fastMask is the bitset fast-path over non-pair components whose
	// registry slot fell within Config.MaxMaskSlots (§9 mask wiring).
	fastMask mask.Mask

	world *World
}

func archetypeHash(signature []ComponentID) ArchetypeID {
	h := fnv.New32a()
	b := make([]byte, 4)
	for _, id := range signature {
		b[0] = byte(id)
		b[1] = byte(id >> 8)
		b[2] = byte(id >> 16)
		b[3] = byte(id >> 24)
		_, _ = h.Write(b)
	}
	return ArchetypeID(h.Sum32())
}

func newArchetypeFromSignature(w *World, signature []ComponentID) *Archetype {
	a := &Archetype{
		signature:   signature,
		addEdges:    make(map[ComponentID]*edge),
		removeEdges: make(map[ComponentID]*edge),
		world:       w,
	}
	a.columnIndices = make([]int32, len(signature))
	for i, cid := range signature {
		info := w.registry.info(cid)
		if info != nil && info.size > 0 {
			a.columns = append(a.columns, *newColumn(int(info.size)))
			a.columnIndices[i] = int32(len(a.columns) - 1)
		} else {
			a.columnIndices[i] = columnNone
		}
		if info != nil && info.maskSlot >= 0 && !IsPair(cid) {
			a.fastMask.Mark(uint32(info.maskSlot))
		}
	}
	a.id = archetypeHash(signature)
	return a
}

// ID returns the archetype's stable hash-derived identifier.
func (a *Archetype) ID() ArchetypeID { return a.id }

// Signature returns the sorted component-id set (read-only; callers must
// not mutate).
func (a *Archetype) Signature() []ComponentID { return a.signature }

// Entities returns the archetype's entity list in insertion/row order.
func (a *Archetype) Entities() []EntityID { return a.entities }

// Len returns the number of rows (entities) currently stored.
func (a *Archetype) Len() int { return len(a.entities) }

// findComponent does binary search on the sorted signature; O(log|A|).
func (a *Archetype) findComponent(cid ComponentID) int {
	lo, hi := 0, len(a.signature)
	for lo < hi {
		mid := (lo + hi) / 2
		if a.signature[mid] < cid {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(a.signature) && a.signature[lo] == cid {
		return lo
	}
	return -1
}

func (a *Archetype) hasColumn(cid ComponentID) bool {
	i := a.findComponent(cid)
	return i >= 0 && a.columnIndices[i] != columnNone
}

// columnFor returns the Column backing cid in this archetype, or nil.
func (a *Archetype) columnFor(cid ComponentID) *Column {
	i := a.findComponent(cid)
	if i < 0 || a.columnIndices[i] == columnNone {
		return nil
	}
	return &a.columns[a.columnIndices[i]]
}

// findPairWithRelation scans the sorted signature for the first pair id
// whose relation matches r, using the contiguous-bucket shortcut from §4.3:
// signatures are sorted and pair ids sit above all plain ids, so relation r
// occupies [low, high] and the scan can stop once id > high.
func (a *Archetype) findPairWithRelation(r uint32) (ComponentID, bool) {
	low, high := pairWildcardBucket(r)
	idx := sort.Search(len(a.signature), func(i int) bool { return a.signature[i] >= low })
	if idx < len(a.signature) && a.signature[idx] <= high {
		return a.signature[idx], true
	}
	return 0, false
}

// allPairsWithRelation collects every pair id on this archetype whose
// relation is r (used by get_relation_targets and the Exclusive trait).
func (a *Archetype) allPairsWithRelation(r uint32) []ComponentID {
	low, high := pairWildcardBucket(r)
	start := sort.Search(len(a.signature), func(i int) bool { return a.signature[i] >= low })
	var out []ComponentID
	for i := start; i < len(a.signature) && a.signature[i] <= high; i++ {
		out = append(out, a.signature[i])
	}
	return out
}

// addEntity appends e to the entity list and grows all columns by one
// zeroed element; returns the new row.
func (a *Archetype) addEntity(e EntityID) int {
	a.entities = append(a.entities, e)
	for i := range a.columns {
		a.columns[i].grow()
	}
	return len(a.entities) - 1
}

// removeEntity performs swap-remove at row: if row is not last, the last
// row's payload is copied over it in every column and the moved entity's
// record is updated by the caller using the returned (movedEntity, ok).
func (a *Archetype) removeEntity(row int) (movedEntity EntityID, moved bool) {
	last := len(a.entities) - 1
	assert(row >= 0 && row <= last, "remove row out of bounds")
	if row != last {
		for i := range a.columns {
			a.columns[i].copyRow(row, last)
		}
		a.entities[row] = a.entities[last]
		movedEntity = a.entities[row]
		moved = true
	}
	a.entities = a.entities[:last]
	for i := range a.columns {
		a.columns[i].truncateLast()
	}
	return
}

// sortedWith returns a freshly sorted signature with cid inserted,
// assuming cid is not already present (caller-checked).
func sortedWith(sig []ComponentID, cid ComponentID) []ComponentID {
	out := make([]ComponentID, len(sig)+1)
	i := 0
	for i < len(sig) && sig[i] < cid {
		out[i] = sig[i]
		i++
	}
	out[i] = cid
	copy(out[i+1:], sig[i:])
	return out
}

// sortedWithout returns a freshly sorted signature with cid removed.
func sortedWithout(sig []ComponentID, cid ComponentID) []ComponentID {
	out := make([]ComponentID, 0, len(sig)-1)
	for _, id := range sig {
		if id != cid {
			out = append(out, id)
		}
	}
	return out
}

// buildColumnMap computes, for each column of target, the source column
// index in src to copy from, or columnNone to zero-init (§4.2).
func buildColumnMap(src, target *Archetype) []int32 {
	m := make([]int32, len(target.columns))
	for ti := range target.signature {
		tcol := target.columnIndices[ti]
		if tcol == columnNone {
			continue
		}
		si := src.findComponent(target.signature[ti])
		if si >= 0 && src.columnIndices[si] != columnNone {
			m[tcol] = src.columnIndices[si]
		} else {
			m[tcol] = columnNone
		}
	}
	return m
}

// transitionAdd returns the archetype reached by adding cid to a, creating
// it (and the reverse edge) lazily on first use.
func (w *World) transitionAdd(a *Archetype, cid ComponentID) (*Archetype, *edge) {
	if e, ok := a.addEdges[cid]; ok {
		return e.target, e
	}
	newSig := sortedWith(a.signature, cid)
	target := w.getOrCreateArchetype(newSig)

	fwd := &edge{target: target, columnMap: buildColumnMap(a, target)}
	a.addEdges[cid] = fwd

	if _, ok := target.removeEdges[cid]; !ok {
		rev := &edge{target: a, columnMap: buildColumnMap(target, a)}
		target.removeEdges[cid] = rev
	}
	return target, fwd
}

// transitionRemove returns the archetype reached by removing cid from a.
func (w *World) transitionRemove(a *Archetype, cid ComponentID) (*Archetype, *edge) {
	if e, ok := a.removeEdges[cid]; ok {
		return e.target, e
	}
	newSig := sortedWithout(a.signature, cid)
	target := w.getOrCreateArchetype(newSig)

	fwd := &edge{target: target, columnMap: buildColumnMap(a, target)}
	a.removeEdges[cid] = fwd

	if _, ok := target.addEdges[cid]; !ok {
		rev := &edge{target: a, columnMap: buildColumnMap(target, a)}
		target.addEdges[cid] = rev
	}
	return target, fwd
}

// moveRow moves the entity at srcRow of src into dst using e's column map,
// copying cell-by-cell, zero-initializing any column marked columnNone.
// Returns the new row in dst.
func moveRow(dst, src *Archetype, srcRow int, e *edge) int {
	dstRow := dst.addEntity(src.entities[srcRow])
	for ci := range dst.columns {
		srcCol := e.columnMap[ci]
		if srcCol == columnNone {
			dst.columns[ci].zeroRow(dstRow)
		} else {
			dst.columns[ci].copyRowFrom(dstRow, &src.columns[srcCol], srcRow)
		}
	}
	return dstRow
}
