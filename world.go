package silo

import (
	"encoding/binary"
	"reflect"
	"sort"
	"unsafe"
)

// cascadeBudgetPerPass bounds the total number of Cascade-triggered
// destroys a single top-level DestroyEntity or Flush call may enqueue,
// guarding against pathological relation cycles (§4.10).
const cascadeBudgetPerPass = 1 << 20

// entityRecord is the per-entity pointer to its current archetype and row
// within it; row == -1 denotes a dead entity (§3).
type entityRecord struct {
	archetype *Archetype
	row       int32
}

// World owns every subsystem described in §3: the registry, entity index,
// records, archetype list, deferred op queue, observer list, query cache,
// type-entity map, disabled-component map, the archetype-generation
// counter and the iteration-depth counter.
type World struct {
	registry *registry
	index    *entityIndex
	records  []entityRecord

	archetypes []*Archetype
	archByKey  map[string]*Archetype
	empty      *Archetype

	deferred    *opQueue
	observers   []*observerReg
	cache       *queryCache
	traits      *traitsEngine

	// typeEntities anchors relation traits on type-level relations: a
	// lazily created shadow entity per relation type handle (§4.8).
	typeEntities map[ComponentID]EntityID

	// disabled is the per-entity set of ComponentIDs masked from queries
	// unless Include_Disabled is requested, keyed by entity index.
	disabled map[uint64]map[ComponentID]struct{}

	archetypeGeneration uint64
	iterationDepth      int
	isFlushing          bool

	// dispatchingObservers is nonzero while fireObservers is running a
	// callback, forcing any mutation the callback triggers onto the
	// deferred queue rather than letting it reenter an in-progress
	// archetype move (§9 Design Notes: cyclic observer -> mutation risk).
	dispatchingObservers int

	pendingEmptyCleanup map[ArchetypeID]*Archetype
}

func newWorld() *World {
	w := &World{
		registry:            newRegistry(),
		index:                newEntityIndex(),
		archByKey:            make(map[string]*Archetype),
		deferred:             newOpQueue(),
		cache:                newQueryCache(),
		typeEntities:         make(map[ComponentID]EntityID),
		disabled:             make(map[uint64]map[ComponentID]struct{}),
		pendingEmptyCleanup:  make(map[ArchetypeID]*Archetype),
	}
	w.traits = newTraitsEngine(w)
	w.empty = newArchetypeFromSignature(w, nil)
	w.archByKey[signatureKey(nil)] = w.empty
	w.archetypes = append(w.archetypes, w.empty)
	return w
}

func signatureKey(sig []ComponentID) string {
	b := make([]byte, len(sig)*4)
	for i, id := range sig {
		binary.LittleEndian.PutUint32(b[i*4:], uint32(id))
	}
	return string(b)
}

// getOrCreateArchetype returns the canonical archetype for sig, creating it
// (and bumping archetype_generation) if it doesn't exist yet. sig must
// already be sorted with no duplicates.
func (w *World) getOrCreateArchetype(sig []ComponentID) *Archetype {
	key := signatureKey(sig)
	if a, ok := w.archByKey[key]; ok {
		return a
	}
	a := newArchetypeFromSignature(w, sig)
	w.archByKey[key] = a
	w.archetypes = append(w.archetypes, a)
	w.archetypeGeneration++
	return a
}

func (w *World) recordFor(e EntityID) *entityRecord {
	if !w.index.alive(e) {
		return nil
	}
	idx := EntityIndex(e)
	if int(idx) >= len(w.records) {
		return nil
	}
	r := &w.records[idx]
	if r.row < 0 {
		return nil
	}
	return r
}

func (w *World) ensureRecordCap(idx uint64) {
	if int(idx) < len(w.records) {
		return
	}
	newRecords := make([]entityRecord, idx+1)
	copy(newRecords, w.records)
	for i := len(w.records); i < len(newRecords); i++ {
		newRecords[i].row = -1
	}
	w.records = newRecords
}

func (w *World) setRecord(e EntityID, a *Archetype, row int) {
	idx := EntityIndex(e)
	w.ensureRecordCap(idx)
	w.records[idx] = entityRecord{archetype: a, row: int32(row)}
}

func (w *World) setRecordRow(e EntityID, row int) {
	idx := EntityIndex(e)
	if int(idx) < len(w.records) {
		w.records[idx].row = int32(row)
	}
}

func (w *World) clearRecord(e EntityID) {
	idx := EntityIndex(e)
	if int(idx) < len(w.records) {
		w.records[idx] = entityRecord{row: -1}
	}
}

// --- Entity lifecycle -------------------------------------------------

// componentBytes snapshots a heterogeneous Component value's raw bytes via
// reflection, since AddEntity's variadic signature erases the static type.
// Tag components (size 0) yield nil data.
func componentBytes(c Component) (reflect.Type, []byte) {
	v := reflect.ValueOf(c)
	t := v.Type()
	size := int(t.Size())
	if size == 0 {
		return t, nil
	}
	tmp := reflect.New(t).Elem()
	tmp.Set(v)
	ptr := unsafe.Pointer(tmp.UnsafeAddr())
	data := make([]byte, size)
	copy(data, unsafe.Slice((*byte)(ptr), size))
	return t, data
}

func valueBytes[T any](v T) []byte {
	size := unsafe.Sizeof(v)
	if size == 0 {
		return nil
	}
	b := make([]byte, size)
	copy(b, unsafe.Slice((*byte)(unsafe.Pointer(&v)), size))
	return b
}

// AddEntity creates a new entity carrying the given initial component
// values in one archetype transition (§6). A PairArg element (built via
// Pair or PairWithData) attaches a pair instead of registering a plain
// component type for it.
func (w *World) AddEntity(components ...Component) (EntityID, error) {
	type kv struct {
		id   ComponentID
		data []byte
	}
	entries := make([]kv, 0, len(components))
	for _, c := range components {
		if p, ok := c.(PairArg); ok {
			pid := MakePairID(p.rel.value(), p.tgt.value())
			if p.hasData {
				if _, exists := w.registry.infoByID[pid]; !exists {
					w.registry.infoByID[pid] = &componentInfo{
						id:         pid,
						typeHandle: p.typeHandle,
						size:       uintptr(len(p.data)),
						maskSlot:   -1,
					}
				}
			} else {
				var relInfo *componentInfo
				if !p.rel.isEntity {
					relInfo = w.registry.info(p.rel.typeID)
				}
				w.registry.infoForPair(pid, relInfo)
			}
			entries = append(entries, kv{id: pid, data: p.data})
			continue
		}
		t, data := componentBytes(c)
		id := w.registry.registerType(t)
		entries = append(entries, kv{id: id, data: data})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	sig := make([]ComponentID, 0, len(entries))
	dedup := entries[:0]
	for i, e := range entries {
		if i > 0 && e.id == entries[i-1].id {
			dedup[len(dedup)-1] = e // later value wins, like an in-place overwrite
			continue
		}
		dedup = append(dedup, e)
		sig = append(sig, e.id)
	}

	e := w.index.create()
	a := w.getOrCreateArchetype(sig)
	row := a.addEntity(e)
	w.setRecord(e, a, row)

	for _, kv := range dedup {
		if col := a.columnFor(kv.id); col != nil && kv.data != nil {
			copy(col.data[row*col.elemSize:(row+1)*col.elemSize], kv.data)
		}
	}

	w.fireObservers(e, nil, a)
	return e, nil
}

// EntityAlive reports whether e is alive.
func (w *World) EntityAlive(e EntityID) bool {
	return w.index.alive(e)
}

// DestroyEntity removes e immediately, or enqueues a Deferred_Destroy if
// iteration is active (§4.7). Idempotent on dead IDs.
func (w *World) DestroyEntity(e EntityID) {
	if w.iterationDepth > 0 || w.isFlushing || w.dispatchingObservers > 0 {
		w.deferred.enqueueDestroy(e)
		return
	}
	w.traits.cascadeBudget = cascadeBudgetPerPass
	w.applyDestroy(e)
}

func (w *World) applyDestroy(e EntityID) {
	rec := w.recordFor(e)
	if rec == nil {
		return
	}
	a := rec.archetype
	row := int(rec.row)

	// Cascade trait: gather dependents before the entity's own record is
	// torn down, so the archetype signature scans still see consistent state.
	w.traits.onDestroy(e)

	moved, ok := a.removeEntity(row)
	if ok {
		w.setRecordRow(moved, row)
	}
	w.clearRecord(e)
	w.index.destroy(e)
	delete(w.disabled, EntityIndex(e))

	w.fireObservers(e, a, nil)
	w.maybeMarkEmpty(a)
}

func (w *World) maybeMarkEmpty(a *Archetype) {
	if !Config.AutoCleanup || a == w.empty {
		return
	}
	if len(a.entities) == 0 {
		w.pendingEmptyCleanup[a.id] = a
	}
}

// --- Component CRUD -----------------------------------------------------

// AddComponent sets (or overwrites) T's value on e. Deferred if iteration
// is active (§4.7).
func AddComponent[T any](w *World, e EntityID, ct ComponentType[T], value T) {
	w.addComponentRaw(e, ct.id, valueBytes(value))
}

// EnqueueAddComponent always defers, regardless of iteration depth, for
// callers that want deferral even outside an active iteration scope.
func EnqueueAddComponent[T any](w *World, e EntityID, ct ComponentType[T], value T) {
	w.deferred.enqueueAdd(e, ct.id, valueBytes(value))
}

// RemoveComponent removes T from e, a no-op if absent (§4.7).
func RemoveComponent[T any](w *World, e EntityID, ct ComponentType[T]) {
	w.removeComponentRaw(e, ct.id)
}

func EnqueueRemoveComponent[T any](w *World, e EntityID, ct ComponentType[T]) {
	w.deferred.enqueueRemove(e, ct.id)
}

// HasComponent reports whether e currently (as of the last flush) carries
// a value for T.
func HasComponent[T any](w *World, e EntityID, ct ComponentType[T]) bool {
	rec := w.recordFor(e)
	if rec == nil {
		return false
	}
	return rec.archetype.findComponent(ct.id) >= 0
}

func (w *World) addComponentRaw(e EntityID, cid ComponentID, data []byte) {
	if w.iterationDepth > 0 || w.isFlushing || w.dispatchingObservers > 0 {
		w.deferred.enqueueAdd(e, cid, data)
		return
	}
	w.applyAddComponent(e, cid, data)
}

func (w *World) applyAddComponent(e EntityID, cid ComponentID, data []byte) {
	rec := w.recordFor(e)
	if rec == nil {
		return
	}
	a := rec.archetype
	if a.findComponent(cid) >= 0 {
		if col := a.columnFor(cid); col != nil && data != nil {
			row := int(rec.row)
			copy(col.data[row*col.elemSize:(row+1)*col.elemSize], data)
		}
		return
	}
	target, ed := w.transitionAdd(a, cid)
	oldRow := int(rec.row)
	newRow := moveRow(target, a, oldRow, ed)
	if col := target.columnFor(cid); col != nil && data != nil {
		copy(col.data[newRow*col.elemSize:(newRow+1)*col.elemSize], data)
	}
	moved, ok := a.removeEntity(oldRow)
	if ok {
		w.setRecordRow(moved, oldRow)
	}
	w.setRecord(e, target, newRow)
	w.fireObservers(e, a, target)
	w.maybeMarkEmpty(a)
}

func (w *World) removeComponentRaw(e EntityID, cid ComponentID) {
	if w.iterationDepth > 0 || w.isFlushing || w.dispatchingObservers > 0 {
		w.deferred.enqueueRemove(e, cid)
		return
	}
	w.applyRemoveComponent(e, cid)
}

func (w *World) applyRemoveComponent(e EntityID, cid ComponentID) {
	rec := w.recordFor(e)
	if rec == nil {
		return
	}
	a := rec.archetype
	if a.findComponent(cid) < 0 {
		return
	}
	target, ed := w.transitionRemove(a, cid)
	oldRow := int(rec.row)
	newRow := moveRow(target, a, oldRow, ed)
	moved, ok := a.removeEntity(oldRow)
	if ok {
		w.setRecordRow(moved, oldRow)
	}
	w.setRecord(e, target, newRow)
	w.fireObservers(e, a, target)
	w.maybeMarkEmpty(a)
}

// GetComponent returns a pointer to T's value on e, or nil on a dead entity
// or missing component (§4.10 sentinel rule).
func GetComponent[T any](w *World, e EntityID, ct ComponentType[T]) *T {
	return ct.GetFromEntity(w, e)
}

// --- Disabled components --------------------------------------------------

// DisableComponent masks cid from query matching for e without removing
// its data or moving it across archetypes.
func (w *World) DisableComponent(e EntityID, cid ComponentID) {
	if !w.EntityAlive(e) {
		return
	}
	idx := EntityIndex(e)
	set, ok := w.disabled[idx]
	if !ok {
		set = make(map[ComponentID]struct{})
		w.disabled[idx] = set
	}
	set[cid] = struct{}{}
}

// EnableComponent un-masks cid for e.
func (w *World) EnableComponent(e EntityID, cid ComponentID) {
	if !w.EntityAlive(e) {
		return
	}
	if set, ok := w.disabled[EntityIndex(e)]; ok {
		delete(set, cid)
	}
}

// IsComponentDisabled reports whether cid is currently masked on e.
func (w *World) IsComponentDisabled(e EntityID, cid ComponentID) bool {
	if !w.EntityAlive(e) {
		return false
	}
	set, ok := w.disabled[EntityIndex(e)]
	if !ok {
		return false
	}
	_, disabled := set[cid]
	return disabled
}

// GetTable returns the archetype's column as a typed slice (§6).
func GetTable[T any](ct ComponentType[T], a *Archetype) []T {
	col := a.columnFor(ct.id)
	if col == nil || col.elemSize == 0 {
		return nil
	}
	n := len(a.entities)
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&col.data[0])), n)
}

// GetEntities returns the archetype's entity list.
func GetEntities(a *Archetype) []EntityID {
	return a.Entities()
}

// --- World lifecycle ------------------------------------------------------

// Flush applies every deferred op in enqueue order, then sweeps empty
// archetypes (§4.7, invariant 6). A second consecutive flush is a no-op.
func (w *World) Flush() {
	w.flush()
}

func (w *World) flush() {
	if w.isFlushing {
		return
	}
	if !w.deferred.empty() {
		w.isFlushing = true
		w.traits.cascadeBudget = cascadeBudgetPerPass
		w.deferred.drain(w)
		w.isFlushing = false
	}
	w.sweepEmptyArchetypes()
}

func (w *World) sweepEmptyArchetypes() {
	if len(w.pendingEmptyCleanup) == 0 {
		return
	}
	for id, a := range w.pendingEmptyCleanup {
		if len(a.entities) != 0 || a == w.empty {
			delete(w.pendingEmptyCleanup, id)
			continue
		}
		key := signatureKey(a.signature)
		delete(w.archByKey, key)
		for i, existing := range w.archetypes {
			if existing == a {
				w.archetypes = append(w.archetypes[:i], w.archetypes[i+1:]...)
				break
			}
		}
		// Drop cached transition edges into the removed archetype so later
		// transitions go through getOrCreateArchetype again.
		for _, other := range w.archetypes {
			for cid, ed := range other.addEdges {
				if ed.target == a {
					delete(other.addEdges, cid)
				}
			}
			for cid, ed := range other.removeEdges {
				if ed.target == a {
					delete(other.removeEdges, cid)
				}
			}
		}
		delete(w.pendingEmptyCleanup, id)
	}
	w.archetypeGeneration++
}

// ClearQueryCache drops every cached query result, forcing a rescan on
// next lookup.
func (w *World) ClearQueryCache() {
	debugf("silo: clearing query cache (%d entries)", len(w.cache.entries))
	w.cache.clear()
}

// enterIteration implements the iteration-depth protocol (§4.7): entering
// at depth 0 flushes first, then increments; recursive flush is forbidden
// by isFlushing.
func (w *World) enterIteration() {
	if w.iterationDepth == 0 {
		w.flush()
	}
	w.iterationDepth++
}

func (w *World) exitIteration() {
	w.iterationDepth--
	assert(w.iterationDepth >= 0, "iteration depth went negative")
	if w.iterationDepth == 0 {
		w.flush()
	}
}
