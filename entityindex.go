package silo

// entityIndex is the sparse-dense map of alive/recyclable EntityIDs
// described in §3/§4.1. dense holds the alive prefix (length aliveCount)
// followed by a dead suffix awaiting recycling; sparse maps an entity index
// to its position in dense.
type entityIndex struct {
	dense     []EntityID
	sparse    []uint32 // index -> position in dense
	aliveCount int
	maxID      uint64
}

func newEntityIndex() *entityIndex {
	ei := &entityIndex{}
	// Reserve slot 0 so the first allocatable index is 1, per §6 Constants.
	ei.dense = append(ei.dense, ReservedEntity)
	ei.sparse = append(ei.sparse, 0)
	ei.maxID = 0
	ei.aliveCount = 0
	return ei
}

// create allocates or recycles an EntityID in amortized O(1). Position 0 of
// dense is permanently reserved (see ReservedEntity), so the alive prefix
// occupies positions [1, aliveCount] and the dead suffix [aliveCount+1, len).
func (ei *entityIndex) create() EntityID {
	if ei.aliveCount+1 < len(ei.dense) {
		pos := ei.aliveCount + 1
		dying := ei.dense[pos]
		gen := EntityGeneration(dying) + 1
		idx := EntityIndex(dying)
		fresh := MakeEntityID(idx, gen)
		ei.dense[pos] = fresh
		ei.sparse[idx] = uint32(pos)
		ei.aliveCount++
		return fresh
	}
	ei.maxID++
	idx := ei.maxID
	fresh := MakeEntityID(idx, 0)
	ei.dense = append(ei.dense, fresh)
	if int(idx) >= len(ei.sparse) {
		newSparse := make([]uint32, idx+1)
		copy(newSparse, ei.sparse)
		ei.sparse = newSparse
	}
	ei.sparse[idx] = uint32(len(ei.dense) - 1)
	ei.aliveCount++
	return fresh
}

// destroy retires e. Idempotent on dead IDs.
func (ei *entityIndex) destroy(e EntityID) {
	if !ei.alive(e) {
		return
	}
	idx := EntityIndex(e)
	pos := int(ei.sparse[idx])
	lastPos := ei.aliveCount // position of last alive entry (dense[0] is reserved)
	if pos != lastPos {
		moved := ei.dense[lastPos]
		ei.dense[pos] = moved
		ei.sparse[EntityIndex(moved)] = uint32(pos)
		ei.dense[lastPos] = e
		ei.sparse[idx] = uint32(lastPos)
	}
	ei.aliveCount--
}

// alive reports whether e is present in the alive prefix with a matching
// generation.
func (ei *entityIndex) alive(e EntityID) bool {
	idx := EntityIndex(e)
	if idx == 0 || int(idx) >= len(ei.sparse) {
		return false
	}
	pos := ei.sparse[idx]
	if int(pos) < 1 || int(pos) > ei.aliveCount {
		return false
	}
	return ei.dense[pos] == e
}

// liveEntityAt resolves a bare 48-bit index back to its current live
// EntityID (with the correct generation), or ok=false if that index is
// dead. Used to decode a pair's 16-bit entity-valued target field, which
// stores only the index, back into a full EntityID (§6 GetRelationTargets).
func (ei *entityIndex) liveEntityAt(idx uint64) (EntityID, bool) {
	if idx == 0 || int(idx) >= len(ei.sparse) {
		return 0, false
	}
	pos := ei.sparse[idx]
	if int(pos) < 1 || int(pos) > ei.aliveCount {
		return 0, false
	}
	return ei.dense[pos], true
}
