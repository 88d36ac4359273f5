package silo

// EntityID is a 64-bit value split into a 48-bit index and a 16-bit
// generation. The pair (index, generation) is the live identity; reusing an
// index requires bumping the generation so stale IDs fail the liveness
// check (§3).
type EntityID uint64

const (
	entityIndexBits = 48
	entityIndexMask = (uint64(1) << entityIndexBits) - 1
	entityGenShift  = entityIndexBits

	// ReservedEntity is slot 0; it is never alive. The first allocatable
	// index is 1.
	ReservedEntity EntityID = 0

	// VarThis and VarNone are the variable-slot sentinels used by capture
	// bindings in the term language (§6 Constants).
	VarThis uint8 = 254
	VarNone uint8 = 255

	// MaxQueryBindings bounds the Var slot range (§6 Constants).
	MaxQueryBindings = 8
)

// MakeEntityID packs an index and generation into an EntityID.
func MakeEntityID(index uint64, gen uint16) EntityID {
	return EntityID((index & entityIndexMask) | (uint64(gen) << entityGenShift))
}

// EntityIndex extracts the 48-bit index component of an EntityID.
func EntityIndex(e EntityID) uint64 {
	return uint64(e) & entityIndexMask
}

// EntityGeneration extracts the 16-bit generation component of an EntityID.
func EntityGeneration(e EntityID) uint16 {
	return uint16(uint64(e) >> entityGenShift)
}
