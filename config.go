package silo

import "log"

// Config holds global tunables for the engine as a single package-level
// configuration value.
var Config config = config{
	CascadeDepthCap: 1024,
	MaxMaskSlots:    256,
	AutoCleanup:     true,
}

type config struct {
	// Debug gates the rare warning log lines (cascade depth cap or cascade
	// budget reached, query cache misses and clears). Off by default.
	Debug bool

	// CascadeDepthCap bounds hierarchical depth-group traversal (§4.6);
	// nesting beyond this is treated as depth 0 rather than looping forever.
	CascadeDepthCap int

	// MaxMaskSlots bounds how many non-pair ComponentIDs get a bit in the
	// fast-path archetype mask.Mask. Components registered past this cap
	// still work correctly, just without the bitset fast-reject; matching
	// falls back to the exact sorted-signature scan for them.
	MaxMaskSlots int

	// AutoCleanup removes empty archetypes (other than the designated empty
	// archetype) after each flush, per invariant 6.
	AutoCleanup bool
}

// SetDebug toggles warning logging. Invariant assertions run regardless of
// this setting.
func (c *config) SetDebug(on bool) {
	c.Debug = on
}

// debugf logs via the standard logger when Config.Debug is set. The engine
// otherwise stays silent; there is no bundled logging framework to wire in
// for this, so plain log.Printf stands in directly.
func debugf(format string, args ...any) {
	if Config.Debug {
		log.Printf(format, args...)
	}
}
