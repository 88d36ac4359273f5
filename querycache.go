package silo

// cachedQuery is keyed by context-hash and invalidated by the
// archetype-generation counter (§4.6).
type cachedQuery struct {
	archetypes   []*Archetype
	generation   uint64
	captures     []captureInfo
	requiredCIDs []ComponentID
	cascadeRel   ComponentID
	depthGroups  [][]*Archetype
	maxDepth     int
}

type queryCache struct {
	entries map[uint64]*cachedQuery
}

func newQueryCache() *queryCache {
	return &queryCache{entries: make(map[uint64]*cachedQuery)}
}

func (c *queryCache) clear() {
	c.entries = make(map[uint64]*cachedQuery)
}

// lookupOrBuild implements §4.6's two-step cache protocol: return the
// cached entry if its generation matches, otherwise rescan every
// archetype, stamp the current generation, and (if a cascade relation is
// present) rebuild depth groups.
func (w *World) lookupOrBuild(ctx *queryContext) *cachedQuery {
	if cq, ok := w.cache.entries[ctx.hash]; ok && cq.generation == w.archetypeGeneration {
		return cq
	}
	debugf("silo: query cache miss for hash %#x, rescanning %d archetypes", ctx.hash, len(w.archetypes))
	cq := &cachedQuery{generation: w.archetypeGeneration, cascadeRel: ctx.cascadeRel}
	for _, a := range w.archetypes {
		if archetypeMatches(a, ctx) {
			cq.archetypes = append(cq.archetypes, a)
		}
	}
	cq.requiredCIDs = append([]ComponentID(nil), ctx.required...)
	cq.captures = append([]captureInfo(nil), ctx.captures...)
	if ctx.cascadeRel != 0 {
		w.buildDepthGroups(cq)
	}
	w.cache.entries[ctx.hash] = cq
	return cq
}

// buildDepthGroups implements §4.6's hierarchical ordering: the depth of
// an entity is 0 if it has no pair (R, parent), else 1+depth(parent);
// memoized per build. Each archetype lands in the bucket indexed by the
// minimum depth among its entities (empty archetypes -> bucket 0).
// Traversal is bounded at Config.CascadeDepthCap; cycles are treated as
// depth 0 past the cap.
func (w *World) buildDepthGroups(cq *cachedQuery) {
	memo := make(map[EntityID]int)
	var depthOf func(e EntityID, steps int) int
	depthOf = func(e EntityID, steps int) int {
		if d, ok := memo[e]; ok {
			return d
		}
		if steps > Config.CascadeDepthCap {
			debugf("silo: cascade depth cap %d reached for entity %d, treating as depth 0", Config.CascadeDepthCap, e)
			return 0
		}
		rec := w.recordFor(e)
		if rec == nil {
			memo[e] = 0
			return 0
		}
		pid, found := rec.archetype.findPairWithRelation(uint32(cq.cascadeRel))
		if !found {
			memo[e] = 0
			return 0
		}
		parent, ok := w.index.liveEntityAt(uint64(PairTarget(pid)))
		if !ok {
			memo[e] = 0
			return 0
		}
		d := 1 + depthOf(parent, steps+1)
		memo[e] = d
		return d
	}

	buckets := make(map[int][]*Archetype)
	maxDepth := 0
	for _, a := range cq.archetypes {
		minDepth := 0
		if len(a.entities) > 0 {
			minDepth = -1
			for _, e := range a.entities {
				d := depthOf(e, 0)
				if minDepth == -1 || d < minDepth {
					minDepth = d
				}
			}
		}
		if minDepth > maxDepth {
			maxDepth = minDepth
		}
		buckets[minDepth] = append(buckets[minDepth], a)
	}
	cq.depthGroups = make([][]*Archetype, maxDepth+1)
	for d, archs := range buckets {
		cq.depthGroups[d] = archs
	}
	cq.maxDepth = maxDepth
}
