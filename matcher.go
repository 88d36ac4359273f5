package silo

// archetypeMatches decides whether a satisfies ctx (§4.5): every required
// id is in a's signature, no excluded id is, every non-negated wildcard
// term finds a matching pair (and every negated one doesn't), and every
// any-of group has at least one satisfied sub-term. The non-pair
// required/excluded sets are fast-rejected via the archetype's bitset
// (§9 mask wiring) before falling through to the authoritative exact scan,
// which alone handles pairs, wildcards and any-of groups.
func archetypeMatches(a *Archetype, ctx *queryContext) bool {
	if !a.fastMask.ContainsAll(ctx.requiredMask) {
		return false
	}
	if a.fastMask.ContainsAny(ctx.excludedMask) {
		return false
	}

	for _, id := range ctx.required {
		if a.findComponent(id) < 0 {
			return false
		}
	}
	for _, id := range ctx.excluded {
		if a.findComponent(id) >= 0 {
			return false
		}
	}

	for _, wt := range ctx.wildcards {
		_, found := a.findPairWithRelation(uint32(wt.relation))
		if wt.negate == found {
			return false
		}
	}

	for _, group := range ctx.anyOf {
		satisfied := false
		for _, st := range group {
			if termMatchesArchetype(a, st) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}

	if !ctx.includeDisabled {
		// Disabled components are masked per-entity, not per-archetype, so
		// there is nothing to reject at the archetype level; per-entity
		// filtering happens at iteration time in the Iterator (query.go).
	}

	return true
}

// termMatchesArchetype recursively evaluates any Term — component, pair
// (exact or wildcard), or group — directly against a, used to test any-of
// sub-terms which may themselves nest further groups (§4.5: "sub-terms are
// matched via the same recursive predicate over exact/wildcard/group
// forms").
func termMatchesArchetype(a *Archetype, t Term) bool {
	switch v := t.(type) {
	case componentTerm:
		has := a.findComponent(v.id) >= 0
		return has != v.negate

	case pairTerm:
		switch v.kind {
		case targetType, targetEntity:
			var tgt Tgt
			if v.kind == targetType {
				tgt = TgtType(v.targetType)
			} else {
				tgt = TgtEntity(v.targetEnt)
			}
			pid := MakePairID(v.relation.value(), tgt.value())
			has := a.findComponent(pid) >= 0
			return has != v.negate
		default:
			_, found := a.findPairWithRelation(v.relation.value())
			return found != v.negate
		}

	case groupTerm:
		switch v.op {
		case GroupAll:
			for _, st := range v.subTerms {
				if !termMatchesArchetype(a, st) {
					return v.negate
				}
			}
			return !v.negate
		case GroupAny:
			for _, st := range v.subTerms {
				if termMatchesArchetype(a, st) {
					return !v.negate
				}
			}
			return v.negate
		case GroupNone:
			for _, st := range v.subTerms {
				if termMatchesArchetype(a, st) {
					return v.negate
				}
			}
			return !v.negate
		}
	}
	return false
}
