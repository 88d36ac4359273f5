package silo

import (
	"hash/fnv"
	"sort"

	"github.com/TheBitDrifter/mask"
)

// queryContext is the resolved predicate (§4.5): required/excluded
// ComponentID sets, wildcard pair terms, any-of groups retained
// structurally for recursive matching, var captures, and at most one
// cascade relation.
type queryContext struct {
	required []ComponentID
	excluded []ComponentID

	wildcards []wildcardTerm
	anyOf     [][]Term
	captures  []captureInfo
	cascadeRel ComponentID

	requiredMask mask.Mask
	excludedMask mask.Mask

	includeDisabled bool

	hash uint64
	gen  uint64 // the term-arena generation stamp this context was built under
}

type wildcardTerm struct {
	relation ComponentID
	negate   bool
}

type captureInfo struct {
	relation ComponentID
	varSlot  uint8
}

// resolve walks args (implicitly conjoined, §4.4) and builds a
// Query_Context, registering any new exact pair ids it encounters along
// the way (§4.5).
func resolve(w *World, args []TermArg, includeDisabled bool) *queryContext {
	ctx := &queryContext{includeDisabled: includeDisabled, gen: termArenaGeneration()}
	for _, a := range args {
		resolveTerm(w, asTerm(a), ctx, false)
	}
	applyMaskFastPath(w, ctx)
	ctx.hash = hashContext(ctx)
	return ctx
}

func resolveSimple(args []TermArg) *queryContext {
	ctx := &queryContext{gen: termArenaGeneration()}
	for _, a := range args {
		resolveTerm(nil, asTerm(a), ctx, false)
	}
	return ctx
}

// resolveTerm applies the resolution rules of §4.5. invert carries
// the Group(None) inversion down into nested terms.
func resolveTerm(w *World, t Term, ctx *queryContext, invert bool) {
	switch v := t.(type) {
	case componentTerm:
		neg := v.negate != invert
		if neg {
			ctx.excluded = append(ctx.excluded, v.id)
		} else {
			ctx.required = append(ctx.required, v.id)
		}

	case pairTerm:
		neg := v.negate != invert
		switch v.kind {
		case targetType, targetEntity:
			var tgt Tgt
			if v.kind == targetType {
				tgt = TgtType(v.targetType)
			} else {
				tgt = TgtEntity(v.targetEnt)
			}
			pid := MakePairID(v.relation.value(), tgt.value())
			if w != nil {
				var relInfo *componentInfo
				if !v.relation.isEntity {
					relInfo = w.registry.info(v.relation.typeID)
				}
				w.registry.infoForPair(pid, relInfo)
			}
			if neg {
				ctx.excluded = append(ctx.excluded, pid)
			} else {
				ctx.required = append(ctx.required, pid)
			}
		default: // wildcard, any, var
			relID := ComponentID(v.relation.value())
			if v.cascade && !neg && ctx.cascadeRel == 0 {
				// The governing cascade term orders iteration by depth but
				// does not filter: entities without an (R, *) pair match at
				// depth 0.
				ctx.cascadeRel = relID
			} else {
				ctx.wildcards = append(ctx.wildcards, wildcardTerm{relation: relID, negate: neg})
			}
			if v.captureTo >= 0 {
				ctx.captures = append(ctx.captures, captureInfo{relation: relID, varSlot: uint8(v.captureTo)})
			} else if v.kind == targetVar {
				ctx.captures = append(ctx.captures, captureInfo{relation: relID, varSlot: v.varSlot})
			}
		}

	case groupTerm:
		groupInvert := invert != v.negate
		switch v.op {
		case GroupAll:
			for _, st := range v.subTerms {
				resolveTerm(w, st, ctx, groupInvert)
			}
		case GroupAny:
			ctx.anyOf = append(ctx.anyOf, normalizeGroupForInvert(v.subTerms, groupInvert))
		case GroupNone:
			for _, st := range v.subTerms {
				resolveTerm(w, st, ctx, !groupInvert)
			}
		}
	}
}

// normalizeGroupForInvert bakes a pending inversion into an any-of group so
// groups stored structurally still reflect outer Not()/None() wrapping when
// matched later: an inverted group becomes a single negated Any term, which
// holds only when none of the sub-terms does.
func normalizeGroupForInvert(terms []Term, invert bool) []Term {
	if !invert {
		return terms
	}
	return []Term{negateTerm(groupTerm{op: GroupAny, subTerms: terms})}
}

func applyMaskFastPath(w *World, ctx *queryContext) {
	for _, id := range ctx.required {
		if IsPair(id) {
			continue
		}
		if info := w.registry.info(id); info != nil && info.maskSlot >= 0 {
			ctx.requiredMask.Mark(uint32(info.maskSlot))
		}
	}
	for _, id := range ctx.excluded {
		if IsPair(id) {
			continue
		}
		if info := w.registry.info(id); info != nil && info.maskSlot >= 0 {
			ctx.excludedMask.Mark(uint32(info.maskSlot))
		}
	}
}

// hashContext implements §4.5's cache key: FNV-1a over sorted required,
// a separator, sorted excluded, a separator, wildcard entries, a
// separator, the sub-term count of each any-of group as a cheap
// discriminator, a separator, and the cascade relation.
func hashContext(ctx *queryContext) uint64 {
	req := append([]ComponentID(nil), ctx.required...)
	exc := append([]ComponentID(nil), ctx.excluded...)
	sort.Slice(req, func(i, j int) bool { return req[i] < req[j] })
	sort.Slice(exc, func(i, j int) bool { return exc[i] < exc[j] })

	h := fnv.New64a()
	writeU32 := func(v uint32) {
		b := [4]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
		_, _ = h.Write(b[:])
	}
	for _, id := range req {
		writeU32(uint32(id))
	}
	h.Write([]byte{0xFF})
	for _, id := range exc {
		writeU32(uint32(id))
	}
	h.Write([]byte{0xFF})
	for _, wt := range ctx.wildcards {
		writeU32(uint32(wt.relation))
		if wt.negate {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}
	h.Write([]byte{0xFF})
	for _, grp := range ctx.anyOf {
		writeU32(uint32(len(grp)))
	}
	h.Write([]byte{0xFF})
	writeU32(uint32(ctx.cascadeRel))
	if ctx.includeDisabled {
		h.Write([]byte{1})
	}
	return h.Sum64()
}
