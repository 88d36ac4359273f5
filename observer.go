package silo

// EventKind distinguishes the two observer trigger points (§4.9).
type EventKind int

const (
	OnAdd EventKind = iota
	OnRemove
)

// ObserverID identifies a registered observer for later Unobserve.
type ObserverID uint32

// ObserverCallback receives the entity whose archetype just transitioned.
type ObserverCallback func(w *World, e EntityID)

type observerReg struct {
	id       ObserverID
	event    EventKind
	required []ComponentID
	excluded []ComponentID
	callback ObserverCallback
}

// observerMatches implements §4.9's matches(A): required subset, excluded
// disjoint. matches(nil) is always false.
func observerMatches(a *Archetype, required, excluded []ComponentID) bool {
	if a == nil {
		return false
	}
	for _, r := range required {
		if a.findComponent(r) < 0 {
			return false
		}
	}
	for _, x := range excluded {
		if a.findComponent(x) >= 0 {
			return false
		}
	}
	return true
}

// ObserverDef is a builder for on_add/on_remove registrations (§6).
type ObserverDef struct {
	event    EventKind
	required []ComponentID
	excluded []ComponentID
}

// OnAddObserver builds an OnAdd observer definition over the given terms'
// required/excluded component ids (pairs and plain components alike;
// wildcard/any-of terms are not supported as observer triggers, only as
// query terms, since the transition-matching test in §4.9 needs a fixed
// required/excluded set).
func OnAddObserver(terms ...TermArg) ObserverDef {
	ctx := resolveSimple(terms)
	return ObserverDef{event: OnAdd, required: ctx.required, excluded: ctx.excluded}
}

// OnRemoveObserver mirrors OnAddObserver for the OnRemove event.
func OnRemoveObserver(terms ...TermArg) ObserverDef {
	ctx := resolveSimple(terms)
	return ObserverDef{event: OnRemove, required: ctx.required, excluded: ctx.excluded}
}

var nextObserverID ObserverID = 1

// Observe registers def's callback and returns an id for later Unobserve.
func Observe(w *World, def ObserverDef, callback ObserverCallback) ObserverID {
	id := nextObserverID
	nextObserverID++
	w.observers = append(w.observers, &observerReg{
		id:       id,
		event:    def.event,
		required: def.required,
		excluded: def.excluded,
		callback: callback,
	})
	return id
}

// Unobserve removes a previously registered observer.
func Unobserve(w *World, id ObserverID) {
	for i, o := range w.observers {
		if o.id == id {
			w.observers = append(w.observers[:i], w.observers[i+1:]...)
			return
		}
	}
}

// fireObservers dispatches every registered observer over the from->to
// transition, in registration order (§4.9, §5 ordering guarantees).
// from/to may be nil for entity creation (nil->A) and destruction (A->nil).
//
// Observers run during the move they're reacting to, so a callback that
// itself calls AddComponent/RemoveComponent/DestroyEntity must never cause
// a reentrant archetype transition mid-move. dispatchingObservers forces
// addComponentRaw/removeComponentRaw/DestroyEntity onto the deferred queue
// for the duration, the same queue iteration already defers into.
func (w *World) fireObservers(e EntityID, from, to *Archetype) {
	if len(w.observers) == 0 {
		return
	}
	w.dispatchingObservers++
	defer func() { w.dispatchingObservers-- }()

	for _, o := range w.observers {
		wasMatch := observerMatches(from, o.required, o.excluded)
		isMatch := observerMatches(to, o.required, o.excluded)
		switch o.event {
		case OnAdd:
			if !wasMatch && isMatch {
				o.callback(w, e)
			}
		case OnRemove:
			if wasMatch && !isMatch {
				o.callback(w, e)
			}
		}
	}
}
