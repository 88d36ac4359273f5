/*
Package silo provides an archetype-based Entity-Component-System (ECS) data
engine for games and simulations.

Silo stores typed component data in contiguous column-oriented tables
grouped by archetype (the exact set of component kinds an entity holds),
supports entity-entity and entity-type relationships encoded as pairs,
exposes a declarative query language over component/pair predicates with a
generation-invalidated cache, and provides reactive observers plus deferred
structural mutation that is safe to perform during iteration.

Core Concepts:

  - Entity: a 64-bit (index, generation) identity.
  - Component: a typed datum attachable to an entity; a tag is zero-sized.
  - Pair: a (relation, target) tuple packed into a single ComponentID.
  - Archetype: the set of entities sharing the same component signature,
    stored column-major for cache-friendly iteration.
  - Term: a declarative predicate over components and pairs; terms compose
    via All/Any/None groups, negation, wildcards and captures.
  - Observer: a callback fired when an entity's archetype transitions across
    a required/excluded boundary.

Basic Usage:

	world := silo.Factory.NewWorld()

	position := silo.RegisterComponent[Position](world)
	velocity := silo.RegisterComponent[Velocity](world)

	e, _ := world.AddEntity(Position{}, Velocity{X: 1})

	q := world.Query(silo.Comp(position), silo.Comp(velocity))
	for it := q.Iter(); it.Next(); {
		pos := position.GetFromIter(it)
		vel := velocity.GetFromIter(it)
		pos.X += vel.X
		pos.Y += vel.Y
	}
*/
package silo
