package silo

// factory is a zero-size receiver with a single exported package-level
// instance, used as the package's constructor namespace.
type factory struct{}

// Factory is the package's single entry point for constructing a World.
var Factory factory

// NewWorld builds a fresh, empty World with its own registry, entity
// index, archetype graph, deferred op queue, query cache and relation
// traits engine.
func (f factory) NewWorld() *World {
	return newWorld()
}

// NewQuery builds a reusable Query against w, equivalent to w.Query(terms...).
func (f factory) NewQuery(w *World, terms ...TermArg) *Query {
	return NewQuery(w, terms...)
}
