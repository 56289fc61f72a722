// Package query describes filters over persisted cycles and compiles them
// to parameterized SQLite.
//
// A filter is a tree of predicates:
//
//	And{Predicates: []Predicate{
//	    Equals{Field: FieldStatus, Value: "completed"},
//	    HasOutcome{Key: "Lamp", Status: "failed"},
//	}}
//
// compiles to
//
//	b.status = ? AND EXISTS (SELECT 1 FROM outcomes o
//	    WHERE o.generation = b.generation AND o.key = ? AND o.status = ?)
//
// with params ["completed", "Lamp", "failed"]. Values are never
// interpolated into the SQL text. Field names are checked against a fixed
// set of builds columns, so a Predicate cannot address arbitrary SQL.
package query
