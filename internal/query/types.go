package query

// Predicate is a filter condition over the builds table.
//
// This is a sealed interface; only types in this package implement it so
// that Compile can switch over every case.
type Predicate interface {
	predicateNode()
}

// Field names a filterable column of the builds table.
type Field string

const (
	FieldGeneration Field = "generation"
	FieldToken      Field = "cycle_token"
	FieldStatus     Field = "status"
	FieldSourceHash Field = "source_hash"
)

// columns maps each Field to its qualified column.
var columns = map[Field]string{
	FieldGeneration: "b.generation",
	FieldToken:      "b.cycle_token",
	FieldStatus:     "b.status",
	FieldSourceHash: "b.source_hash",
}

// Equals matches cycles whose Field equals Value. Value must be a string,
// an integer or a bool.
type Equals struct {
	Field Field
	Value any
}

func (Equals) predicateNode() {}

// HasOutcome matches cycles that recorded an outcome for Key. A non-empty
// Status additionally requires that outcome to have it.
type HasOutcome struct {
	Key    string
	Status string
}

func (HasOutcome) predicateNode() {}

// And matches when every predicate matches. An empty And matches all
// cycles.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// All returns the conjunction of the non-nil predicates, or nil if there
// are none.
func All(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Predicates: kept}
}
