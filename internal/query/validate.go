package query

import (
	"fmt"
)

// outcomeStatuses are the statuses an outcome row can carry.
var outcomeStatuses = map[string]bool{
	"rebuilt": true,
	"reused":  true,
	"failed":  true,
	"skipped": true,
}

// Validate returns every problem found in p. A nil predicate is valid.
//
// Validate is a pure function with no side effects.
func Validate(p Predicate) []error {
	v := &validator{errs: []error{}}
	v.predicate(p)
	return v.errs
}

type validator struct {
	errs []error
}

func (v *validator) addf(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) predicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.equals(pred)
	case *Equals:
		v.equals(*pred)
	case HasOutcome:
		v.hasOutcome(pred)
	case *HasOutcome:
		v.hasOutcome(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.predicate(sub)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.predicate(sub)
		}
	default:
		v.addf("unsupported predicate type: %T", p)
	}
}

func (v *validator) equals(eq Equals) {
	if _, ok := columns[eq.Field]; !ok {
		v.addf("unknown field %q", eq.Field)
	}
	if _, err := toParam(eq.Value); err != nil {
		v.addf("field %q: %v", eq.Field, err)
	}
}

func (v *validator) hasOutcome(h HasOutcome) {
	if h.Key == "" {
		v.addf("outcome filter needs a key")
	}
	if h.Status != "" && !outcomeStatuses[h.Status] {
		v.addf("unknown outcome status %q", h.Status)
	}
}
