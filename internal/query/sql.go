package query

import (
	"errors"
	"fmt"
	"strings"
)

// Compile converts p to a WHERE fragment over the builds table aliased as
// b, plus its parameters. A nil predicate compiles to "1 = 1".
//
// Callers own ORDER BY; the fragment never contains one.
func Compile(p Predicate) (string, []any, error) {
	if errs := Validate(p); len(errs) > 0 {
		return "", nil, errors.Join(errs...)
	}
	return compilePredicate(p)
}

func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case Equals:
		return compileEquals(pred)
	case *Equals:
		return compileEquals(*pred)
	case HasOutcome:
		return compileHasOutcome(pred), outcomeParams(pred), nil
	case *HasOutcome:
		return compileHasOutcome(*pred), outcomeParams(*pred), nil
	case And:
		return compileAnd(pred)
	case *And:
		return compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq Equals) (string, []any, error) {
	param, err := toParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", eq.Field, err)
	}
	return columns[eq.Field] + " = ?", []any{param}, nil
}

func compileHasOutcome(h HasOutcome) string {
	sql := "EXISTS (SELECT 1 FROM outcomes o WHERE o.generation = b.generation AND o.key = ?"
	if h.Status != "" {
		sql += " AND o.status = ?"
	}
	return sql + ")"
}

func outcomeParams(h HasOutcome) []any {
	if h.Status != "" {
		return []any{h.Key, h.Status}
	}
	return []any{h.Key}
}

func compileAnd(and And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}
	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, sub := range and.Predicates {
		sql, subParams, err := compilePredicate(sub)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, subParams...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// toParam converts a filter value to a SQL parameter.
func toParam(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case int:
		return int64(val), nil
	case int64:
		return val, nil
	case bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case nil:
		return nil, errors.New("NULL cannot be compared, use an explicit value")
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}
