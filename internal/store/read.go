package store

import (
	"context"
	"fmt"

	"github.com/roach88/automata/internal/ir"
	"github.com/roach88/automata/internal/query"
)

// CycleSummary is one row of the cycle history.
type CycleSummary struct {
	Generation int64  `json:"generation"`
	CycleToken string `json:"cycle_token"`
	Status     string `json:"status"`
	SourceHash string `json:"source_hash"`
	Seq        int64  `json:"seq"`
	Rebuilt    int    `json:"rebuilt"`
	Reused     int    `json:"reused"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
}

// LatestGeneration returns the highest persisted generation, or 0 for an
// empty store.
func (s *Store) LatestGeneration(ctx context.Context) (int64, error) {
	var gen int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(generation), 0) FROM builds
	`).Scan(&gen)
	if err != nil {
		return 0, fmt.Errorf("latest generation: %w", err)
	}
	return gen, nil
}

// LatestBuild returns the most recent cycle that rotated a build, along with
// that build. Returns sql.ErrNoRows if no cycle ever produced one.
func (s *Store) LatestBuild(ctx context.Context) (int64, ir.Build, error) {
	var gen int64
	err := s.db.QueryRowContext(ctx, `
		SELECT generation FROM builds
		WHERE built = 1
		ORDER BY generation DESC
		LIMIT 1
	`).Scan(&gen)
	if err != nil {
		return 0, nil, err
	}
	build, _, err := s.ReadBuild(ctx, gen)
	if err != nil {
		return 0, nil, err
	}
	return gen, build, nil
}

// ReadBuild returns the build of a generation plus its keys in manifest order.
// Returns sql.ErrNoRows if the generation does not exist.
func (s *Store) ReadBuild(ctx context.Context, generation int64) (ir.Build, []ir.DefinitionKey, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM builds WHERE generation = ?
	`, generation).Scan(&exists)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, text, graph, rebuilt
		FROM definitions
		WHERE generation = ?
		ORDER BY position ASC, key COLLATE BINARY ASC
	`, generation)
	if err != nil {
		return nil, nil, fmt.Errorf("query definitions: %w", err)
	}
	defer rows.Close()

	build := ir.Build{}
	order := []ir.DefinitionKey{}
	for rows.Next() {
		var (
			key, text, graphJSON string
			rebuilt              int
		)
		if err := rows.Scan(&key, &text, &graphJSON, &rebuilt); err != nil {
			return nil, nil, fmt.Errorf("scan definition: %w", err)
		}
		g, err := unmarshalGraph(graphJSON)
		if err != nil {
			return nil, nil, fmt.Errorf("definition %s: %w", key, err)
		}
		k := ir.DefinitionKey(key)
		build[k] = ir.BuiltDefinition{Key: k, Text: text, Graph: g, Rebuilt: rebuilt == 1}
		order = append(order, k)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate definitions: %w", err)
	}
	return build, order, nil
}

// ListCycles returns the most recent cycles, newest first.
// A limit of zero or less returns every cycle.
func (s *Store) ListCycles(ctx context.Context, limit int) ([]CycleSummary, error) {
	return s.FindCycles(ctx, nil, limit)
}

// FindCycles returns the most recent cycles matching filter, newest first.
// A nil filter matches every cycle.
func (s *Store) FindCycles(ctx context.Context, filter query.Predicate, limit int) ([]CycleSummary, error) {
	where, params, err := query.Compile(filter)
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	params = append(params, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.generation, b.cycle_token, b.status, b.source_hash, b.seq,
			COALESCE(SUM(oc.status = 'rebuilt'), 0),
			COALESCE(SUM(oc.status = 'reused'), 0),
			COALESCE(SUM(oc.status = 'failed'), 0),
			COALESCE(SUM(oc.status = 'skipped'), 0)
		FROM builds b
		LEFT JOIN outcomes oc ON oc.generation = b.generation
		WHERE `+where+`
		GROUP BY b.generation
		ORDER BY b.generation DESC
		LIMIT ?
	`, params...)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	cycles := []CycleSummary{}
	for rows.Next() {
		var c CycleSummary
		if err := rows.Scan(
			&c.Generation, &c.CycleToken, &c.Status, &c.SourceHash, &c.Seq,
			&c.Rebuilt, &c.Reused, &c.Failed, &c.Skipped,
		); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	return cycles, nil
}

// ReadOutcomes returns the per-key outcomes of a generation in manifest order.
func (s *Store) ReadOutcomes(ctx context.Context, generation int64) ([]OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, status, error
		FROM outcomes
		WHERE generation = ?
		ORDER BY position ASC
	`, generation)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []OutcomeRecord{}
	for rows.Next() {
		var (
			o   OutcomeRecord
			key string
		)
		if err := rows.Scan(&key, &o.Status, &o.Error); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Key = ir.DefinitionKey(key)
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return outcomes, nil
}

// ReadDiagnostics returns the transcript lines of a generation.
// Returns empty slice (not nil) if none were stored.
func (s *Store) ReadDiagnostics(ctx context.Context, generation int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT line FROM diagnostics
		WHERE generation = ?
		ORDER BY line_no ASC
	`, generation)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	lines := []string{}
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}
	return lines, nil
}
