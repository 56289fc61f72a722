package store

import (
	"context"
	"fmt"

	"github.com/roach88/automata/internal/ir"
)

// CycleRecord is everything persisted for one finished cycle.
type CycleRecord struct {
	Generation    int64
	CycleToken    string
	Status        string
	SourceHash    string
	EngineVersion string
	IRVersion     string

	// Definitions is the rotated build in manifest order; nil when the cycle
	// never produced a build (compile failure, superseded before building).
	Definitions []DefinitionRecord
	Outcomes    []OutcomeRecord
	Diagnostics []string
}

// DefinitionRecord is one built definition of a cycle.
type DefinitionRecord struct {
	Key      ir.DefinitionKey
	Text     string
	TextHash string
	Graph    *ir.Graph
	Rebuilt  bool
}

// OutcomeRecord is what the build pass did with one key.
type OutcomeRecord struct {
	Key    ir.DefinitionKey
	Status string
	Error  string
}

// SaveCycle writes a cycle and its child rows in one transaction.
//
// Uses ON CONFLICT DO NOTHING on the builds row for idempotency: saving the
// same generation or cycle token twice is a no-op and reports inserted=false.
// The seq column is assigned as one past the current maximum.
func (s *Store) SaveCycle(ctx context.Context, rec CycleRecord) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("save cycle: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	engineVersion := rec.EngineVersion
	if engineVersion == "" {
		engineVersion = ir.EngineVersion
	}
	irVersion := rec.IRVersion
	if irVersion == "" {
		irVersion = ir.IRVersion
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO builds
		(generation, cycle_token, status, built, source_hash, engine_version, ir_version, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM builds))
		ON CONFLICT DO NOTHING
	`,
		rec.Generation,
		rec.CycleToken,
		rec.Status,
		boolToInt(rec.Definitions != nil),
		rec.SourceHash,
		engineVersion,
		irVersion,
	)
	if err != nil {
		return false, fmt.Errorf("save cycle: insert build: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save cycle: rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	for i, def := range rec.Definitions {
		graphJSON, err := marshalGraph(def.Graph)
		if err != nil {
			return false, fmt.Errorf("save cycle: definition %s: %w", def.Key, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO definitions
			(generation, key, position, text, text_hash, graph, rebuilt)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			rec.Generation,
			string(def.Key),
			i,
			def.Text,
			def.TextHash,
			graphJSON,
			boolToInt(def.Rebuilt),
		)
		if err != nil {
			return false, fmt.Errorf("save cycle: insert definition %s: %w", def.Key, err)
		}
	}

	for i, out := range rec.Outcomes {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO outcomes
			(generation, key, position, status, error)
			VALUES (?, ?, ?, ?, ?)
		`, rec.Generation, string(out.Key), i, out.Status, out.Error)
		if err != nil {
			return false, fmt.Errorf("save cycle: insert outcome %s: %w", out.Key, err)
		}
	}

	for i, line := range rec.Diagnostics {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO diagnostics (generation, line_no, line)
			VALUES (?, ?, ?)
		`, rec.Generation, i, line)
		if err != nil {
			return false, fmt.Errorf("save cycle: insert diagnostic %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("save cycle: commit: %w", err)
	}
	return true, nil
}
