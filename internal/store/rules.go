package store

import (
	"context"
	"encoding/json"
)

// Rule is a persisted compliance rule definition (C5). Definition is a
// tagged-union JSON document; see internal/audit for the kinds it may take.
type Rule struct {
	ID         string
	Name       string
	Category   string
	Severity   string
	IsActive   bool
	Definition json.RawMessage
}

// ListActiveRules returns every active rule for the scorer to evaluate.
func (s *Store) ListActiveRules(ctx context.Context) ([]Rule, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, name, category, severity, is_active, definition
		FROM compliance_rules WHERE is_active = true`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.ID, &r.Name, &r.Category, &r.Severity, &r.IsActive, &r.Definition); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// UpsertRule inserts or replaces a rule definition by id.
func (s *Store) UpsertRule(ctx context.Context, r Rule) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO compliance_rules (id, name, category, severity, is_active, definition)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, category = EXCLUDED.category, severity = EXCLUDED.severity,
			is_active = EXCLUDED.is_active, definition = EXCLUDED.definition`,
		r.ID, r.Name, r.Category, r.Severity, r.IsActive, r.Definition,
	)
	return err
}
