package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/snarg/call-dossier/internal/store"
)

// fileRule is the on-disk shape of one entry in RULE_FILE.
type fileRule struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Severity   string          `json:"severity"`
	IsActive   bool            `json:"isActive"`
	Definition json.RawMessage `json:"definition"`
}

// SeedRulesFromFile reads a RULE_FILE JSON document (an array of rule
// definitions) and upserts each into compliance_rules. A missing file is
// not an error: an operator managing rules entirely through the database
// doesn't need one.
func SeedRulesFromFile(ctx context.Context, st *store.Store, path string) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read rule file: %w", err)
	}

	var rules []fileRule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return fmt.Errorf("parse rule file: %w", err)
	}

	for _, r := range rules {
		if err := st.UpsertRule(ctx, store.Rule{
			ID:         r.ID,
			Name:       r.Name,
			Category:   r.Category,
			Severity:   r.Severity,
			IsActive:   r.IsActive,
			Definition: r.Definition,
		}); err != nil {
			return fmt.Errorf("upsert rule %s: %w", r.ID, err)
		}
	}
	return nil
}

// LoadExpectedPhrases reads EXPECTED_PHRASES_FILE, a JSON array of
// {"phrase": "...", "weight": 0.1} objects the script-adherence subscore
// checks for. A missing file yields an empty set (no script check fires).
func LoadExpectedPhrases(path string) ([]ExpectedPhrase, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read expected phrases file: %w", err)
	}

	var phrases []ExpectedPhrase
	if err := json.Unmarshal(raw, &phrases); err != nil {
		return nil, fmt.Errorf("parse expected phrases file: %w", err)
	}
	return phrases, nil
}

// RuleLoader adapts Store.ListActiveRules to the func signature Scorer
// expects, parsing each row's raw definition once per call. Rules rarely
// change; callers that need caching wrap this themselves.
func RuleLoader(st *store.Store) func(ctx context.Context) ([]Rule, error) {
	return func(ctx context.Context) ([]Rule, error) {
		rows, err := st.ListActiveRules(ctx)
		if err != nil {
			return nil, err
		}
		rules := make([]Rule, 0, len(rows))
		for _, row := range rows {
			def, err := ParseDefinition(row.Definition)
			if err != nil {
				continue
			}
			rules = append(rules, Rule{ID: row.ID, Name: row.Name, Severity: row.Severity, Def: def})
		}
		return rules, nil
	}
}
